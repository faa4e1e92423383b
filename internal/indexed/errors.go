package indexed

import "errors"

var (
	// ErrAliasing is returned when the target of an evaluation is its own base.
	ErrAliasing = errors.New("evaluation target aliases its base")

	// ErrUnsupportedEvaluation is returned for storage pairings the engine does
	// not implement, such as a dense base into a sparse target.
	ErrUnsupportedEvaluation = errors.New("unsupported evaluation")

	// ErrNotScalar is returned by Value for expressions with open indices.
	ErrNotScalar = errors.New("expression is not a scalar")
)
