package index

import (
	"errors"
	"fmt"
)

// ErrMalformedIndexing is matched by every index/shape mismatch.
var ErrMalformedIndexing = errors.New("malformed indexing")

// Reason classifies a malformed indexing failure.
type Reason string

// Malformed indexing reasons.
const (
	ReasonFixedSpan     Reason = "fixed_span"
	ReasonFixedInverse  Reason = "fixed_inverse"
	ReasonFixedRange    Reason = "fixed_out_of_range"
	ReasonNegativeSpan  Reason = "negative_span"
	ReasonOrderTooSmall Reason = "order_too_small"
	ReasonOrderTooLarge Reason = "order_too_large"
	ReasonRepeated      Reason = "repeated_index"
	ReasonMismatch      Reason = "index_mismatch"
)

// MalformedIndexingError describes why an index list does not fit a tensor.
type MalformedIndexingError struct {
	Reason Reason
	Detail string
}

// Error implements the error interface.
func (e *MalformedIndexingError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrMalformedIndexing, e.Reason, e.Detail)
}

// Unwrap allows errors.Is(err, ErrMalformedIndexing).
func (e *MalformedIndexingError) Unwrap() error {
	return ErrMalformedIndexing
}

// Malformed builds a MalformedIndexingError.
func Malformed(reason Reason, format string, args ...any) error {
	return &MalformedIndexingError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// IsReason reports whether err is a malformed indexing failure of the given kind.
func IsReason(err error, reason Reason) bool {
	var mErr *MalformedIndexingError
	return errors.As(err, &mErr) && mErr.Reason == reason
}
