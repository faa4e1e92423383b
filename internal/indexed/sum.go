package indexed

import (
	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Sum assigns a + b to out. Both operands must evaluate to the same
// dimensions in out's index order. Out keeps its representation and may be
// one of the operands.
func Sum(out, a, b *Expr) error {
	dims, err := EvaluatedDimensions(out.Indices, a)
	if err != nil {
		return err
	}
	dimsB, err := EvaluatedDimensions(out.Indices, b)
	if err != nil {
		return err
	}
	if !dims.Equal(dimsB) {
		return index.Malformed(index.ReasonMismatch, "summands evaluate to %v and %v", dims, dimsB)
	}

	rep := out.Tensor.Representation()
	lhs := New(tensor.New(dims, rep), out.Indices...)
	if err := Evaluate(lhs, a); err != nil {
		return err
	}
	defer lhs.Tensor.Release()
	rhs := New(tensor.New(dims, rep), out.Indices...)
	if err := Evaluate(rhs, b); err != nil {
		return err
	}
	defer rhs.Tensor.Release()

	if err := lhs.Tensor.AddScaled(1, rhs.Tensor); err != nil {
		return err
	}
	out.Tensor.Assign(lhs.Tensor)
	return nil
}
