// Package indexed evaluates index expressions: a tensor with a list of
// symbolic indices, combined by assignment, sums and pairwise contraction.
package indexed

import (
	"fmt"
	"slices"

	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Expr is a tensor together with the indices attached to its modes.
//
// Example:
//
//	i, j := index.New(), index.New()
//	a := indexed.New(t, i, j)
//	b := indexed.New(tensor.Zeros(nil), j, i)
//	err := indexed.Assign(b, a) // b = transpose of t
type Expr struct {
	Tensor  *tensor.Tensor
	Indices []index.Index

	assignment index.Assignment
	forDims    tensor.Shape
	forIndices []index.Index
}

// New creates an expression over t.
func New(t *tensor.Tensor, indices ...index.Index) *Expr {
	return &Expr{Tensor: t, Indices: indices}
}

// Assign resolves the indices against the tensor's current dimensions.
// The result is cached until the dimensions or the index list change.
func (e *Expr) Assign() (index.Assignment, error) {
	dims := e.Tensor.Dims()
	if e.assignment != nil && dims.Equal(e.forDims) && slices.Equal(e.Indices, e.forIndices) {
		return e.assignment, nil
	}
	a, err := index.Resolve(dims, e.Indices)
	if err != nil {
		return nil, err
	}
	e.assignment = a
	e.forDims = dims.Clone()
	e.forIndices = slices.Clone(e.Indices)
	return a, nil
}

// Degree returns the degree of the expression once evaluated: the number of
// modes covered by open indices.
func (e *Expr) Degree() (int, error) {
	a, err := e.Assign()
	if err != nil {
		return 0, err
	}
	return a.EvalDegree(), nil
}

// Value evaluates a fully traced or fixed expression to its scalar.
func (e *Expr) Value() (float64, error) {
	a, err := e.Assign()
	if err != nil {
		return 0, err
	}
	if a.EvalDegree() != 0 {
		return 0, fmt.Errorf("%w: %d open modes", ErrNotScalar, a.EvalDegree())
	}
	out := New(tensor.Zeros(tensor.Shape{}))
	if err := Evaluate(out, e); err != nil {
		return 0, err
	}
	return out.Tensor.At(), nil
}

// String returns a short human-readable form.
func (e *Expr) String() string {
	return fmt.Sprintf("%v%v", e.Tensor.Dims(), e.Indices)
}

// modeExtents returns, per occurrence of a, the extents of the modes it covers.
func modeExtents(dims tensor.Shape, a index.Assignment) [][]int {
	out := make([][]int, len(a))
	offset := 0
	for k, e := range a {
		out[k] = dims[offset : offset+e.Span]
		offset += e.Span
	}
	return out
}

// EvaluatedDimensions returns the dimensions of a tensor that holds base
// evaluated into the given index order.
func EvaluatedDimensions(order []index.Index, base *Expr) (tensor.Shape, error) {
	a, err := base.Assign()
	if err != nil {
		return nil, err
	}
	extents := modeExtents(base.Tensor.Dims(), a)

	dims := tensor.Shape{}
	for _, idx := range order {
		if !idx.IsInverse() && idx.DeclaredSpan() == 0 {
			continue
		}
		if idx.IsFixed() {
			return nil, index.Malformed(index.ReasonMismatch, "target index %v is fixed", idx)
		}
		k := a.Find(idx)
		if k < 0 || !a[k].IsOpen() {
			return nil, index.Malformed(index.ReasonMismatch, "target index %v is not an open index of %v", idx, a)
		}
		dims = append(dims, extents[k]...)
	}
	return dims, nil
}
