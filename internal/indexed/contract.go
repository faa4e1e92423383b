package indexed

import (
	"maps"
	"slices"
	"time"

	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/metrics"
	"github.com/born-ml/tensornet/internal/sparsectx"
	"github.com/born-ml/tensornet/internal/tensor"
)

// Contract multiplies a and b, summing over every index they share.
//
// The result carries a's remaining open indices followed by b's. Fixed and
// traced indices of either operand are evaluated away first. The result is
// sparse only if both operands are.
func Contract(a, b *Expr) (*Expr, error) {
	a, aA, err := openForm(a)
	if err != nil {
		return nil, err
	}
	b, bA, err := openForm(b)
	if err != nil {
		return nil, err
	}

	var left, shared, right []index.Index
	for _, e := range aA {
		k := bA.Find(e.Index)
		if k < 0 {
			left = append(left, e.Index.WithSpan(e.Span))
			continue
		}
		if bA[k].Span != e.Span || bA[k].Dimension != e.Dimension {
			return nil, index.Malformed(index.ReasonMismatch, "shared index %v covers dimension %d and %d", e.Index, e.Dimension, bA[k].Dimension)
		}
		shared = append(shared, e.Index.WithSpan(e.Span))
	}
	for _, e := range bA {
		if aA.Find(e.Index) < 0 {
			right = append(right, e.Index.WithSpan(e.Span))
		}
	}

	lhs, err := reorder(a, append(slices.Clone(left), shared...))
	if err != nil {
		return nil, err
	}
	defer lhs.Tensor.Release()
	rhs, err := reorder(b, append(slices.Clone(shared), right...))
	if err != nil {
		return nil, err
	}
	defer rhs.Tensor.Release()

	lhsA, err := lhs.Assign()
	if err != nil {
		return nil, err
	}
	rhsA, err := rhs.Assign()
	if err != nil {
		return nil, err
	}
	lhsExt := modeExtents(lhs.Tensor.Dims(), lhsA)
	rhsExt := modeExtents(rhs.Tensor.Dims(), rhsA)

	m, k, n := 1, 1, 1
	dims := tensor.Shape{}
	for p, e := range lhsA {
		if p < len(left) {
			m *= e.Dimension
			dims = append(dims, lhsExt[p]...)
		} else {
			k *= e.Dimension
		}
	}
	for p, e := range rhsA {
		if p >= len(shared) {
			n *= e.Dimension
			dims = append(dims, rhsExt[p]...)
		}
	}

	start := time.Now()
	var path string
	var result *tensor.Tensor
	switch {
	case lhs.Tensor.IsSparse() && rhs.Tensor.IsSparse():
		path = metrics.PathContractCSR
		result = tensor.New(dims, tensor.Sparse)
		err = sparsectx.With(func(acc *sparsectx.Access) error {
			product, err := acc.MatrixMatrixProduct(
				sparsectx.FromMap(lhs.Tensor.UnsanitizedSparse(), m, k, false),
				sparsectx.FromMap(rhs.Tensor.UnsanitizedSparse(), k, n, false),
			)
			if err != nil {
				return err
			}
			maps.Copy(result.OverrideSparse(), product.ToMap(1))
			return nil
		})
		if err != nil {
			return nil, err
		}
	case lhs.Tensor.IsDense() && rhs.Tensor.IsDense():
		path = metrics.PathContractGemm
		result = tensor.New(dims, tensor.Dense)
		gemm(m, k, n, lhs.Tensor.UnsanitizedDense(), rhs.Tensor.UnsanitizedDense(), result.DenseData())
	default:
		path = metrics.PathContractLoop
		result = tensor.New(dims, tensor.Dense)
		mixedProduct(m, k, n, lhs.Tensor, rhs.Tensor, result.DenseData())
	}
	result.Scale(lhs.Tensor.Factor() * rhs.Tensor.Factor())

	metrics.ObserveEvaluation(path, start)
	klog.V(4).InfoS("Contracted index expressions", "path", path, "m", m, "k", k, "n", n)
	return New(result, append(left, right...)...), nil
}

// openForm returns e itself when all its indices are open, otherwise a new
// expression holding e with its fixed and traced indices evaluated.
func openForm(e *Expr) (*Expr, index.Assignment, error) {
	a, err := e.Assign()
	if err != nil {
		return nil, nil, err
	}
	if a.AllOpen() {
		return e, a, nil
	}
	var open []index.Index
	for _, o := range a {
		if o.IsOpen() {
			open = append(open, o.Index.WithSpan(o.Span))
		}
	}
	r := New(tensor.New(nil, e.Tensor.Representation()), open...)
	if err := Assign(r, e); err != nil {
		return nil, nil, err
	}
	ra, err := r.Assign()
	if err != nil {
		return nil, nil, err
	}
	return r, ra, nil
}

// reorder evaluates e into a new tensor with the given index order.
// The result shares e's storage when no reordering is needed.
func reorder(e *Expr, order []index.Index) (*Expr, error) {
	r := New(tensor.New(nil, e.Tensor.Representation()), order...)
	if err := Assign(r, e); err != nil {
		return nil, err
	}
	return r, nil
}

// gemm writes the m×n product of the row-major m×k and k×n blocks into c.
func gemm(m, k, n int, a, b, c []float64) {
	if m == 0 || n == 0 || k == 0 {
		return
	}
	out := mat.NewDense(m, n, c)
	out.Mul(mat.NewDense(m, k, a), mat.NewDense(k, n, b))
}

// mixedProduct is gemm with one sparse operand.
func mixedProduct(m, k, n int, a, b *tensor.Tensor, c []float64) {
	if a.IsSparse() {
		bd := b.UnsanitizedDense()
		for pos, v := range a.UnsanitizedSparse() {
			row, col := pos/k, pos%k
			for j := range n {
				c[row*n+j] += v * bd[col*n+j]
			}
		}
		return
	}
	ad := a.UnsanitizedDense()
	for pos, v := range b.UnsanitizedSparse() {
		row, col := pos/n, pos%n
		for i := range m {
			c[i*n+col] += ad[i*k+row] * v
		}
	}
}
