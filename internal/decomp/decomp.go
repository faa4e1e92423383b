// Package decomp provides dense QR, RQ and SVD splits of tensors, viewed as
// matrices by cutting their modes at a split position.
package decomp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/tensornet/internal/tensor"
)

var (
	// ErrSplit is returned for split positions outside [0, degree].
	ErrSplit = errors.New("invalid split position")

	// ErrEmpty is returned for tensors without entries.
	ErrEmpty = errors.New("cannot decompose an empty tensor")

	// ErrNoConvergence is returned when the SVD does not converge.
	ErrNoConvergence = errors.New("svd did not converge")
)

// matricize views t as an m×n matrix, rows over the first split modes.
func matricize(t *tensor.Tensor, split int) (*mat.Dense, int, int, error) {
	dims := t.Dims()
	if split < 0 || split > len(dims) {
		return nil, 0, 0, fmt.Errorf("%w: %d for degree %d", ErrSplit, split, len(dims))
	}
	m := tensor.Shape(dims[:split]).NumElements()
	n := tensor.Shape(dims[split:]).NumElements()
	if m == 0 || n == 0 {
		return nil, 0, 0, ErrEmpty
	}
	return mat.NewDense(m, n, t.Values()), m, n, nil
}

// fromMatrix copies the r×c block of a starting at (0, 0) into a tensor.
func fromMatrix(a mat.Matrix, r, c int, dims tensor.Shape) *tensor.Tensor {
	out := tensor.Zeros(dims)
	data := out.DenseData()
	for i := range r {
		for j := range c {
			data[i*c+j] = a.At(i, j)
		}
	}
	return out
}

func concat(a, b tensor.Shape) tensor.Shape {
	out := make(tensor.Shape, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}

// QR splits t = Q·R after its first split modes. Q has dimensions
// dims[:split]+{k} with orthonormal columns, R has {k}+dims[split:] and is
// upper triangular, where k = min(m, n).
func QR(t *tensor.Tensor, split int) (q, r *tensor.Tensor, err error) {
	a, m, n, err := matricize(t, split)
	if err != nil {
		return nil, nil, err
	}
	dims := t.Dims()
	k := min(m, n)

	// gonum factorizes tall matrices only; a wide A = [A1 A2] uses the QR
	// of its leading square block, R = Qᵀ·A.
	square := a
	if m < n {
		square = a.Slice(0, m, 0, m).(*mat.Dense)
	}
	var qr mat.QR
	qr.Factorize(square)
	var qFull mat.Dense
	qr.QTo(&qFull)

	var rFull mat.Dense
	rFull.Mul(qFull.T(), a)

	q = fromMatrix(&qFull, m, k, concat(dims[:split], tensor.Shape{k}))
	r = fromMatrix(&rFull, k, n, concat(tensor.Shape{k}, dims[split:]))
	return q, r, nil
}

// RQ splits t = R·Q after its first split modes. Q has dimensions
// {k}+dims[split:] with orthonormal rows, R has dims[:split]+{k}.
func RQ(t *tensor.Tensor, split int) (r, q *tensor.Tensor, err error) {
	a, m, n, err := matricize(t, split)
	if err != nil {
		return nil, nil, err
	}
	dims := t.Dims()
	k := min(m, n)

	var at mat.Dense
	at.CloneFrom(a.T())
	qt, rt, err := QR(fromMatrix(&at, n, m, tensor.Shape{n, m}), 1)
	if err != nil {
		return nil, nil, err
	}
	// Aᵀ = Q'·R'  =>  A = R'ᵀ·Q'ᵀ
	qm := mat.NewDense(n, k, qt.Values())
	rm := mat.NewDense(k, m, rt.Values())

	r = fromMatrix(rm.T(), m, k, concat(dims[:split], tensor.Shape{k}))
	q = fromMatrix(qm.T(), k, n, concat(tensor.Shape{k}, dims[split:]))
	return r, q, nil
}

// SVD splits t = U·diag(S)·Vt after its first split modes. Singular values
// below eps times the largest one are dropped, and at most maxRank are kept
// when maxRank > 0. At least one singular value is always kept.
func SVD(t *tensor.Tensor, split, maxRank int, eps float64) (u *tensor.Tensor, s []float64, vt *tensor.Tensor, err error) {
	a, m, n, err := matricize(t, split)
	if err != nil {
		return nil, nil, nil, err
	}
	dims := t.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, nil, nil, ErrNoConvergence
	}
	values := svd.Values(nil)

	rank := len(values)
	if maxRank > 0 {
		rank = min(rank, maxRank)
	}
	for rank > 1 && values[rank-1] <= eps*values[0] {
		rank--
	}

	var um, vm mat.Dense
	svd.UTo(&um)
	svd.VTo(&vm)

	u = fromMatrix(&um, m, rank, concat(dims[:split], tensor.Shape{rank}))
	vt = fromMatrix(vm.T(), rank, n, concat(tensor.Shape{rank}, dims[split:]))
	return u, values[:rank], vt, nil
}
