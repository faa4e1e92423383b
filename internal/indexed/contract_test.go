package indexed

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/tensor"
)

// naiveMatMul multiplies row-major m×k and k×n matrices.
func naiveMatMul(a, b *tensor.Tensor) *tensor.Tensor {
	m, k, n := a.Dims()[0], a.Dims()[1], b.Dims()[1]
	return tensor.FromFunc(tensor.Shape{m, n}, func(c []int) float64 {
		var sum float64
		for p := range k {
			sum += a.At(c[0], p) * b.At(p, c[1])
		}
		return sum
	})
}

func TestContractMatrixProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := tensor.Random(tensor.Shape{3, 4}, rng)
	b := tensor.Random(tensor.Shape{4, 5}, rng)
	want := naiveMatMul(a, b)
	i, j, k := index.New(), index.New(), index.New()

	tests := []struct {
		name     string
		lhs, rhs tensor.Representation
	}{
		{"dense", tensor.Dense, tensor.Dense},
		{"sparse", tensor.Sparse, tensor.Sparse},
		{"sparse_dense", tensor.Sparse, tensor.Dense},
		{"dense_sparse", tensor.Dense, tensor.Sparse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lhs, rhs := a.Clone(), b.Clone()
			if tt.lhs == tensor.Sparse {
				lhs.UseSparse()
			}
			if tt.rhs == tensor.Sparse {
				rhs.UseSparse()
			}

			got, err := Contract(New(lhs, i, j), New(rhs, j, k))
			require.NoError(t, err)
			require.Len(t, got.Indices, 2)
			assert.True(t, got.Indices[0].Equal(i))
			assert.True(t, got.Indices[1].Equal(k))
			assert.Equal(t, tt.lhs == tensor.Sparse && tt.rhs == tensor.Sparse, got.Tensor.IsSparse())
			assert.InDelta(t, 0, want.MaxDifference(got.Tensor), 1e-12)
		})
	}
}

func TestContractPermutedOperands(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := tensor.Random(tensor.Shape{4, 3}, rng) // (j, i)
	b := tensor.Random(tensor.Shape{5, 4}, rng) // (k, j)
	i, j, k := index.New(), index.New(), index.New()

	got, err := Contract(New(a, j, i), New(b, k, j))
	require.NoError(t, err)
	require.True(t, got.Tensor.Dims().Equal(tensor.Shape{3, 5}))

	for r := range 3 {
		for c := range 5 {
			var sum float64
			for p := range 4 {
				sum += a.At(p, r) * b.At(c, p)
			}
			assert.InDelta(t, sum, got.Tensor.At(r, c), 1e-12)
		}
	}
	assert.True(t, a.IsUnique(), "temporary reorderings release their storage")
}

func TestContractOuterProductAndFactor(t *testing.T) {
	a := seq(2)
	b := seq(3)
	a.Scale(2)
	b.Scale(-1)
	i, j := index.New(), index.New()

	got, err := Contract(New(a, i), New(b, j))
	require.NoError(t, err)
	assert.Equal(t, []float64{-2, -4, -6, -4, -8, -12}, got.Tensor.Values())
}

func TestContractFullToScalar(t *testing.T) {
	a := seq(2, 2)
	b := seq(2, 2)
	i, j := index.New(), index.New()

	got, err := Contract(New(a, i, j), New(b, i, j))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Tensor.Degree())
	assert.Equal(t, 30.0, got.Tensor.At())
}

func TestContractWithTracedOperand(t *testing.T) {
	a := seq(2, 2, 3) // (i, i, j): trace over i
	b := seq(3)
	i, j := index.New(), index.New()

	got, err := Contract(New(a, i, i, j), New(b, j))
	require.NoError(t, err)
	// trace(a)[j] = a[0,0,j] + a[1,1,j] = {1,2,3} + {10,11,12}
	assert.Equal(t, 0, got.Tensor.Degree())
	assert.Equal(t, 11.0*1+13*2+15*3, got.Tensor.At())
}

func TestContractZeroSizes(t *testing.T) {
	i, j, k := index.New(), index.New(), index.New()

	got, err := Contract(New(tensor.Zeros(tensor.Shape{2, 0}), i, j), New(tensor.Zeros(tensor.Shape{0, 3}), j, k))
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 6), got.Tensor.Values())

	got, err = Contract(New(tensor.Zeros(tensor.Shape{0, 2}), i, j), New(seq(2, 3), j, k))
	require.NoError(t, err)
	assert.Equal(t, 0, got.Tensor.Size())
}

func TestContractMismatch(t *testing.T) {
	i, j := index.New(), index.New()
	_, err := Contract(New(seq(2, 3), i, j), New(seq(2, 2), j, i))
	assert.True(t, index.IsReason(err, index.ReasonMismatch))
}

func TestSum(t *testing.T) {
	a := seq(2, 3)
	b := seq(3, 2)
	i, j := index.New(), index.New()

	out := New(tensor.Zeros(nil), i, j)
	require.NoError(t, Sum(out, New(a, i, j), New(b, j, i)))
	// b transposed is [[1 3 5] [2 4 6]].
	assert.Equal(t, []float64{2, 5, 8, 6, 9, 12}, out.Tensor.Values())

	require.NoError(t, Sum(out, New(out.Tensor, i, j), New(a, i, j)))
	assert.Equal(t, []float64{3, 7, 11, 10, 14, 18}, out.Tensor.Values())

	err := Sum(New(tensor.Zeros(nil), i, j), New(a, i, j), New(seq(2, 3), i, j))
	require.NoError(t, err)

	err = Sum(New(tensor.Zeros(nil), i, j), New(a, i, j), New(seq(3, 3), i, j))
	assert.True(t, index.IsReason(err, index.ReasonMismatch))
}

func TestSumSparse(t *testing.T) {
	a := tensor.Dirac(tensor.Shape{2, 2}, 0, 1)
	b := tensor.Dirac(tensor.Shape{2, 2}, 0, 1)
	b.Scale(-1)
	i, j := index.New(), index.New()

	out := New(tensor.NewSparse(nil), i, j)
	require.NoError(t, Sum(out, New(a, i, j), New(b, i, j)))
	assert.True(t, out.Tensor.IsSparse())
	assert.Equal(t, 0, out.Tensor.NNZ())
}
