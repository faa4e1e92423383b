package decomp

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensornet/internal/tensor"
)

const tol = 1e-10

// mul contracts the last mode of a with the first mode of b.
func mul(a, b *tensor.Tensor) *tensor.Tensor {
	ad, bd := a.Dims(), b.Dims()
	k := ad[len(ad)-1]
	m := a.Size() / max(k, 1)
	n := b.Size() / max(k, 1)
	dims := append(append(tensor.Shape{}, ad[:len(ad)-1]...), bd[1:]...)
	av, bv := a.Values(), b.Values()
	out := tensor.Zeros(dims)
	data := out.DenseData()
	for i := range m {
		for j := range n {
			var sum float64
			for p := range k {
				sum += av[i*k+p] * bv[p*n+j]
			}
			data[i*n+j] = sum
		}
	}
	return out
}

// gram returns Mᵀ·M (columns) or M·Mᵀ (rows) of a matricized tensor.
func gram(t *tensor.Tensor, rows, cols int, byColumns bool) []float64 {
	v := t.Values()
	size := rows
	if byColumns {
		size = cols
	}
	out := make([]float64, size*size)
	for x := range size {
		for y := range size {
			var sum float64
			if byColumns {
				for r := range rows {
					sum += v[r*cols+x] * v[r*cols+y]
				}
			} else {
				for c := range cols {
					sum += v[x*cols+c] * v[y*cols+c]
				}
			}
			out[x*size+y] = sum
		}
	}
	return out
}

func assertIdentity(t *testing.T, g []float64, size int) {
	t.Helper()
	for x := range size {
		for y := range size {
			want := 0.0
			if x == y {
				want = 1
			}
			assert.InDelta(t, want, g[x*size+y], tol, "entry (%d,%d)", x, y)
		}
	}
}

func TestQR(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tests := []struct {
		name  string
		dims  tensor.Shape
		split int
		k     int
	}{
		{"tall", tensor.Shape{3, 4, 2}, 2, 2},
		{"square", tensor.Shape{2, 3, 6}, 2, 6},
		{"wide", tensor.Shape{2, 3, 5}, 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tensor.Random(tt.dims, rng)
			q, r, err := QR(a, tt.split)
			require.NoError(t, err)

			assert.Equal(t, append(tt.dims[:tt.split:tt.split], tt.k), q.Dims())
			assert.Equal(t, append(tensor.Shape{tt.k}, tt.dims[tt.split:]...), r.Dims())
			assert.InDelta(t, 0, mul(q, r).MaxDifference(a), tol)

			m := q.Size() / tt.k
			assertIdentity(t, gram(q, m, tt.k, true), tt.k)

			n := r.Size() / tt.k
			rv := r.Values()
			for i := range tt.k {
				for j := range min(i, n) {
					assert.InDelta(t, 0, rv[i*n+j], tol, "R(%d,%d) below diagonal", i, j)
				}
			}
		})
	}
}

func TestRQ(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, dims := range []tensor.Shape{{4, 2, 3}, {2, 3, 4}} {
		a := tensor.Random(dims, rng)
		r, q, err := RQ(a, 1)
		require.NoError(t, err)

		m, n := dims[0], dims[1]*dims[2]
		k := min(m, n)
		assert.Equal(t, tensor.Shape{dims[0], k}, r.Dims())
		assert.Equal(t, tensor.Shape{k, dims[1], dims[2]}, q.Dims())
		assert.InDelta(t, 0, mul(r, q).MaxDifference(a), tol)
		assertIdentity(t, gram(q, k, n, false), k)
	}
}

func TestSVD(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	a := tensor.Random(tensor.Shape{3, 2, 4}, rng)

	u, s, vt, err := SVD(a, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, s, 4)
	assert.Equal(t, tensor.Shape{3, 2, 4}, u.Dims())
	assert.Equal(t, tensor.Shape{4, 4}, vt.Dims())
	for i := 1; i < len(s); i++ {
		assert.GreaterOrEqual(t, s[i-1], s[i])
	}

	us := u.Clone()
	data := us.DenseData()
	for pos := range data {
		data[pos] *= s[pos%len(s)]
	}
	assert.InDelta(t, 0, mul(us, vt).MaxDifference(a), tol)
	assertIdentity(t, gram(u, 6, 4, true), 4)
	assertIdentity(t, gram(vt, 4, 4, false), 4)
}

func TestSVDTruncation(t *testing.T) {
	// Rank one: a(i,j) = (i+1)(j+1).
	a := tensor.FromFunc(tensor.Shape{3, 4}, func(c []int) float64 {
		return float64((c[0] + 1) * (c[1] + 1))
	})

	u, s, vt, err := SVD(a, 1, 0, 1e-12)
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, tensor.Shape{3, 1}, u.Dims())
	assert.Equal(t, tensor.Shape{1, 4}, vt.Dims())

	u.Scale(s[0])
	assert.InDelta(t, 0, mul(u, vt).MaxDifference(a), 1e-9)

	rng := rand.New(rand.NewSource(6))
	_, s, _, err = SVD(tensor.Random(tensor.Shape{5, 5}, rng), 1, 2, 0)
	require.NoError(t, err)
	assert.Len(t, s, 2)
}

func TestDecompositionErrors(t *testing.T) {
	a := tensor.Ones(tensor.Shape{2, 2})

	_, _, err := QR(a, 3)
	assert.ErrorIs(t, err, ErrSplit)

	_, _, err = RQ(a, -1)
	assert.ErrorIs(t, err, ErrSplit)

	_, _, _, err = SVD(tensor.Zeros(tensor.Shape{0, 2}), 1, 0, 0)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDecomposeSparse(t *testing.T) {
	a := tensor.Dirac(tensor.Shape{2, 3}, 1, 2)
	q, r, err := QR(a, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0, mul(q, r).MaxDifference(a), tol)
	assert.True(t, a.IsSparse())
}
