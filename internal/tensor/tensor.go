// Package tensor provides the storage-polymorphic tensor used by the index
// calculus: a dense row-major buffer or a sparse coordinate map, both behind
// a lazily applied scalar factor and Copy-on-Write storage.
package tensor

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// Representation selects the storage variant of a tensor.
type Representation int

// Storage variants.
const (
	Dense Representation = iota
	Sparse
)

// String returns a human-readable representation name.
func (r Representation) String() string {
	switch r {
	case Dense:
		return "dense"
	case Sparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// Tensor is a multi-dimensional float64 array.
//
// The value at a position is factor times the stored value. Storage is shared
// between clones and copied on the first write (see Clone).
type Tensor struct {
	dims   Shape
	size   int
	factor float64
	rep    Representation
	dense  *denseBuffer
	sparse *sparseBuffer
}

// New creates a zero tensor with the given dimensions and representation.
// Panics on negative dimensions.
func New(dims Shape, rep Representation) *Tensor {
	if err := dims.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	t := &Tensor{dims: dims.Clone(), size: dims.NumElements(), factor: 1, rep: rep}
	t.allocate()
	return t
}

func (t *Tensor) allocate() {
	t.dense, t.sparse = nil, nil
	switch t.rep {
	case Dense:
		t.dense = newBuffer(make([]float64, t.size))
	case Sparse:
		t.sparse = newBuffer(make(map[int]float64))
	default:
		panic(fmt.Sprintf("tensor: unknown representation %d", t.rep))
	}
}

// Dims returns the tensor's dimensions. The slice must not be modified.
func (t *Tensor) Dims() Shape {
	return t.dims
}

// Degree returns the number of dimensions.
func (t *Tensor) Degree() int {
	return len(t.dims)
}

// Size returns the number of (possibly implicit) entries.
func (t *Tensor) Size() int {
	return t.size
}

// Factor returns the lazily applied scalar multiplier.
func (t *Tensor) Factor() float64 {
	return t.factor
}

// Representation returns the storage variant.
func (t *Tensor) Representation() Representation {
	return t.rep
}

// IsSparse reports whether the tensor uses sparse storage.
func (t *Tensor) IsSparse() bool {
	return t.rep == Sparse
}

// IsDense reports whether the tensor uses dense storage.
func (t *Tensor) IsDense() bool {
	return t.rep == Dense
}

// NNZ returns the number of explicitly stored entries.
func (t *Tensor) NNZ() int {
	if t.rep == Sparse {
		return len(t.sparse.data)
	}
	return t.size
}

// SameStorage reports whether both tensors read from the same buffer.
func (t *Tensor) SameStorage(other *Tensor) bool {
	if t.rep != other.rep {
		return false
	}
	if t.rep == Dense {
		return t.dense == other.dense
	}
	return t.sparse == other.sparse
}

// IsUnique returns true if no other tensor shares the storage.
// When true, writes do not trigger a copy.
func (t *Tensor) IsUnique() bool {
	if t.rep == Dense {
		return t.dense.isUnique()
	}
	return t.sparse.isUnique()
}

// Clone returns a tensor sharing storage with t (Copy-on-Write).
//
// Example:
//
//	a := tensor.Ones(tensor.Shape{1000, 1000})
//	b := a.Clone()    // shares the buffer, refCount = 2
//	b.Set(2, 0, 0)    // b privatizes its own copy first
func (t *Tensor) Clone() *Tensor {
	c := &Tensor{dims: t.dims.Clone(), size: t.size, factor: t.factor, rep: t.rep}
	if t.rep == Dense {
		t.dense.addRef()
		c.dense = t.dense
	} else {
		t.sparse.addRef()
		c.sparse = t.sparse
	}
	return c
}

// Release drops this tensor's reference to its storage. The tensor must not
// be used afterwards.
func (t *Tensor) Release() {
	if t.dense != nil {
		t.dense.release()
		t.dense = nil
	}
	if t.sparse != nil {
		t.sparse.release()
		t.sparse = nil
	}
}

// EnsureOwnData privatizes shared storage so the tensor may be written.
func (t *Tensor) EnsureOwnData() {
	if t.rep == Dense {
		t.dense = privatizeDense(t.dense)
	} else {
		t.sparse = privatizeSparse(t.sparse)
	}
}

// ApplyFactor multiplies the factor into the stored values and resets it to one.
func (t *Tensor) ApplyFactor() {
	if t.factor == 1 {
		return
	}
	t.EnsureOwnData()
	if t.rep == Dense {
		for i := range t.dense.data {
			t.dense.data[i] *= t.factor
		}
	} else {
		for k, v := range t.sparse.data {
			t.sparse.data[k] = v * t.factor
		}
	}
	t.factor = 1
}

// Scale multiplies the tensor by alpha without touching the storage.
func (t *Tensor) Scale(alpha float64) {
	t.factor *= alpha
}

// UnsanitizedDense returns the stored dense values without the factor applied.
// The slice must not be modified.
func (t *Tensor) UnsanitizedDense() []float64 {
	if t.rep != Dense {
		panic("tensor: UnsanitizedDense on sparse tensor")
	}
	return t.dense.data
}

// UnsanitizedSparse returns the stored sparse entries without the factor applied.
// The map must not be modified.
func (t *Tensor) UnsanitizedSparse() map[int]float64 {
	if t.rep != Sparse {
		panic("tensor: UnsanitizedSparse on dense tensor")
	}
	return t.sparse.data
}

// DenseData returns writable dense values with the factor applied,
// converting sparse storage first.
func (t *Tensor) DenseData() []float64 {
	t.UseDense()
	t.ApplyFactor()
	t.EnsureOwnData()
	return t.dense.data
}

// SparseData returns writable sparse entries with the factor applied,
// converting dense storage first.
func (t *Tensor) SparseData() map[int]float64 {
	t.UseSparse()
	t.ApplyFactor()
	t.EnsureOwnData()
	return t.sparse.data
}

// OverrideDense replaces the storage with fresh, exclusively owned zeros and
// returns it. The factor is reset to one.
func (t *Tensor) OverrideDense() []float64 {
	t.Release()
	t.rep = Dense
	t.factor = 1
	t.allocate()
	return t.dense.data
}

// OverrideSparse is OverrideDense for sparse storage.
func (t *Tensor) OverrideSparse() map[int]float64 {
	t.Release()
	t.rep = Sparse
	t.factor = 1
	t.allocate()
	return t.sparse.data
}

// Reset reinitializes the tensor as a zero tensor of the given shape.
func (t *Tensor) Reset(dims Shape, rep Representation) {
	if err := dims.Validate(); err != nil {
		panic(fmt.Sprintf("tensor: %v", err))
	}
	t.Release()
	t.dims = dims.Clone()
	t.size = dims.NumElements()
	t.rep = rep
	t.factor = 1
	t.allocate()
}

// Assign makes t share the storage and shape of other (Copy-on-Write).
func (t *Tensor) Assign(other *Tensor) {
	if t == other {
		return
	}
	c := other.Clone()
	t.Release()
	*t = *c
}

// UseDense converts sparse storage to dense in place.
func (t *Tensor) UseDense() {
	if t.rep == Dense {
		return
	}
	data := make([]float64, t.size)
	for k, v := range t.sparse.data {
		data[k] = v
	}
	t.sparse.release()
	t.sparse = nil
	t.dense = newBuffer(data)
	t.rep = Dense
}

// UseSparse converts dense storage to sparse in place, dropping exact zeros.
func (t *Tensor) UseSparse() {
	if t.rep == Sparse {
		return
	}
	data := make(map[int]float64)
	for k, v := range t.dense.data {
		if v != 0 {
			data[k] = v
		}
	}
	t.dense.release()
	t.dense = nil
	t.sparse = newBuffer(data)
	t.rep = Sparse
}

// At returns the value at the given coordinates.
// Panics if coords are out of bounds.
func (t *Tensor) At(coords ...int) float64 {
	return t.AtFlat(t.dims.Offset(coords))
}

// AtFlat returns the value at a row-major position.
func (t *Tensor) AtFlat(pos int) float64 {
	if pos < 0 || pos >= t.size {
		panic(fmt.Sprintf("position %d out of bounds (size %d)", pos, t.size))
	}
	if t.rep == Dense {
		return t.factor * t.dense.data[pos]
	}
	return t.factor * t.sparse.data[pos]
}

// Set writes value at the given coordinates.
// Panics if coords are out of bounds.
func (t *Tensor) Set(value float64, coords ...int) {
	t.SetFlat(t.dims.Offset(coords), value)
}

// SetFlat writes value at a row-major position. Writing zero into sparse
// storage removes the entry.
func (t *Tensor) SetFlat(pos int, value float64) {
	if pos < 0 || pos >= t.size {
		panic(fmt.Sprintf("position %d out of bounds (size %d)", pos, t.size))
	}
	t.ApplyFactor()
	t.EnsureOwnData()
	if t.rep == Dense {
		t.dense.data[pos] = value
		return
	}
	if value == 0 {
		delete(t.sparse.data, pos)
		return
	}
	t.sparse.data[pos] = value
}

// Values returns a dense copy of all values with the factor applied.
func (t *Tensor) Values() []float64 {
	out := make([]float64, t.size)
	if t.rep == Dense {
		for i, v := range t.dense.data {
			out[i] = t.factor * v
		}
		return out
	}
	for k, v := range t.sparse.data {
		out[k] = t.factor * v
	}
	return out
}

// SortedKeys returns the stored sparse positions in ascending order.
func (t *Tensor) SortedKeys() []int {
	if t.rep != Sparse {
		panic("tensor: SortedKeys on dense tensor")
	}
	return slices.Sorted(maps.Keys(t.sparse.data))
}

// FrobNorm returns the Frobenius norm, the square root of the sum of squares.
func (t *Tensor) FrobNorm() float64 {
	var sum float64
	if t.rep == Dense {
		for _, v := range t.dense.data {
			sum += v * v
		}
	} else {
		for _, v := range t.sparse.data {
			sum += v * v
		}
	}
	return math.Abs(t.factor) * math.Sqrt(sum)
}

// AddScaled adds alpha*other to t. Both tensors must have equal dimensions.
// The result is sparse only if both operands are.
func (t *Tensor) AddScaled(alpha float64, other *Tensor) error {
	if !t.dims.Equal(other.dims) {
		return fmt.Errorf("add: dimension mismatch %v vs %v", t.dims, other.dims)
	}
	if other == t {
		t.Scale(1 + alpha)
		return nil
	}
	scale := alpha * other.factor
	if t.rep == Sparse && other.rep == Dense {
		t.UseDense()
	}
	t.ApplyFactor()
	t.EnsureOwnData()

	switch {
	case t.rep == Dense && other.rep == Dense:
		for i, v := range other.dense.data {
			t.dense.data[i] += scale * v
		}
	case t.rep == Dense:
		for k, v := range other.sparse.data {
			t.dense.data[k] += scale * v
		}
	default:
		for k, v := range other.sparse.data {
			sum := t.sparse.data[k] + scale*v
			if sum == 0 {
				delete(t.sparse.data, k)
				continue
			}
			t.sparse.data[k] = sum
		}
	}
	return nil
}

// Reinterpret changes the dimensions without touching the storage.
// The number of entries must not change.
func (t *Tensor) Reinterpret(dims Shape) error {
	if err := dims.Validate(); err != nil {
		return err
	}
	if dims.NumElements() != t.size {
		return fmt.Errorf("reinterpret: %v has %d entries, tensor has %d", dims, dims.NumElements(), t.size)
	}
	t.dims = dims.Clone()
	return nil
}

// MaxDifference returns the largest absolute entry-wise difference.
// Panics on a dimension mismatch.
func (t *Tensor) MaxDifference(other *Tensor) float64 {
	if !t.dims.Equal(other.dims) {
		panic(fmt.Sprintf("tensor: dimension mismatch %v vs %v", t.dims, other.dims))
	}
	a, b := t.Values(), other.Values()
	var diff float64
	for i := range a {
		diff = max(diff, math.Abs(a[i]-b[i]))
	}
	return diff
}

// String returns a human-readable summary of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor[%s]%v factor=%g nnz=%d", t.rep, []int(t.dims), t.factor, t.NNZ())
}
