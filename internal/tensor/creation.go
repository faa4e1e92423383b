package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a dense tensor filled with zeros.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{3, 4})
func Zeros(dims Shape) *Tensor {
	return New(dims, Dense)
}

// NewSparse creates a sparse tensor without entries.
func NewSparse(dims Shape) *Tensor {
	return New(dims, Sparse)
}

// Scalar creates a degree-0 dense tensor holding value.
func Scalar(value float64) *Tensor {
	t := Zeros(Shape{})
	t.dense.data[0] = value
	return t
}

// Ones creates a dense tensor filled with ones.
func Ones(dims Shape) *Tensor {
	return Full(dims, 1)
}

// Full creates a dense tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(tensor.Shape{3, 3}, 3.14)
func Full(dims Shape, value float64) *Tensor {
	t := Zeros(dims)
	for i := range t.dense.data {
		t.dense.data[i] = value
	}
	return t
}

// FromSlice creates a dense tensor from row-major values.
// The slice is copied into the tensor's memory.
func FromSlice(dims Shape, data []float64) (*Tensor, error) {
	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if dims.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", dims, dims.NumElements(), len(data))
	}
	t := Zeros(dims)
	copy(t.dense.data, data)
	return t, nil
}

// FromEntries creates a sparse tensor from row-major positions.
// The map is copied; zero values are dropped.
func FromEntries(dims Shape, entries map[int]float64) (*Tensor, error) {
	if err := dims.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	t := NewSparse(dims)
	for pos, v := range entries {
		if pos < 0 || pos >= t.size {
			return nil, fmt.Errorf("entry position %d out of bounds for shape %v", pos, dims)
		}
		if v != 0 {
			t.sparse.data[pos] = v
		}
	}
	return t, nil
}

// FromFunc creates a dense tensor whose entry at coords is f(coords).
func FromFunc(dims Shape, f func(coords []int) float64) *Tensor {
	t := Zeros(dims)
	for pos := range t.dense.data {
		t.dense.data[pos] = f(dims.Coordinates(pos))
	}
	return t
}

// Random creates a dense tensor with standard normal entries.
// Note: Uses math/rand (not crypto/rand) - appropriate for numerical fixtures.
func Random(dims Shape, rng *rand.Rand) *Tensor {
	t := Zeros(dims)
	for i := range t.dense.data {
		t.dense.data[i] = rng.NormFloat64()
	}
	return t
}

// RandomSparse creates a sparse tensor with up to n standard normal entries
// at uniformly drawn positions.
func RandomSparse(dims Shape, n int, rng *rand.Rand) *Tensor {
	t := NewSparse(dims)
	if t.size == 0 {
		return t
	}
	for range n {
		t.sparse.data[rng.Intn(t.size)] = rng.NormFloat64()
	}
	return t
}

// Dirac creates a sparse tensor with a single one at coords.
func Dirac(dims Shape, coords ...int) *Tensor {
	t := NewSparse(dims)
	t.sparse.data[dims.Offset(coords)] = 1
	return t
}
