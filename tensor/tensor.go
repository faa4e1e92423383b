// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/tensornet/internal/tensor"
)

// Type aliases for public API

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Representation selects dense or sparse storage.
type Representation = tensor.Representation

// Storage representations.
const (
	Dense  Representation = tensor.Dense
	Sparse Representation = tensor.Sparse
)

// Tensor is a dense or sparse float64 tensor with a lazy scalar factor and
// Copy-on-Write storage.
type Tensor = tensor.Tensor

// New creates a zero tensor with the given representation.
func New(dims Shape, rep Representation) *Tensor {
	return tensor.New(dims, rep)
}

// Zeros creates a dense zero tensor.
func Zeros(dims Shape) *Tensor {
	return tensor.Zeros(dims)
}

// Ones creates a dense tensor filled with ones.
func Ones(dims Shape) *Tensor {
	return tensor.Ones(dims)
}

// Scalar creates a degree-0 tensor.
func Scalar(value float64) *Tensor {
	return tensor.Scalar(value)
}

// FromSlice creates a dense tensor from row-major values.
func FromSlice(dims Shape, data []float64) (*Tensor, error) {
	return tensor.FromSlice(dims, data)
}

// FromEntries creates a sparse tensor from row-major positions.
func FromEntries(dims Shape, entries map[int]float64) (*Tensor, error) {
	return tensor.FromEntries(dims, entries)
}

// FromFunc creates a dense tensor whose entry at coords is f(coords).
func FromFunc(dims Shape, f func(coords []int) float64) *Tensor {
	return tensor.FromFunc(dims, f)
}

// Random creates a dense tensor with standard normal entries.
func Random(dims Shape, rng *rand.Rand) *Tensor {
	return tensor.Random(dims, rng)
}

// Dirac creates a sparse tensor with a single one at coords.
func Dirac(dims Shape, coords ...int) *Tensor {
	return tensor.Dirac(dims, coords...)
}
