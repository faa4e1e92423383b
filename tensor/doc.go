// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides index notation over dense and sparse tensors.
//
// # Overview
//
// A Tensor is a multi-dimensional float64 array stored either densely or as
// a sparse coordinate map. Symbolic indices attached to a tensor form an
// Expr, and assigning one expression to another permutes, slices and traces
// modes according to the indices:
//
//	i, j := tensor.NewIndex(), tensor.NewIndex()
//	a := tensor.FromFunc(tensor.Shape{2, 3}, f)
//	b := tensor.Zeros(nil)
//
//	tensor.Assign(tensor.At(b, j, i), tensor.At(a, i, j)) // transpose
//	tensor.Assign(tensor.At(b), tensor.At(a, i, i))       // trace (square a)
//	tensor.Assign(tensor.At(b, j), tensor.At(a, tensor.FixedIndex(1), j)) // row 1
//
// # Indices
//
//   - NewIndex covers one mode, NewSpanIndex(n) covers n adjacent modes.
//   - NewInverseIndex(n) covers all modes of the tensor but n.
//   - FixedIndex(k) binds a mode to coordinate k.
//   - An index used twice in one expression is traced.
//
// # Products
//
// Products are built lazily as tensor networks and contracted on
// evaluation, cheapest linked pair first:
//
//	c, _ := tensor.Product(tensor.At(a, i, j), tensor.At(b, j, k))
//	err := c.EvaluateInto(tensor.At(out, i, k))
//
// # Memory Management
//
// Storage is reference counted and copied on the first write, so Clone and
// Assign of whole tensors are cheap. Scalar factors are kept aside and
// applied lazily.
package tensor
