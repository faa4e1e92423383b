// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/tensornet/internal/index"
	"github.com/born-ml/tensornet/internal/indexed"
	"github.com/born-ml/tensornet/internal/network"
)

// Index is a symbolic index standing for one or more tensor modes.
type Index = index.Index

// Expr is a tensor with indices attached to its modes.
type Expr = indexed.Expr

// ProductExpr is a lazy product of expressions, held as a tensor network.
type ProductExpr = network.Expr

// Errors returned by evaluation.
var (
	ErrMalformedIndexing     = index.ErrMalformedIndexing
	ErrAliasing              = indexed.ErrAliasing
	ErrUnsupportedEvaluation = indexed.ErrUnsupportedEvaluation
)

// NewIndex returns a fresh index covering one mode.
func NewIndex() Index {
	return index.New()
}

// NewSpanIndex returns a fresh index covering span adjacent modes.
func NewSpanIndex(span int) Index {
	return index.NewSpan(span)
}

// NewInverseIndex returns a fresh index covering all modes but n.
func NewInverseIndex(n int) Index {
	return index.NewInverse(n)
}

// FixedIndex returns an index bound to coordinate value.
func FixedIndex(value int) Index {
	return index.Fixed(value)
}

// At attaches indices to t.
func At(t *Tensor, indices ...Index) *Expr {
	return indexed.New(t, indices...)
}

// Assign evaluates base into out, resizing out's tensor as needed.
func Assign(out, base *Expr) error {
	return indexed.Assign(out, base)
}

// Sum assigns a + b to out.
func Sum(out, a, b *Expr) error {
	return indexed.Sum(out, a, b)
}

// Product returns the lazy product of the given expressions. Indices shared
// by two factors are contracted when the product is evaluated.
func Product(factors ...*Expr) (*ProductExpr, error) {
	if len(factors) == 0 {
		return &ProductExpr{Net: network.New()}, nil
	}
	acc, err := network.FromIndexed(factors[0])
	if err != nil {
		return nil, err
	}
	for _, f := range factors[1:] {
		next, err := network.FromIndexed(f)
		if err != nil {
			return nil, err
		}
		if acc, err = network.Multiply(acc, next); err != nil {
			return nil, err
		}
	}
	return acc, nil
}
