// Package index implements symbolic tensor indices and the resolver that
// assigns them to the dimensions of a concrete tensor.
package index

import (
	"fmt"

	"github.com/google/uuid"
)

// Index is a symbolic token standing for one or more adjacent tensor modes.
//
// Copies of an Index compare equal: identity is carried by an opaque id, not by
// span or position. Re-spanned variants produced by WithSpan and Inverse keep
// the id, so A(i^2) and B(i^2) refer to the same symbol.
//
// Example:
//
//	i, j := index.New(), index.New()
//	// B(j,i) = A(i,j) is a transpose, A(i,i) a trace, A(index.Fixed(1), j) a slice.
type Index struct {
	id      uuid.UUID
	span    int
	inverse bool // span means "degree minus span"
	fixed   bool
	value   int // bound coordinate for fixed indices
}

// New returns a fresh index of span one.
func New() Index {
	return Index{id: uuid.New(), span: 1}
}

// NewSpan returns a fresh index covering span consecutive modes.
func NewSpan(span int) Index {
	return Index{id: uuid.New(), span: span}
}

// NewInverse returns a fresh index covering all modes but n.
func NewInverse(n int) Index {
	return Index{id: uuid.New(), span: n, inverse: true}
}

// Fixed returns an index bound to the given coordinate.
// Fixed indices are never traced and always have span one.
func Fixed(value int) Index {
	return Index{id: uuid.New(), span: 1, fixed: true, value: value}
}

// Group returns n fresh span-one indices.
func Group(n int) []Index {
	out := make([]Index, n)
	for i := range out {
		out[i] = New()
	}
	return out
}

// WithSpan returns a copy of the index that covers span modes.
func (i Index) WithSpan(span int) Index {
	i.span = span
	i.inverse = false
	return i
}

// Inverse returns a copy of the index that covers all modes but n.
func (i Index) Inverse(n int) Index {
	i.span = n
	i.inverse = true
	return i
}

// ID returns the opaque identity of the index.
func (i Index) ID() uuid.UUID {
	return i.id
}

// DeclaredSpan returns the span as declared, before resolution.
func (i Index) DeclaredSpan() int {
	return i.span
}

// IsInverse reports whether the span counts from the end.
func (i Index) IsInverse() bool {
	return i.inverse
}

// IsFixed reports whether the index is bound to a coordinate.
func (i Index) IsFixed() bool {
	return i.fixed
}

// Value returns the bound coordinate of a fixed index.
func (i Index) Value() int {
	return i.value
}

// Equal reports whether both indices denote the same symbol.
func (i Index) Equal(other Index) bool {
	return i.id == other.id
}

// Span resolves the concrete span against a tensor of the given degree.
// The result may be negative for an inverse span larger than degree.
func (i Index) Span(degree int) int {
	if i.inverse {
		return degree - i.span
	}
	return i.span
}

// String returns a short human-readable form.
func (i Index) String() string {
	if i.fixed {
		return fmt.Sprintf("#%d", i.value)
	}
	name := i.id.String()[:8]
	switch {
	case i.inverse:
		return fmt.Sprintf("%s&%d", name, i.span)
	case i.span != 1:
		return fmt.Sprintf("%s^%d", name, i.span)
	default:
		return name
	}
}

// Count returns how often idx occurs in indices.
func Count(indices []Index, idx Index) int {
	n := 0
	for _, other := range indices {
		if other.Equal(idx) {
			n++
		}
	}
	return n
}

// Position returns the first position of idx in indices, or -1.
func Position(indices []Index, idx Index) int {
	for p, other := range indices {
		if other.Equal(idx) {
			return p
		}
	}
	return -1
}

// SameOrder reports whether both lists name the same indices in the same order.
func SameOrder(a, b []Index) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !a[k].Equal(b[k]) {
			return false
		}
	}
	return true
}
