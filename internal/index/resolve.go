package index

import "fmt"

// State classifies one occurrence of an index within an expression.
type State int

// Occurrence states.
const (
	StateOpen State = iota
	StateFixed
	StateTraced
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFixed:
		return "fixed"
	case StateTraced:
		return "traced"
	default:
		return "unknown"
	}
}

// Assigned is one resolved index occurrence.
type Assigned struct {
	Index     Index
	Span      int // concrete number of modes covered
	Dimension int // product of the covered extents
	State     State
}

// IsOpen reports whether the occurrence contributes to the result.
func (a Assigned) IsOpen() bool { return a.State == StateOpen }

// IsFixed reports whether the occurrence is bound to a coordinate.
func (a Assigned) IsFixed() bool { return a.State == StateFixed }

// IsTraced reports whether the occurrence is summed with its partner.
func (a Assigned) IsTraced() bool { return a.State == StateTraced }

// Assignment is the resolved form of an index list against a tensor.
// Span-zero indices do not appear in it.
type Assignment []Assigned

// Resolve assigns indices to the modes of a tensor with the given extents.
//
// Every index receives a concrete span (inverse spans are resolved against
// len(dims)), the product of the extents it covers, and a state. The spans
// must cover len(dims) exactly.
func Resolve(dims []int, indices []Index) (Assignment, error) {
	degree := len(dims)
	out := make(Assignment, 0, len(indices))
	offset := 0

	for _, idx := range indices {
		if idx.fixed {
			if idx.inverse {
				return nil, Malformed(ReasonFixedInverse, "fixed index %v must not have an inverse span", idx)
			}
			if idx.span != 1 {
				return nil, Malformed(ReasonFixedSpan, "fixed index %v must have span 1, has %d", idx, idx.span)
			}
		}

		span := idx.Span(degree)
		if span < 0 {
			return nil, Malformed(ReasonNegativeSpan, "index %v would have negative span %d on a degree %d tensor", idx, span, degree)
		}
		if span == 0 {
			continue
		}
		if offset+span > degree {
			return nil, Malformed(ReasonOrderTooLarge, "order determined by indices is too large: at least %d > %d", offset+span, degree)
		}

		dim := 1
		for _, d := range dims[offset : offset+span] {
			dim *= d
		}

		entry := Assigned{Index: idx, Span: span, Dimension: dim, State: StateOpen}
		if idx.fixed {
			entry.State = StateFixed
			if idx.value < 0 || idx.value >= dim {
				return nil, Malformed(ReasonFixedRange, "fixed coordinate %d out of range for dimension %d", idx.value, dim)
			}
		} else {
			for k := range out {
				if !out[k].Index.Equal(idx) {
					continue
				}
				if out[k].State != StateOpen {
					return nil, Malformed(ReasonRepeated, "index %v appears more than twice", idx)
				}
				out[k].State = StateTraced
				entry.State = StateTraced
				break
			}
		}

		out = append(out, entry)
		offset += span
	}

	if offset < degree {
		return nil, Malformed(ReasonOrderTooSmall, "order determined by indices is too small: %d < %d", offset, degree)
	}
	return out, nil
}

// Indices returns the index of every occurrence.
func (a Assignment) Indices() []Index {
	out := make([]Index, len(a))
	for k, e := range a {
		out[k] = e.Index
	}
	return out
}

// Dimensions returns the combined dimension of every occurrence.
func (a Assignment) Dimensions() []int {
	out := make([]int, len(a))
	for k, e := range a {
		out[k] = e.Dimension
	}
	return out
}

// Steps returns the row-major step of every occurrence: the last occurrence
// has step 1, each one to its left the step of its right neighbour times that
// neighbour's dimension.
func (a Assignment) Steps() []int {
	steps := make([]int, len(a))
	if len(a) == 0 {
		return steps
	}
	steps[len(a)-1] = 1
	for k := len(a) - 1; k > 0; k-- {
		steps[k-1] = steps[k] * a[k].Dimension
	}
	return steps
}

// Find returns the position of idx in the assignment, or -1.
func (a Assignment) Find(idx Index) int {
	for k, e := range a {
		if e.Index.Equal(idx) {
			return k
		}
	}
	return -1
}

// Partner returns the position of the other occurrence of the traced index at k.
func (a Assignment) Partner(k int) int {
	for j, e := range a {
		if j != k && e.Index.Equal(a[k].Index) {
			return j
		}
	}
	return -1
}

// AllOpen reports whether no occurrence is fixed or traced.
func (a Assignment) AllOpen() bool {
	for _, e := range a {
		if e.State != StateOpen {
			return false
		}
	}
	return true
}

// EvalDegree returns the degree of the result: the summed span of open occurrences.
func (a Assignment) EvalDegree() int {
	degree := 0
	for _, e := range a {
		if e.State == StateOpen {
			degree += e.Span
		}
	}
	return degree
}

// String lists the occurrences with their state.
func (a Assignment) String() string {
	s := "["
	for k, e := range a {
		if k > 0 {
			s += " "
		}
		s += fmt.Sprintf("%v:%d(%s)", e.Index, e.Dimension, e.State)
	}
	return s + "]"
}
