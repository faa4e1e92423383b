package indexed

// stepper walks a mixed-radix counter over a set of indices and keeps the
// matching flat offset into a buffer, without materializing coordinates.
//
// The last index varies fastest. advance adds the step of the fastest index
// and carries into the index to its left whenever a counter reaches its
// dimension.
type stepper struct {
	steps    []int
	dims     []int
	counters []int
	pos      int
}

func newStepper(steps, dims []int) *stepper {
	return &stepper{steps: steps, dims: dims, counters: make([]int, len(dims))}
}

// advance moves to the next position. It returns false after the last
// position, leaving the stepper back at the start.
func (s *stepper) advance() bool {
	for k := len(s.counters) - 1; k >= 0; k-- {
		s.counters[k]++
		s.pos += s.steps[k]
		if s.counters[k] < s.dims[k] {
			return true
		}
		s.pos -= s.steps[k] * s.dims[k]
		s.counters[k] = 0
	}
	return false
}

func (s *stepper) reset() {
	clear(s.counters)
	s.pos = 0
}

// count returns the number of positions visited by a full walk.
func (s *stepper) count() int {
	n := 1
	for _, d := range s.dims {
		n *= d
	}
	return n
}
