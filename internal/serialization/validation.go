package serialization

import (
	"fmt"
	"math"
)

// Validation limits for security and resource protection.
const (
	MaxDegree      = 64            // Maximum tensor degree
	MaxEntries     = 1 << 30       // Maximum entries of one tensor
	MaxNodes       = 1 << 20       // Maximum nodes of one network
	MaxStrategyLen = 64            // Maximum strategy name length
	MaxDimension   = math.MaxInt32 // Maximum single dimension
)

// validateDims checks decoded dimensions against the limits and returns the
// number of entries.
func validateDims(dims []int) (int, error) {
	size := 1
	for k, d := range dims {
		if d < 0 || d > MaxDimension {
			return 0, &ValidationError{
				Type:    "dimension_limit",
				Field:   fmt.Sprintf("dims[%d]", k),
				Details: fmt.Sprintf("got %d, max %d", d, MaxDimension),
			}
		}
		if d != 0 && size > MaxEntries/d {
			return 0, &ValidationError{
				Type:    "size_limit",
				Field:   "dims",
				Details: fmt.Sprintf("%v exceeds %d entries", dims, MaxEntries),
			}
		}
		size *= d
	}
	return size, nil
}

// validateEntries checks that sparse positions are strictly increasing and
// inside [0, size).
func validateEntries(positions []int, size int) error {
	for k, pos := range positions {
		if pos < 0 || pos >= size {
			return &ValidationError{
				Type:    "out_of_bounds",
				Field:   fmt.Sprintf("entries[%d]", k),
				Details: fmt.Sprintf("position %d outside [0, %d)", pos, size),
			}
		}
		if k > 0 && pos <= positions[k-1] {
			return &ValidationError{
				Type:    "entry_order",
				Field:   fmt.Sprintf("entries[%d]", k),
				Details: fmt.Sprintf("position %d after %d", pos, positions[k-1]),
			}
		}
	}
	return nil
}

// limit checks a decoded count against its maximum.
func limit(field string, n uint64, maxN int) (int, error) {
	if n > uint64(maxN) {
		return 0, &ValidationError{
			Type:    "count_limit",
			Field:   field,
			Details: fmt.Sprintf("got %d, max %d", n, maxN),
		}
	}
	return int(n), nil
}
