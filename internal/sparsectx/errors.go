package sparsectx

import (
	"errors"
	"fmt"
)

var (
	// ErrExternalSolverFailure is matched by every negative solver status.
	ErrExternalSolverFailure = errors.New("sparse solver failure")

	// ErrDimensionMismatch is returned for operands of incompatible shape.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// StatusError carries a negative status reported by the sparse solver.
type StatusError struct {
	Status  int
	Op      string
	Message string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d: %s", ErrExternalSolverFailure, e.Op, e.Status, e.Message)
}

// Unwrap allows errors.Is(err, ErrExternalSolverFailure).
func (e *StatusError) Unwrap() error {
	return ErrExternalSolverFailure
}
