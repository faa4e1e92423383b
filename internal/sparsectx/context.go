// Package sparsectx owns the process-wide sparse linear-algebra context.
//
// The context is not safe for concurrent use. Callers obtain exclusive,
// scoped access with Acquire or With; every sparse product and sparse solve
// goes through an Access. Products run on github.com/james-bowman/sparse.
package sparsectx

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensornet/internal/metrics"
)

// Solver statuses. Negative statuses are fatal, positive ones are warnings.
const (
	StatusOK             = 0
	StatusIllConditioned = 1
	StatusSingular       = -1
)

type context struct {
	mu sync.Mutex
}

var (
	shared     *context
	sharedOnce sync.Once

	// fatalf aborts the process on a negative solver status.
	fatalf = klog.Fatalf
)

// SetFatalHook replaces the function called on a negative solver status and
// returns a function restoring the previous one.
func SetFatalHook(fn func(format string, args ...any)) (restore func()) {
	prev := fatalf
	fatalf = fn
	return func() { fatalf = prev }
}

// Access is exclusive access to the shared context. It must be released.
type Access struct {
	ctx      *context
	released bool
}

// Acquire blocks until the shared context is free and returns access to it.
//
// Example:
//
//	acc := sparsectx.Acquire()
//	defer acc.Release()
//	c, err := acc.MatrixMatrixProduct(a, b)
func Acquire() *Access {
	sharedOnce.Do(func() {
		shared = &context{}
		klog.V(2).InfoS("Initialized sparse context")
	})
	shared.mu.Lock()
	metrics.SparseAcquired()
	return &Access{ctx: shared}
}

// Release returns the context. Releasing twice is a no-op.
func (a *Access) Release() {
	if a.released {
		return
	}
	a.released = true
	a.ctx.mu.Unlock()
}

// With runs fn with access to the shared context.
func With(fn func(*Access) error) error {
	acc := Acquire()
	defer acc.Release()
	return fn(acc)
}

func (a *Access) mustHold() {
	if a.released {
		panic("sparsectx: use of released access")
	}
}

// check maps a solver status to the error model: negative statuses are fatal,
// positive statuses are logged and execution continues.
func (a *Access) check(op string, status int, message string) error {
	switch {
	case status < 0:
		err := &StatusError{Status: status, Op: op, Message: message}
		klog.ErrorS(err, "Sparse solver failure", "op", op, "status", status)
		fatalf("sparse solver %s failed with status %d: %s", op, status, message)
		return err
	case status > 0:
		metrics.SolverWarning()
		klog.Warningf("sparse solver %s reported status %d: %s", op, status, message)
	}
	return nil
}

// MatrixMatrixProduct returns lhs·rhs. Entries cancelling to zero are not
// stored.
func (a *Access) MatrixMatrixProduct(lhs, rhs *CSR) (*CSR, error) {
	a.mustHold()
	if lhs.Cols != rhs.Rows {
		return nil, fmt.Errorf("product of %dx%d and %dx%d: %w", lhs.Rows, lhs.Cols, rhs.Rows, rhs.Cols, ErrDimensionMismatch)
	}
	if lhs.m == nil || rhs.m == nil {
		return FromMap(nil, lhs.Rows, rhs.Cols, false), nil
	}

	var product sparse.CSR
	product.Mul(lhs.m, rhs.m)
	// Rebuild to drop explicit zeros left by cancellation.
	return FromMap((&CSR{Rows: lhs.Rows, Cols: rhs.Cols, m: &product}).ToMap(1), lhs.Rows, rhs.Cols, false), nil
}

// SolveDense solves m·x = b for a square m, returning x.
//
// An ill-conditioned system is reported as a warning; a singular one is a
// fatal solver failure.
func (a *Access) SolveDense(m *CSR, b []float64) ([]float64, error) {
	a.mustHold()
	if m.Rows != m.Cols || len(b) != m.Rows {
		return nil, fmt.Errorf("system %dx%d with rhs of length %d: %w", m.Rows, m.Cols, len(b), ErrDimensionMismatch)
	}
	if m.Rows == 0 {
		return []float64{}, nil
	}

	// No sparse direct factorization is available; gonum factorizes the
	// matrix through its mat.Matrix view.
	var lu mat.LU
	lu.Factorize(m.m)

	x := mat.NewVecDense(m.Rows, nil)
	err := lu.SolveVecTo(x, false, mat.NewVecDense(len(b), append([]float64(nil), b...)))
	if err != nil {
		var cond mat.Condition
		if errors.Is(err, mat.ErrSingular) {
			return nil, a.check("solve", StatusSingular, "matrix is singular")
		}
		if !errors.As(err, &cond) {
			return nil, err
		}
		if math.IsInf(float64(cond), 1) {
			return nil, a.check("solve", StatusSingular, "matrix is singular")
		}
		if err := a.check("solve", StatusIllConditioned, fmt.Sprintf("condition number %g", float64(cond))); err != nil {
			return nil, err
		}
	}
	return x.RawVector().Data, nil
}
