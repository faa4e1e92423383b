package tensor

import (
	"maps"
	"slices"
	"sync/atomic"
)

// buffer is a reference-counted storage block for Copy-on-Write semantics.
// A tensor may write into its buffer only while refCount == 1; otherwise it
// privatizes a copy first.
type buffer[T any] struct {
	data     T
	refCount atomic.Int32
}

// newBuffer wraps data in a buffer with refCount = 1.
func newBuffer[T any](data T) *buffer[T] {
	b := &buffer[T]{data: data}
	b.refCount.Store(1)
	return b
}

// addRef increments the reference count (for Clone operations).
func (b *buffer[T]) addRef() {
	b.refCount.Add(1)
}

// release decrements the reference count.
func (b *buffer[T]) release() {
	b.refCount.Add(-1)
}

// isUnique returns true if this buffer has only one reference.
func (b *buffer[T]) isUnique() bool {
	return b.refCount.Load() == 1
}

type denseBuffer = buffer[[]float64]

type sparseBuffer = buffer[map[int]float64]

// privatizeDense returns a buffer that is exclusively owned by the caller,
// copying b when it is shared.
func privatizeDense(b *denseBuffer) *denseBuffer {
	if b.isUnique() {
		return b
	}
	own := newBuffer(slices.Clone(b.data))
	b.release()
	return own
}

// privatizeSparse is privatizeDense for sparse storage.
func privatizeSparse(b *sparseBuffer) *sparseBuffer {
	if b.isUnique() {
		return b
	}
	own := newBuffer(maps.Clone(b.data))
	if own.data == nil {
		own.data = make(map[int]float64)
	}
	b.release()
	return own
}
