// Package pool provides typed wrappers around sync.Pool.
package pool

import (
	"bytes"
	"sync"
)

// Pool is a generic wrapper around sync.Pool.
type Pool[T any] struct {
	internal sync.Pool
}

// New creates a new Pool with the given constructor.
func New[T any](newFn func() T) *Pool[T] {
	return &Pool[T]{
		internal: sync.Pool{
			New: func() any {
				return newFn()
			},
		},
	}
}

// Get retrieves an item from the pool.
func (p *Pool[T]) Get() T {
	return p.internal.Get().(T)
}

// Put returns an item to the pool.
func (p *Pool[T]) Put(item T) {
	p.internal.Put(item)
}

// maxRetainedBuffer caps the capacity of buffers returned to a Buffers pool.
const maxRetainedBuffer = 64 << 10

// Buffers pools bytes.Buffer values used to read HTTP response bodies.
type Buffers struct {
	p *Pool[*bytes.Buffer]
}

// NewBuffers creates an empty buffer pool.
func NewBuffers() *Buffers {
	return &Buffers{p: New(func() *bytes.Buffer { return new(bytes.Buffer) })}
}

// Get returns an empty buffer.
func (b *Buffers) Get() *bytes.Buffer {
	buf := b.p.Get()
	buf.Reset()
	return buf
}

// Put returns buf to the pool. Oversized buffers are dropped.
func (b *Buffers) Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxRetainedBuffer {
		return
	}
	b.p.Put(buf)
}
