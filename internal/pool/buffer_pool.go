// Package pool provides reusable scratch buffers for block reads.
// Uses sync.Pool per power-of-two size class so raw and decoded block bytes
// can be recycled without tracking their exact sizes.
package pool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	// minClassShift is the smallest pooled size class (4 KiB).
	minClassShift = 12
	// maxClassShift is the largest pooled size class (64 MiB).
	maxClassShift = 26

	numClasses = maxClassShift - minClassShift + 1
)

// Buffer is a pooled byte slice. Release returns it to its pool; the bytes must
// not be used afterwards.
type Buffer struct {
	B     []byte
	pool  *BufferPool
	class int
}

// Bytes returns the buffer contents.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.B
}

// Len returns the length of the buffer contents.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.B)
}

// Release hands the buffer back to its pool. Safe to call on nil and on
// buffers that were never pooled.
func (b *Buffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	p := b.pool
	b.pool = nil
	p.outstanding.Add(-1)
	if b.class < 0 {
		return
	}
	b.B = b.B[:0]
	p.classes[b.class].Put(b)
}

// BufferPool hands out byte buffers grouped by size class.
type BufferPool struct {
	classes [numClasses]sync.Pool

	gets        atomic.Int64
	allocs      atomic.Int64
	outstanding atomic.Int64
}

// NewBufferPool creates an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// classFor returns the size class for n bytes, or -1 when n is too large to pool.
func classFor(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// Get returns a buffer of length n.
func (p *BufferPool) Get(n int) *Buffer {
	p.gets.Add(1)
	p.outstanding.Add(1)

	class := classFor(n)
	if class < 0 {
		p.allocs.Add(1)
		return &Buffer{B: make([]byte, n), pool: p, class: -1}
	}

	if v := p.classes[class].Get(); v != nil {
		b := v.(*Buffer)
		b.B = b.B[:n]
		b.pool = p
		return b
	}

	p.allocs.Add(1)
	size := 1 << (class + minClassShift)
	return &Buffer{B: make([]byte, n, size), pool: p, class: class}
}

// Stats reports how many buffers were requested, freshly allocated, and are
// currently checked out.
func (p *BufferPool) Stats() (gets, allocs, outstanding int64) {
	return p.gets.Load(), p.allocs.Load(), p.outstanding.Load()
}
