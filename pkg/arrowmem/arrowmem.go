// Package arrowmem lets Apache Arrow place its buffers on a heapkit heap.
//
// Allocator implements memory.Allocator. Buffers are zero-initialised, as
// Arrow expects, and are mapped back to heap pointers on Reallocate and Free.
package arrowmem

import (
	"sync/atomic"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/joshuapare/heapkit/heap/alloc"
)

var _ memory.Allocator = (*Allocator)(nil)

// Allocator serves Arrow buffers from a locked heap.
type Allocator struct {
	h  *alloc.Locked
	sz atomic.Int64
}

// New returns an Allocator over h.
func New(h *alloc.Locked) *Allocator {
	return &Allocator{h: h}
}

// Allocate returns a zeroed buffer of size bytes. It panics if the heap is
// exhausted.
func (a *Allocator) Allocate(size int) []byte {
	if size < 0 {
		panic("arrowmem: negative size")
	}
	p, err := a.h.Calloc(1, size)
	if err != nil {
		panic("arrowmem: " + err.Error())
	}
	a.sz.Add(int64(size))
	return a.h.Bytes(p)[:size]
}

// Reallocate resizes b to size bytes. Bytes beyond the old length are zeroed.
func (a *Allocator) Reallocate(size int, b []byte) []byte {
	if size < 0 {
		panic("arrowmem: negative size")
	}
	if cap(b) == 0 {
		return a.Allocate(size)
	}
	p := a.ptrOf(b)

	// Realloc to 0 frees; keep the block alive for an empty buffer.
	np, err := a.h.Realloc(p, max(size, 1))
	if err != nil {
		panic("arrowmem: " + err.Error())
	}
	a.sz.Add(int64(size - len(b)))

	out := a.h.Bytes(np)[:size]
	if size > len(b) {
		clear(out[len(b):])
	}
	return out
}

// Free returns b to the heap. b must come from this Allocator.
func (a *Allocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	p := a.ptrOf(b)
	if err := a.h.Free(p); err != nil {
		panic("arrowmem: " + err.Error())
	}
	a.sz.Add(-int64(len(b)))
}

// AllocatedBytes returns the total length of the buffers currently outstanding.
func (a *Allocator) AllocatedBytes() int64 { return a.sz.Load() }

// AssertSize fails t if the outstanding bytes differ from sz.
func (a *Allocator) AssertSize(t memory.TestingT, sz int) {
	if got := a.AllocatedBytes(); got != int64(sz) {
		t.Helper()
		t.Errorf("invalid memory size exp=%d, got=%d", sz, got)
	}
}

func (a *Allocator) ptrOf(b []byte) alloc.Ptr {
	p, ok := a.h.PtrOf(b)
	if !ok {
		panic("arrowmem: buffer was not allocated by this heap")
	}
	return p
}
