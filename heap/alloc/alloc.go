package alloc

import (
	"fmt"
	"unsafe"

	"github.com/JohnCGriffin/overflow"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
)

// chunkSize converts a request into a chunk footprint.
func chunkSize(size int) (uint32, error) {
	if size < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	if int64(size) > format.MaxRequestSize {
		return 0, fmt.Errorf("%w: request of %d bytes exceeds the %d-byte chunk limit",
			ErrNoSpace, size, int64(format.MaxRequestSize))
	}
	return format.AlignChunkSize(size), nil
}

// Alloc returns a pointer to at least size uninitialised, 8-byte aligned bytes.
// A size of 0 is served like the minimum allocation. When neither the free
// list nor growth can satisfy the request it returns Nil and an error wrapping
// ErrNoSpace.
func (h *Heap) Alloc(size int) (Ptr, error) {
	h.stats.AllocCalls++

	need, err := chunkSize(size)
	if err != nil {
		h.stats.Failed++
		return Nil, err
	}

	c, ok := h.findFit(need)
	if ok {
		h.stats.FastPath++
	} else {
		c, err = h.grow(need)
		if err != nil {
			h.stats.Failed++
			logger.L.Error("allocation failed", "size", size, "need", need, "heap", h.end, "err", err)
			return Nil, err
		}
		h.stats.SlowPath++
	}

	h.place(c, need)
	h.debugCheck()
	return Ptr(format.ChunkToMem(c)), nil
}

// Calloc allocates count*elemSize bytes and zeroes them.
// It returns ErrOverflow if the product does not fit in an int.
func (h *Heap) Calloc(count, elemSize int) (Ptr, error) {
	h.stats.CallocCalls++

	size, ok := overflow.Mul(count, elemSize)
	if !ok || count < 0 || elemSize < 0 {
		return Nil, fmt.Errorf("%w: %d * %d", ErrOverflow, count, elemSize)
	}
	p, err := h.Alloc(size)
	if err != nil {
		return Nil, err
	}
	clear(h.payload(format.MemToChunk(uint32(p))))
	return p, nil
}

// Realloc resizes the block at p to size bytes.
//
//   - p == Nil behaves like Alloc(size).
//   - size == 0 frees p and returns Nil.
//   - Shrinking, or a size that still fits, keeps p; excess that can stand as
//     a chunk is split off and freed.
//   - Growing moves the data to a new block and frees p. If the new block
//     cannot be allocated, p is left intact and the error wraps ErrNoSpace.
func (h *Heap) Realloc(p Ptr, size int) (Ptr, error) {
	h.stats.ReallocCalls++

	if p == Nil {
		return h.Alloc(size)
	}
	if size == 0 {
		return Nil, h.Free(p)
	}

	need, err := chunkSize(size)
	if err != nil {
		return Nil, err
	}
	c, err := h.chunkOf(p)
	if err != nil {
		return Nil, err
	}
	if !h.isUsed(c) {
		return Nil, fmt.Errorf("%w: realloc of free chunk at 0x%x", ErrBadPtr, c)
	}

	cur := h.sizeOf(c)
	switch {
	case cur == need, cur > need && cur-need < minChunkSize:
		h.stats.InPlaceRealloc++
		return p, nil

	case cur > need:
		r := h.split(c, need)
		h.inUse -= int64(cur - need)
		if r != h.tail {
			h.mergeNext(r)
		}
		h.stats.InPlaceRealloc++
		h.debugCheck()
		return p, nil
	}

	np, err := h.Alloc(size)
	if err != nil {
		return Nil, err
	}
	copy(h.payload(format.MemToChunk(uint32(np))), h.payload(c))
	h.release(c)
	h.debugCheck()
	return np, nil
}

// Free returns the block at p to the heap. Free(Nil) is a no-op.
//
// Passing a pointer this heap did not hand out is undefined; the common cases
// are detected and reported as ErrBadPtr or ErrDoubleFree without touching
// the heap.
func (h *Heap) Free(p Ptr) error {
	if p == Nil {
		return nil
	}
	c, err := h.chunkOf(p)
	if err != nil {
		return err
	}
	if !h.isUsed(c) {
		return fmt.Errorf("%w: chunk at 0x%x", ErrDoubleFree, c)
	}
	h.release(c)
	h.debugCheck()
	return nil
}

// release marks the used chunk c free, links it at the list head and merges it.
func (h *Heap) release(c uint32) {
	h.stats.FreeCalls++
	h.inUse -= int64(h.sizeOf(c))
	h.setUsed(c, false)
	h.free.InsertHead(c)
	h.coalesce(c)
}

// Bytes returns the usable payload of the live block at p, or nil if p is not
// a live block. The slice aliases heap memory and is valid until p is freed
// or moved by Realloc.
func (h *Heap) Bytes(p Ptr) []byte {
	c, err := h.chunkOf(p)
	if err != nil || !h.isUsed(c) {
		return nil
	}
	return h.payload(c)
}

// UsableSize returns the number of payload bytes available at p, or 0 if p is
// not a live block.
func (h *Heap) UsableSize(p Ptr) int {
	return len(h.Bytes(p))
}

// PtrOf maps a slice obtained from Bytes back to its Ptr. It reports false if
// b does not start at a payload of this heap.
func (h *Heap) PtrOf(b []byte) (Ptr, bool) {
	if cap(b) == 0 {
		return Nil, false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	for i := range h.segs {
		s := &h.segs[i]
		base := uintptr(unsafe.Pointer(unsafe.SliceData(s.data)))
		if addr < base || addr >= base+uintptr(len(s.data)) {
			continue
		}
		p := Ptr(s.start + uint32(addr-base))
		c, err := h.chunkOf(p)
		if err != nil || !h.isUsed(c) {
			return Nil, false
		}
		return p, true
	}
	return Nil, false
}

// payload returns the payload bytes of chunk c.
func (h *Heap) payload(c uint32) []byte {
	b, i := h.loc(c)
	end := i + int(format.Size(b, i))
	return b[i+headerSize : end : end]
}

// chunkOf maps a payload pointer to its chunk and validates that the chunk
// header is plausible: inside a segment, aligned, and (unless disabled)
// carrying a matching check word.
func (h *Heap) chunkOf(p Ptr) (uint32, error) {
	off := uint32(p)
	if !h.inited || off < headerSize || off >= h.end || !format.IsAligned8(off) {
		return 0, fmt.Errorf("%w: 0x%x outside heap", ErrBadPtr, off)
	}
	c := format.MemToChunk(off)
	i := h.segIndex(c)
	if i < 0 {
		return 0, fmt.Errorf("%w: 0x%x outside heap", ErrBadPtr, off)
	}
	s := &h.segs[i]
	local := int(c - s.start)
	if h.cfg.SkipHeaderCheck {
		if local+headerSize > len(s.data) {
			return 0, fmt.Errorf("%w: 0x%x crosses a segment end", ErrBadPtr, off)
		}
		return c, nil
	}
	if _, err := format.ParseHeader(s.data, local); err != nil {
		return 0, fmt.Errorf("%w: 0x%x: %w", ErrBadPtr, off, err)
	}
	return c, nil
}

func (h *Heap) debugCheck() {
	if !debugAlloc {
		return
	}
	if err := h.Check(); err != nil {
		panic(err)
	}
}
