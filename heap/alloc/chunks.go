package alloc

import "github.com/joshuapare/heapkit/internal/format"

// place hands chunk c (already off the free list) to a request of need bytes,
// splitting off the excess when it can stand as a chunk of its own.
func (h *Heap) place(c, need uint32) {
	if h.sizeOf(c)-need >= minChunkSize {
		h.split(c, need)
	}
	h.setUsed(c, true)
	h.inUse += int64(h.sizeOf(c))
}

// split cuts c down to need bytes. The remainder becomes a free chunk on the
// free list and the boundary tag of the chunk above it is corrected.
// The caller guarantees sizeOf(c)-need >= minChunkSize.
func (h *Heap) split(c, need uint32) uint32 {
	rem := h.sizeOf(c) - need
	h.setSize(c, need)

	r := c + need
	if c == h.tail {
		h.tail = r
	}
	h.putHeader(r, format.Header{Size: rem, PrevSize: need})
	h.free.InsertHead(r)

	if r != h.tail {
		h.setPrevSize(r+rem, rem)
	}
	h.stats.SplitCount++
	return r
}

// coalesce merges the free chunk c, already on the free list, with its free
// neighbours. The upper merge runs first so the lower merge reads a current
// size. It returns the chunk that now holds c's bytes.
func (h *Heap) coalesce(c uint32) uint32 {
	if c == h.head && c == h.tail {
		return c
	}
	if c != h.tail {
		h.mergeNext(c)
	}
	if c != h.head && !h.segmentStart(c) {
		p := c - h.prevSizeOf(c)
		if !h.isUsed(p) {
			// The merged chunk keeps p's identity and list position.
			h.free.Remove(c)
			size := h.sizeOf(p) + h.sizeOf(c)
			h.setSize(p, size)
			if c == h.tail {
				h.tail = p
			} else {
				h.setPrevSize(p+size, size)
			}
			h.stats.CoalesceBackward++
			return p
		}
	}
	return c
}

// mergeNext absorbs the chunk above c into c when it is free and in the same
// segment. c must not be the tail.
func (h *Heap) mergeNext(c uint32) {
	n := c + h.sizeOf(c)
	if h.isUsed(n) || h.segmentStart(n) {
		return
	}
	h.free.Remove(n)
	size := h.sizeOf(c) + h.sizeOf(n)
	h.setSize(c, size)
	if n == h.tail {
		h.tail = c
	} else {
		h.setPrevSize(c+size, size)
	}
	h.stats.CoalesceForward++
}
