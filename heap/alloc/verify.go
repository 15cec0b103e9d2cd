package alloc

import (
	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/list"
)

// Check walks the whole heap and the free list and verifies every structural
// invariant. It returns the first violation as an *InvariantError, or nil.
//
// Verified:
//   - chunks tile each segment exactly, every header parses and fits its segment
//   - each chunk's prev_size equals the size of the chunk below it (0 for the head)
//   - no two adjacent chunks of the same segment are both free
//   - the last chunk is the tail and ends at the heap end
//   - the free list holds exactly the free chunks, with consistent links
func (h *Heap) Check() error {
	if !h.inited {
		if !h.free.Empty() || len(h.segs) != 0 {
			return invariantf(0, "uninitialised heap has %d free chunks and %d segments", h.free.Len(), len(h.segs))
		}
		return nil
	}

	var (
		freeCount int
		inUse     int64
		last      uint32
		prevSize  uint32
		prevFree  bool
	)
	next := uint32(0)
	for i := range h.segs {
		s := &h.segs[i]
		if s.start != next {
			return invariantf(s.start, "segment %d starts at 0x%x, expected 0x%x", i, s.start, next)
		}
		prevFree = false
		for local := 0; local < len(s.data); {
			c := s.start + uint32(local)
			hdr, err := format.ParseHeader(s.data, local)
			if err != nil {
				return invariantf(c, "%v", err)
			}
			if hdr.PrevSize != prevSize {
				return invariantf(c, "prev_size %d, chunk below has size %d", hdr.PrevSize, prevSize)
			}
			if !hdr.Used {
				if prevFree {
					return invariantf(c, "adjacent free chunks not coalesced")
				}
				freeCount++
			} else {
				inUse += int64(hdr.Size)
			}
			prevFree = !hdr.Used
			prevSize = hdr.Size
			last = c
			local += int(hdr.Size)
		}
		next = s.end()
	}

	if next != h.end {
		return invariantf(last, "chunks end at 0x%x, heap end is 0x%x", next, h.end)
	}
	if last != h.tail {
		return invariantf(last, "last chunk is 0x%x, tail is 0x%x", last, h.tail)
	}
	if h.head != 0 {
		return invariantf(h.head, "head is not at offset 0")
	}
	if inUse != h.inUse {
		return invariantf(h.head, "in-use bytes %d, counter says %d", inUse, h.inUse)
	}

	return h.checkFreeList(freeCount)
}

// checkFreeList verifies that the list holds want distinct free chunks and
// that every prev link mirrors the next link that reached it.
func (h *Heap) checkFreeList(want int) error {
	seen := make(map[uint32]struct{}, want)
	prev := list.Head
	for c := h.free.Front(); c != list.Head; c = h.free.Next(c) {
		if h.segIndex(c) < 0 {
			return invariantf(c, "free-list entry outside heap")
		}
		if _, dup := seen[c]; dup {
			return invariantf(c, "free list revisits chunk")
		}
		seen[c] = struct{}{}
		if len(seen) > want {
			return invariantf(c, "free list longer than the %d free chunks", want)
		}
		if h.isUsed(c) {
			return invariantf(c, "used chunk on the free list")
		}
		if got := h.free.Prev(c); got != prev {
			return invariantf(c, "prev link 0x%x, expected 0x%x", got, prev)
		}
		prev = c
	}
	if h.free.Back() != prev {
		return invariantf(prev, "list back is 0x%x, last entry is 0x%x", h.free.Back(), prev)
	}
	if len(seen) != want || h.free.Len() != want {
		return invariantf(h.head, "free list has %d entries (len %d), heap has %d free chunks",
			len(seen), h.free.Len(), want)
	}
	return nil
}

// Walk calls fn for every chunk in address order until fn returns false.
func (h *Heap) Walk(fn func(ChunkInfo) bool) {
	if !h.inited {
		return
	}
	for i := range h.segs {
		s := &h.segs[i]
		for local := 0; local < len(s.data); {
			hdr := format.ReadHeader(s.data, local)
			if hdr.Size == 0 {
				panic(invariantf(s.start+uint32(local), "zero-size chunk"))
			}
			info := ChunkInfo{
				Off:      s.start + uint32(local),
				Size:     hdr.Size,
				PrevSize: hdr.PrevSize,
				Used:     hdr.Used,
				Segment:  i,
			}
			if !fn(info) {
				return
			}
			local += int(hdr.Size)
		}
	}
}

// FreeChunks returns the free list in list order, most recently freed first.
func (h *Heap) FreeChunks() []ChunkInfo {
	out := make([]ChunkInfo, 0, h.free.Len())
	for c := range h.free.All() {
		hdr := h.header(c)
		out = append(out, ChunkInfo{
			Off:      c,
			Size:     hdr.Size,
			PrevSize: hdr.PrevSize,
			Used:     hdr.Used,
			Segment:  h.segIndex(c),
		})
	}
	return out
}

// Stats returns the counters together with a fresh occupancy snapshot.
func (h *Heap) Stats() Stats {
	st := h.stats
	st.HeapBytes = int64(h.end)
	st.InUseBytes = h.inUse
	st.FreeBytes = int64(h.end) - h.inUse
	st.FreeChunks = h.free.Len()
	st.Segments = len(h.segs)
	return st
}

// Utilization returns in-use bytes as a fraction of the heap size, or 0 for
// an empty heap.
func (h *Heap) Utilization() float64 {
	if h.end == 0 {
		return 0
	}
	return float64(h.inUse) / float64(h.end)
}
