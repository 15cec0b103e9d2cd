package alloc

import "github.com/joshuapare/heapkit/internal/list"

// findFit scans the free list once for a chunk of at least need bytes,
// chosen according to the configured FitPolicy. On a hit the chunk is
// unlinked and marked used before it is returned.
func (h *Heap) findFit(need uint32) (uint32, bool) {
	best := list.Head
	var bestSize uint32

scan:
	for c := range h.free.All() {
		size := h.sizeOf(c)
		if size < need {
			continue
		}
		switch h.cfg.Policy {
		case FirstFit:
			best = c
			break scan
		case LastFit:
			best = c
		default:
			if best == list.Head || size < bestSize {
				best, bestSize = c, size
				if size == need {
					break scan
				}
			}
		}
	}

	if best == list.Head {
		return 0, false
	}
	h.free.Remove(best)
	h.setUsed(best, true)
	return best, true
}
