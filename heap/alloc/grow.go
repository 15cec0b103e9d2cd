package alloc

import (
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/internal/sysmem"
)

// grow extends the heap by max(need, GrowIncrement) bytes and formats the new
// bytes as one free chunk at the tail. The chunk is not put on the free list;
// the caller hands it straight to place.
func (h *Heap) grow(need uint32) (uint32, error) {
	incr := max(need, uint32(format.Align8(h.cfg.GrowIncrement)))
	if int64(h.end)+int64(incr) > maxHeapSize {
		return 0, fmt.Errorf("%w: growing %d bytes past offset %d would exceed the heap limit",
			ErrNoSpace, incr, h.end)
	}

	fallback, err := h.extend(incr)
	if err != nil {
		return 0, err
	}

	c := h.end
	var prev uint32
	if h.inited {
		prev = h.sizeOf(h.tail)
	} else {
		h.head = c
		h.inited = true
	}
	h.putHeader(c, format.Header{Size: incr, PrevSize: prev})
	h.tail = c
	h.end += incr

	h.stats.GrowCalls++
	h.stats.GrowBytes += int64(incr)
	if fallback {
		h.stats.FallbackMaps++
	}

	logger.L.Debug("heap grown",
		"need", need,
		"bytes", incr,
		"heap", h.end,
		"segments", len(h.segs),
		"fallback", fallback,
	)

	if h.onGrow != nil {
		h.onGrow(int(incr), fallback)
	}
	return c, nil
}

// extend obtains n more bytes at heap offset h.end, first from the Grower and,
// if that fails, from the Mapper. It reports whether the Mapper was used.
func (h *Heap) extend(n uint32) (bool, error) {
	region, err := h.grower.Grow(int(n))
	if err == nil && len(region)-h.primaryLen < int(n) {
		err = fmt.Errorf("grower added %d bytes for a %d-byte growth", len(region)-h.primaryLen, n)
		h.strand(len(region))
	}
	if err == nil {
		h.addPrimary(region, int(n))
		return false, nil
	}

	if h.mapper == nil || h.cfg.DisableFallback {
		logger.L.Error("heap growth failed", "bytes", n, "reason", growthFailure(err), "err", err)
		return false, fmt.Errorf("%w: grow %d bytes: %w", ErrNoSpace, n, err)
	}

	logger.L.Warn("primary growth failed, falling back to anonymous mapping",
		"bytes", n,
		"reason", growthFailure(err),
		"err", err,
	)

	mem, mapErr := h.mapper.Map(int(n))
	if mapErr == nil && len(mem) < int(n) {
		mapErr = fmt.Errorf("mapper returned %d bytes for a %d-byte mapping", len(mem), n)
	}
	if mapErr != nil {
		logger.L.Error("anonymous mapping failed", "bytes", n, "err", mapErr)
		return false, fmt.Errorf("%w: grow %d bytes: %w", ErrNoSpace, n, errors.Join(err, mapErr))
	}

	h.segs = append(h.segs, segment{start: h.end, data: mem[:n:n]})
	// The next primary growth is no longer adjacent to the primary segment.
	h.primarySeg = -1
	return true, nil
}

// strand accounts for a short growth: the Grower's break moved to regionLen
// but the new bytes cannot hold the chunk. They stay outside the heap, and the
// next primary growth opens a new segment past them.
func (h *Heap) strand(regionLen int) {
	lost := regionLen - h.primaryLen
	if lost <= 0 {
		return
	}
	h.stats.StrandedBytes += int64(lost)
	h.primaryLen = regionLen
	h.primarySeg = -1
	logger.L.Warn("short primary growth, bytes stranded", "bytes", lost, "total", h.stats.StrandedBytes)
}

// addPrimary records n new bytes at the end of the Grower region. When they
// follow the primary segment both in the region and in heap offsets, that
// segment is extended; otherwise they open a new one.
func (h *Heap) addPrimary(region []byte, n int) {
	newOff := len(region) - n
	if h.primarySeg >= 0 && newOff == h.primaryLen {
		s := &h.segs[h.primarySeg]
		s.data = region[s.regionOff:len(region):len(region)]
	} else {
		h.segs = append(h.segs, segment{
			start:     h.end,
			data:      region[newOff:len(region):len(region)],
			primary:   true,
			regionOff: newOff,
		})
		h.primarySeg = len(h.segs) - 1
	}
	h.primaryLen = len(region)
}

// growthFailure names the class of a primary growth failure for logs.
func growthFailure(err error) string {
	switch {
	case errors.Is(err, sysmem.ErrNoMem):
		return "ENOMEM: region size limit reached"
	case errors.Is(err, sysmem.ErrAgain):
		return "EAGAIN: pages temporarily unavailable"
	case errors.Is(err, sysmem.ErrClosed):
		return "region closed"
	default:
		return "unknown"
	}
}
