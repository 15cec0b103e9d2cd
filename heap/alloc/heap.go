package alloc

import (
	"errors"
	"sort"

	"github.com/joshuapare/heapkit/internal/format"
	"github.com/joshuapare/heapkit/internal/list"
	"github.com/joshuapare/heapkit/internal/sysmem"
)

// Debug flag - set to true to run Check after every mutating operation (compile-time toggle).
const debugAlloc = false

const (
	headerSize   = format.HeaderSize
	minChunkSize = format.MinChunkSize

	// maxHeapSize bounds the heap offset space. Offsets, sizes and free-list
	// links are 32-bit, and list.Head must never be a chunk offset.
	maxHeapSize int64 = format.MaxChunkSize
)

// segment is a physically contiguous piece of the heap offset space.
type segment struct {
	start     uint32 // heap offset of data[0]
	data      []byte
	primary   bool // obtained from the Grower
	regionOff int  // offset of data[0] within the Grower region (primary only)
}

func (s *segment) end() uint32 { return s.start + uint32(len(s.data)) }

// Heap is a free-list allocator over memory obtained from a sysmem.Grower,
// falling back to a sysmem.Mapper when the Grower fails.
//
// The heap range starts empty and is initialised lazily by the first
// allocation. It grows monotonically and is never returned to the system.
type Heap struct {
	grower sysmem.Grower
	mapper sysmem.Mapper
	cfg    Config

	// Segments in heap-offset order; hint caches the last lookup.
	segs       []segment
	hint       int
	primaryLen int // bytes of the Grower region consumed so far
	primarySeg int // segment the next primary growth extends, -1 if none

	// Free chunks, most recently freed first.
	free list.List

	// Heap range: first chunk, last chunk, and one past the last chunk.
	head   uint32
	tail   uint32
	end    uint32
	inited bool

	inUse int64
	stats Stats

	// Test hook: called after every growth (nil in production)
	onGrow func(n int, fallback bool)
}

// New creates a heap that grows through grower and falls back to mapper.
// Either may be nil, but not both. A nil config means DefaultConfig.
func New(grower sysmem.Grower, mapper sysmem.Mapper, config *Config) (*Heap, error) {
	if config == nil {
		config = &DefaultConfig
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	if grower == nil && mapper == nil {
		return nil, errors.New("alloc: need a grower or a mapper")
	}
	if grower == nil {
		grower = sysmem.Failing{}
	}

	h := &Heap{
		grower:     grower,
		mapper:     mapper,
		cfg:        *config,
		segs:       make([]segment, 0, 4),
		primarySeg: -1,
	}
	h.free.Init((*freeLinks)(h))
	return h, nil
}

// Config returns the configuration the heap was built with.
func (h *Heap) Config() Config { return h.cfg }

// HeapLo returns the offset of the first chunk. It is 0 once the heap is initialised.
func (h *Heap) HeapLo() uint32 { return h.head }

// HeapHi returns the offset of the last byte of the heap, or 0 for an empty heap.
func (h *Heap) HeapHi() uint32 {
	if !h.inited {
		return 0
	}
	return h.end - 1
}

// HeapSize returns the number of bytes tiled by chunks.
func (h *Heap) HeapSize() int { return int(h.end) }

// ============================================================================
// Segment lookup
// ============================================================================

// segIndex returns the index of the segment containing off, or -1.
func (h *Heap) segIndex(off uint32) int {
	if h.hint < len(h.segs) {
		if s := &h.segs[h.hint]; off >= s.start && off < s.end() {
			return h.hint
		}
	}
	i := sort.Search(len(h.segs), func(i int) bool { return h.segs[i].end() > off })
	if i == len(h.segs) || off < h.segs[i].start {
		return -1
	}
	h.hint = i
	return i
}

// segmentStart reports whether off is the first byte of a segment.
func (h *Heap) segmentStart(off uint32) bool {
	i := h.segIndex(off)
	return i >= 0 && h.segs[i].start == off
}

// loc resolves a chunk offset to its segment bytes and the index within them.
// An offset outside every segment means the chunk graph is corrupt.
func (h *Heap) loc(c uint32) ([]byte, int) {
	i := h.segIndex(c)
	if i < 0 {
		panic(invariantf(c, "offset outside heap [0x%x, 0x%x)", h.head, h.end))
	}
	s := &h.segs[i]
	return s.data, int(c - s.start)
}

// ============================================================================
// Header accessors
// ============================================================================

func (h *Heap) header(c uint32) format.Header {
	b, i := h.loc(c)
	return format.ReadHeader(b, i)
}

func (h *Heap) putHeader(c uint32, hdr format.Header) {
	b, i := h.loc(c)
	format.PutHeader(b, i, hdr)
}

func (h *Heap) sizeOf(c uint32) uint32 {
	b, i := h.loc(c)
	return format.Size(b, i)
}

func (h *Heap) prevSizeOf(c uint32) uint32 {
	b, i := h.loc(c)
	return format.PrevSize(b, i)
}

func (h *Heap) isUsed(c uint32) bool {
	b, i := h.loc(c)
	return format.Used(b, i)
}

func (h *Heap) setSize(c, v uint32) {
	b, i := h.loc(c)
	format.SetSize(b, i, v)
}

func (h *Heap) setPrevSize(c, v uint32) {
	b, i := h.loc(c)
	format.SetPrevSize(b, i, v)
}

func (h *Heap) setUsed(c uint32, used bool) {
	b, i := h.loc(c)
	format.SetUsed(b, i, used)
}

// freeLinks exposes the free-list links stored in chunk payloads to internal/list.
type freeLinks Heap

func (l *freeLinks) Next(c uint32) uint32 {
	b, i := (*Heap)(l).loc(c)
	return format.LinkNext(b, i)
}

func (l *freeLinks) Prev(c uint32) uint32 {
	b, i := (*Heap)(l).loc(c)
	return format.LinkPrev(b, i)
}

func (l *freeLinks) SetNext(c, v uint32) {
	b, i := (*Heap)(l).loc(c)
	format.SetLinkNext(b, i, v)
}

func (l *freeLinks) SetPrev(c, v uint32) {
	b, i := (*Heap)(l).loc(c)
	format.SetLinkPrev(b, i, v)
}
