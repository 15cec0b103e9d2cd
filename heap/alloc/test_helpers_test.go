package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/internal/sysmem"
)

// ============================================================================
// Heap Construction Utilities
// ============================================================================

// newTestHeap builds a heap over a Go-memory break of primary bytes and a
// Go-memory mapper limited to mapLimit bytes (0 = unlimited).
func newTestHeap(t testing.TB, config *Config, primary, mapLimit int) (*Heap, *sysmem.Break, *sysmem.Anon) {
	t.Helper()

	brk := sysmem.NewFixed(primary)
	mapper := sysmem.NewSliceMapper(mapLimit)
	h, err := New(brk, mapper, config)
	require.NoError(t, err)
	return h, brk, mapper
}

// newDefaultTestHeap is a heap with the default config and 1 MiB of primary space.
func newDefaultTestHeap(t testing.TB) *Heap {
	t.Helper()
	h, _, _ := newTestHeap(t, nil, 1<<20, 0)
	return h
}

// ============================================================================
// Inspection Utilities
// ============================================================================

// assertInvariants fails the test if Check reports a violation.
func assertInvariants(t testing.TB, h *Heap) {
	t.Helper()
	require.NoError(t, h.Check(), "heap invariants")
}

// chunks returns every chunk in address order.
func chunks(h *Heap) []ChunkInfo {
	var out []ChunkInfo
	h.Walk(func(c ChunkInfo) bool {
		out = append(out, c)
		return true
	})
	return out
}

// chunkAt returns the chunk starting at off.
func chunkAt(t testing.TB, h *Heap, off uint32) ChunkInfo {
	t.Helper()
	for _, c := range chunks(h) {
		if c.Off == off {
			return c
		}
	}
	t.Fatalf("no chunk at 0x%x", off)
	return ChunkInfo{}
}

// freeOffsets returns the free list offsets in list order.
func freeOffsets(h *Heap) []uint32 {
	var out []uint32
	for _, c := range h.FreeChunks() {
		out = append(out, c.Off)
	}
	return out
}

// mustAlloc allocates size bytes or fails the test.
func mustAlloc(t testing.TB, h *Heap, size int) Ptr {
	t.Helper()
	p, err := h.Alloc(size)
	require.NoError(t, err)
	require.NotEqual(t, Nil, p)
	return p
}

// fill writes a byte pattern derived from seed into b.
func fill(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

// verifyFill reports whether b still holds the pattern written by fill.
func verifyFill(b []byte, seed byte) bool {
	for i := range b {
		if b[i] != seed+byte(i) {
			return false
		}
	}
	return true
}
