package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSingleFreeChunk returns a heap whose chunk at 0 is a free chunk of size
// bytes, fenced above by a used chunk.
func newSingleFreeChunk(t *testing.T, size int) *Heap {
	t.Helper()
	h := newDefaultTestHeap(t)
	p := mustAlloc(t, h, size-headerSize)
	mustAlloc(t, h, 8)
	require.NoError(t, h.Free(p))
	require.Equal(t, uint32(size), chunkAt(t, h, 0).Size)
	return h
}

// TestSplit_KeepsMinChunkRemainder verifies that a remainder of exactly
// MinChunkSize bytes becomes a free chunk of its own.
func TestSplit_KeepsMinChunkRemainder(t *testing.T) {
	h := newSingleFreeChunk(t, 56)

	p := mustAlloc(t, h, 16) // 32-byte chunk, 24 left over
	assert.Equal(t, Ptr(16), p)

	c := chunkAt(t, h, 0)
	assert.Equal(t, uint32(32), c.Size)
	tail := chunkAt(t, h, 32)
	assert.Equal(t, uint32(24), tail.Size)
	assert.Equal(t, uint32(32), tail.PrevSize)
	assert.False(t, tail.Used)
	assert.Contains(t, freeOffsets(h), uint32(32))

	// The fence above the remainder carries the new boundary tag.
	assert.Equal(t, uint32(24), chunkAt(t, h, 56).PrevSize)
	assertInvariants(t, h)
}

// TestSplit_AbsorbsSmallRemainder verifies that a remainder below
// MinChunkSize stays part of the allocated chunk.
func TestSplit_AbsorbsSmallRemainder(t *testing.T) {
	h := newSingleFreeChunk(t, 56)
	splits := h.Stats().SplitCount

	p := mustAlloc(t, h, 32) // 48-byte chunk, 8 left over
	assert.Equal(t, Ptr(16), p)
	assert.Equal(t, uint32(56), chunkAt(t, h, 0).Size)
	assert.Equal(t, 40, h.UsableSize(p))
	assert.NotContains(t, freeOffsets(h), uint32(48))
	assert.Equal(t, splits, h.Stats().SplitCount)
	assertInvariants(t, h)
}

func TestCoalesce_NoFreeNeighbours(t *testing.T) {
	h := newDefaultTestHeap(t)

	mustAlloc(t, h, 8)
	b := mustAlloc(t, h, 8)
	mustAlloc(t, h, 8)

	require.NoError(t, h.Free(b))
	c := chunkAt(t, h, 24)
	assert.Equal(t, uint32(24), c.Size)
	assert.False(t, c.Used)
	assert.Equal(t, uint32(24), freeOffsets(h)[0])
	assert.Zero(t, h.Stats().CoalesceForward+h.Stats().CoalesceBackward)
	assertInvariants(t, h)
}

func TestCoalesce_BothSides(t *testing.T) {
	h := newDefaultTestHeap(t)

	a := mustAlloc(t, h, 8)
	b := mustAlloc(t, h, 8)
	c := mustAlloc(t, h, 8)
	mustAlloc(t, h, 8)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(c))
	require.NoError(t, h.Free(b))

	first := chunkAt(t, h, 0)
	assert.Equal(t, uint32(72), first.Size)
	assert.False(t, first.Used)
	assert.Equal(t, uint32(72), chunkAt(t, h, 72).PrevSize)
	assert.Len(t, h.FreeChunks(), 2, "merged chunk plus the remainder")
	assertInvariants(t, h)
}

func TestCoalesce_TailBecomesMergedChunk(t *testing.T) {
	h := newDefaultTestHeap(t)

	a := mustAlloc(t, h, 8)
	b := mustAlloc(t, h, 4096-24-headerSize) // takes the rest of the first growth
	require.Equal(t, uint32(24), h.tail)

	require.NoError(t, h.Free(a))
	require.NoError(t, h.Free(b))
	assert.Equal(t, uint32(0), h.tail)
	assert.Equal(t, []ChunkInfo{{Off: 0, Size: 4096}}, chunks(h))
	assertInvariants(t, h)
}

func TestCoalesce_FreeEverythingInRandomOrder(t *testing.T) {
	h := newDefaultTestHeap(t)

	var ptrs []Ptr
	for i := range 40 {
		ptrs = append(ptrs, mustAlloc(t, h, 8+i*13))
	}
	for _, i := range []int{5, 0, 39, 17, 18, 16, 1, 2, 3, 4} {
		require.NoError(t, h.Free(ptrs[i]))
		ptrs[i] = Nil
		assertInvariants(t, h)
	}
	for _, p := range ptrs {
		if p != Nil {
			require.NoError(t, h.Free(p))
		}
	}

	all := chunks(h)
	require.Len(t, all, 1)
	assert.False(t, all[0].Used)
	assert.Equal(t, uint32(h.HeapSize()), all[0].Size)
	assertInvariants(t, h)
}
