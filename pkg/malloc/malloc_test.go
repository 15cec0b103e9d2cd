package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// useSmallHeap gives each test a fresh default heap with a 1 MiB reservation.
func useSmallHeap(t *testing.T) {
	t.Helper()
	require.NoError(t, reset())
	cfg := alloc.DefaultConfig
	cfg.MaxHeap = 1 << 20
	require.NoError(t, Configure(cfg))
	t.Cleanup(func() { _ = reset() })
}

func TestMallocFree(t *testing.T) {
	useSmallHeap(t)

	p := Malloc(100)
	require.NotEqual(t, alloc.Nil, p)
	b := Bytes(p)
	require.Len(t, b, 104)
	for i := range b {
		b[i] = byte(i)
	}

	q := Malloc(100)
	require.NotEqual(t, p, q)
	assert.Equal(t, byte(99), Bytes(p)[99])

	Free(p)
	Free(q)
	Free(alloc.Nil)

	h, err := Default()
	require.NoError(t, err)
	require.NoError(t, h.Check())
	assert.Zero(t, h.Stats().InUseBytes)
}

func TestCalloc(t *testing.T) {
	useSmallHeap(t)

	p := Calloc(10, 10)
	require.NotEqual(t, alloc.Nil, p)
	for _, v := range Bytes(p) {
		require.Zero(t, v)
	}

	assert.Equal(t, alloc.Nil, Calloc(1<<40, 1<<40), "overflow yields Nil")
}

func TestRealloc(t *testing.T) {
	useSmallHeap(t)

	p := Realloc(alloc.Nil, 16)
	require.NotEqual(t, alloc.Nil, p)
	copy(Bytes(p), "0123456789abcdef")

	q := Realloc(p, 4000)
	require.NotEqual(t, alloc.Nil, q)
	assert.Equal(t, "0123456789abcdef", string(Bytes(q)[:16]))

	assert.Equal(t, alloc.Nil, Realloc(q, 0))
}

func TestExhaustionReturnsNil(t *testing.T) {
	useSmallHeap(t)

	// Larger than any chunk can describe.
	assert.Equal(t, alloc.Nil, Malloc(1<<40))
}

func TestFreeMisusePanics(t *testing.T) {
	useSmallHeap(t)

	p := Malloc(8)
	Free(p)
	assert.Panics(t, func() { Free(p) })
}

func TestConfigureAfterStart(t *testing.T) {
	useSmallHeap(t)

	Malloc(1)
	require.ErrorIs(t, Configure(alloc.ConfigFirstFit), ErrStarted)

	h, err := Default()
	require.NoError(t, err)
	var cfg alloc.Config
	h.Do(func(h *alloc.Heap) { cfg = h.Config() })
	assert.Equal(t, 1<<20, cfg.MaxHeap)
}

func TestInvalidConfig(t *testing.T) {
	require.NoError(t, reset())
	t.Cleanup(func() { _ = reset() })

	cfg := alloc.DefaultConfig
	cfg.MaxHeap = 1 << 20
	cfg.GrowIncrement = -1
	require.NoError(t, Configure(cfg))

	_, err := Default()
	require.Error(t, err)
	assert.Equal(t, alloc.Nil, Malloc(8))
	assert.Nil(t, Bytes(alloc.Ptr(16)))
}
