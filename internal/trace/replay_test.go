package trace

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/sysmem"
)

func newHeap(t testing.TB, config *alloc.Config) *alloc.Heap {
	t.Helper()
	h, err := alloc.New(sysmem.NewFixed(8<<20), sysmem.NewSliceMapper(0), config)
	require.NoError(t, err)
	return h
}

func heapFactory(config *alloc.Config) HeapFactory {
	return func() (*alloc.Heap, func(), error) {
		brk := sysmem.NewFixed(8 << 20)
		h, err := alloc.New(brk, sysmem.NewSliceMapper(0), config)
		return h, func() { _ = brk.Close() }, err
	}
}

const balancedTrace = `4096
3
7
1
a 0 100
a 1 200
r 0 300
a 2 50
f 1
f 0
f 2
`

func TestReplay(t *testing.T) {
	tr, err := Parse(strings.NewReader(balancedTrace))
	require.NoError(t, err)
	tr.Name = "balanced"

	h := newHeap(t, nil)
	res, err := Replay(h, tr)
	require.NoError(t, err)

	assert.Equal(t, "balanced", res.Name)
	assert.Equal(t, 7, res.Ops)
	// Peak live payload: 300 + 200 + 50 after the fourth op.
	assert.Equal(t, int64(550), res.PeakPayload)
	assert.Equal(t, h.HeapSize(), res.HeapSize)
	assert.InDelta(t, 550.0/float64(res.HeapSize), res.Utilization, 1e-9)
	assert.Equal(t, 4, res.Stats.AllocCalls, "three allocs plus one from the moving realloc")
	assert.Zero(t, res.Stats.InUseBytes, "every block freed")
}

func TestReplay_AllPoliciesOnGeneratedTraces(t *testing.T) {
	for _, cfg := range []*alloc.Config{&alloc.ConfigBestFit, &alloc.ConfigFirstFit, &alloc.ConfigLastFit, &alloc.ConfigCompact} {
		t.Run(cfg.Name, func(t *testing.T) {
			for seed := range uint64(5) {
				tr := Generate(seed, 2000, 8192)
				res, err := ReplayWith(newHeap(t, cfg), tr, Options{CheckEvery: 25})
				require.NoError(t, err, "seed %d", seed)
				assert.Greater(t, res.Utilization, 0.0)
				assert.LessOrEqual(t, res.Utilization, 1.0)
			}
		})
	}
}

func TestReplay_BadOps(t *testing.T) {
	tests := []struct {
		name string
		ops  []Op
	}{
		{"free of dead id", []Op{{Kind: Free, ID: 0}}},
		{"double alloc", []Op{{Kind: Alloc, ID: 0, Size: 8}, {Kind: Alloc, ID: 0, Size: 8}}},
		{"unknown kind", []Op{{Kind: 'x', ID: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Trace{Name: tt.name, NumIDs: 1, Ops: tt.ops}
			_, err := Replay(newHeap(t, nil), tr)
			require.ErrorIs(t, err, ErrBadOp)
		})
	}
}

func TestReplay_ExhaustionReported(t *testing.T) {
	h, err := alloc.New(sysmem.NewFixed(4096), nil, nil)
	require.NoError(t, err)

	tr := &Trace{Name: "big", NumIDs: 1, Ops: []Op{{Kind: Alloc, ID: 0, Size: 1 << 20}}}
	res, err := Replay(h, tr)
	require.ErrorIs(t, err, alloc.ErrNoSpace)
	assert.Contains(t, err.Error(), "op 0")
	assert.Zero(t, res.Ops)
}

func TestReplay_ReallocToZeroAndFromDead(t *testing.T) {
	tr := &Trace{Name: "edge", NumIDs: 2, Ops: []Op{
		{Kind: Alloc, ID: 0, Size: 64},
		{Kind: Realloc, ID: 0, Size: 0},  // frees id 0
		{Kind: Realloc, ID: 1, Size: 32}, // behaves like alloc
		{Kind: Free, ID: 1},
	}}
	_, err := Replay(newHeap(t, nil), tr)
	require.NoError(t, err)
}

func TestReplay_SkipVerify(t *testing.T) {
	tr := Generate(9, 300, 512)
	_, err := ReplayWith(newHeap(t, nil), tr, Options{SkipVerify: true})
	require.NoError(t, err)
}

func TestReplayAll(t *testing.T) {
	traces := []*Trace{Generate(1, 400, 1024), Generate(2, 400, 1024), Generate(3, 400, 1024)}

	var built atomic.Int32
	factory := heapFactory(nil)
	counting := func() (*alloc.Heap, func(), error) {
		built.Add(1)
		return factory()
	}

	results, err := ReplayAll(context.Background(), traces, counting, DefaultOptions)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int32(3), built.Load())
	for i, res := range results {
		assert.Equal(t, traces[i].Name, res.Name)
		assert.Equal(t, len(traces[i].Ops), res.Ops)
	}
}

func TestReplayAll_FirstErrorWins(t *testing.T) {
	bad := &Trace{Name: "bad", NumIDs: 1, Ops: []Op{{Kind: Free, ID: 0}}}
	traces := []*Trace{Generate(1, 200, 512), bad}

	_, err := ReplayAll(context.Background(), traces, heapFactory(nil), DefaultOptions)
	require.ErrorIs(t, err, ErrBadOp)
	assert.Contains(t, err.Error(), "bad")
}

func TestReplayAll_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReplayAll(ctx, []*Trace{Generate(1, 100, 64)}, heapFactory(nil), DefaultOptions)
	require.ErrorIs(t, err, context.Canceled)
}
