package trace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// ErrCorrupt indicates a block's contents changed while it was live.
	ErrCorrupt = errors.New("trace: block contents corrupted")

	// ErrOverlap indicates two live blocks share bytes.
	ErrOverlap = errors.New("trace: live blocks overlap")

	// ErrBadOp indicates an op that does not fit the live set (free of a dead id, double alloc).
	ErrBadOp = errors.New("trace: invalid operation")
)

// Options tunes Replay.
type Options struct {
	// CheckEvery runs Heap.Check after every n ops. 0 disables periodic checks;
	// the final check always runs.
	CheckEvery int

	// SkipVerify disables pattern filling and verification.
	SkipVerify bool
}

// DefaultOptions checks invariants every 64 ops and verifies block contents.
var DefaultOptions = Options{CheckEvery: 64}

// Result summarises one replay.
type Result struct {
	Name        string
	Ops         int
	PeakPayload int64   // maximum total requested bytes live at once
	HeapSize    int     // heap size after the last op
	Utilization float64 // PeakPayload / HeapSize
	Elapsed     time.Duration
	Stats       alloc.Stats
}

type block struct {
	p    alloc.Ptr
	size int
}

type span struct {
	lo, hi uint32
	id     int
}

type replayer struct {
	h     *alloc.Heap
	opts  Options
	live  map[int]block
	spans []span // live payloads, sorted by lo
	total int64
	peak  int64
}

// Replay runs tr against h with DefaultOptions.
func Replay(h *alloc.Heap, tr *Trace) (Result, error) {
	return ReplayWith(h, tr, DefaultOptions)
}

// ReplayWith runs every op of tr against h. Each block is filled with a
// pattern derived from its id; the pattern is verified before the block is
// freed and after it is reallocated. Allocation failure, corruption, overlap
// and invariant violations stop the replay with an error naming the op.
func ReplayWith(h *alloc.Heap, tr *Trace, opts Options) (Result, error) {
	r := &replayer{
		h:    h,
		opts: opts,
		live: make(map[int]block, tr.NumIDs),
	}
	res := Result{Name: tr.Name}

	start := time.Now()
	for i, op := range tr.Ops {
		if err := r.step(op); err != nil {
			return res, fmt.Errorf("%s: op %d (%s %d): %w", tr.Name, i, op.Kind, op.ID, err)
		}
		res.Ops++
		if opts.CheckEvery > 0 && (i+1)%opts.CheckEvery == 0 {
			if err := h.Check(); err != nil {
				return res, fmt.Errorf("%s: after op %d: %w", tr.Name, i, err)
			}
		}
	}
	res.Elapsed = time.Since(start)

	if err := h.Check(); err != nil {
		return res, fmt.Errorf("%s: final check: %w", tr.Name, err)
	}

	res.PeakPayload = r.peak
	res.HeapSize = h.HeapSize()
	if res.HeapSize > 0 {
		res.Utilization = float64(r.peak) / float64(res.HeapSize)
	}
	res.Stats = h.Stats()

	logger.L.Debug("trace replayed",
		"trace", tr.Name,
		"ops", res.Ops,
		"heap", res.HeapSize,
		"util", res.Utilization,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

func (r *replayer) step(op Op) error {
	switch op.Kind {
	case Alloc:
		if _, ok := r.live[op.ID]; ok {
			return fmt.Errorf("%w: id %d already live", ErrBadOp, op.ID)
		}
		p, err := r.h.Alloc(op.Size)
		if err != nil {
			return err
		}
		return r.add(op.ID, block{p, op.Size})

	case Realloc:
		old, ok := r.live[op.ID]
		if ok {
			if err := r.verify(op.ID, old); err != nil {
				return err
			}
			r.remove(op.ID, old)
		}
		p, err := r.h.Realloc(old.p, op.Size)
		if err != nil {
			if ok {
				// The old block is still live after a failed realloc.
				_ = r.add(op.ID, old)
			}
			return err
		}
		if p == alloc.Nil {
			return nil
		}
		nb := block{p, op.Size}
		if err := r.verifyPrefix(op.ID, nb, min(old.size, op.Size)); err != nil {
			return fmt.Errorf("realloc lost data: %w", err)
		}
		return r.add(op.ID, nb)

	case Free:
		b, ok := r.live[op.ID]
		if !ok {
			return fmt.Errorf("%w: id %d not live", ErrBadOp, op.ID)
		}
		if err := r.verify(op.ID, b); err != nil {
			return err
		}
		r.remove(op.ID, b)
		return r.h.Free(b.p)

	default:
		return fmt.Errorf("%w: kind %s", ErrBadOp, op.Kind)
	}
}

// add records b as live, checks it overlaps no other live block and fills it.
func (r *replayer) add(id int, b block) error {
	payload := r.h.Bytes(b.p)
	if len(payload) < b.size {
		return fmt.Errorf("%w: block 0x%x holds %d bytes, asked for %d", ErrCorrupt, b.p, len(payload), b.size)
	}

	s := span{lo: uint32(b.p), hi: uint32(b.p) + uint32(max(b.size, 1)), id: id}
	i, _ := slices.BinarySearchFunc(r.spans, s.lo, func(e span, lo uint32) int {
		return cmp.Compare(e.lo, lo)
	})
	if i > 0 && r.spans[i-1].hi > s.lo {
		return fmt.Errorf("%w: id %d [0x%x,0x%x) and id %d", ErrOverlap, id, s.lo, s.hi, r.spans[i-1].id)
	}
	if i < len(r.spans) && r.spans[i].lo < s.hi {
		return fmt.Errorf("%w: id %d [0x%x,0x%x) and id %d", ErrOverlap, id, s.lo, s.hi, r.spans[i].id)
	}
	r.spans = slices.Insert(r.spans, i, s)

	r.live[id] = b
	r.total += int64(b.size)
	r.peak = max(r.peak, r.total)

	if !r.opts.SkipVerify {
		for j := range payload[:b.size] {
			payload[j] = pattern(id, j)
		}
	}
	return nil
}

func (r *replayer) remove(id int, b block) {
	i, found := slices.BinarySearchFunc(r.spans, uint32(b.p), func(e span, lo uint32) int {
		return cmp.Compare(e.lo, lo)
	})
	if found {
		r.spans = slices.Delete(r.spans, i, i+1)
	}
	delete(r.live, id)
	r.total -= int64(b.size)
}

func (r *replayer) verify(id int, b block) error {
	return r.verifyPrefix(id, b, b.size)
}

func (r *replayer) verifyPrefix(id int, b block, n int) error {
	if r.opts.SkipVerify {
		return nil
	}
	payload := r.h.Bytes(b.p)
	if len(payload) < n {
		return fmt.Errorf("%w: id %d at 0x%x is not live", ErrCorrupt, id, b.p)
	}
	for j := range payload[:n] {
		if payload[j] != pattern(id, j) {
			return fmt.Errorf("%w: id %d byte %d", ErrCorrupt, id, j)
		}
	}
	return nil
}

func pattern(id, i int) byte {
	return byte(id*31 + i*7 + 1)
}

// HeapFactory builds a fresh heap for one replay. release, if non-nil, is
// called once the replay is done with the heap.
type HeapFactory func() (h *alloc.Heap, release func(), err error)

// ReplayAll replays every trace on its own heap, in parallel. Results are in
// trace order. The first failure cancels the remaining replays.
func ReplayAll(ctx context.Context, traces []*Trace, newHeap HeapFactory, opts Options) ([]Result, error) {
	results := make([]Result, len(traces))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, tr := range traces {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, release, err := newHeap()
			if err != nil {
				return fmt.Errorf("%s: %w", tr.Name, err)
			}
			if release != nil {
				defer release()
			}
			res, err := ReplayWith(h, tr, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
