package trace

import (
	"fmt"
	"math/rand/v2"
)

// Generate returns a random trace of at most ops operations (at least 2) with
// sizes in [1, maxSize]. Every block allocated is freed by the end of the
// trace, as in the malloc-lab traces. The same seed always yields the same
// trace.
func Generate(seed uint64, ops, maxSize int) *Trace {
	ops = max(ops, 2)
	maxSize = max(maxSize, 1)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	t := &Trace{
		Name:   fmt.Sprintf("gen-%d", seed),
		Weight: 1,
		Ops:    make([]Op, 0, ops),
	}

	var (
		live      []int // ids currently allocated
		sizes     = map[int]int{}
		total     int
		peakTotal int
	)
	size := func() int {
		// Mostly small blocks with an occasional large one.
		if rng.IntN(16) == 0 {
			return 1 + rng.IntN(maxSize)
		}
		return 1 + rng.IntN(max(maxSize/16, 1))
	}

gen:
	for len(t.Ops)+len(live) < ops {
		// A new id needs room for its own free.
		room := ops - len(t.Ops) - len(live)
		roll := rng.IntN(10)
		switch {
		case len(live) == 0 && room < 2:
			break gen

		case len(live) == 0 || (roll < 5 && room >= 2):
			id := t.NumIDs
			t.NumIDs++
			s := size()
			t.Ops = append(t.Ops, Op{Kind: Alloc, ID: id, Size: s})
			live = append(live, id)
			sizes[id] = s
			total += s

		case roll < 7:
			id := live[rng.IntN(len(live))]
			s := size()
			t.Ops = append(t.Ops, Op{Kind: Realloc, ID: id, Size: s})
			total += s - sizes[id]
			sizes[id] = s

		default:
			i := rng.IntN(len(live))
			id := live[i]
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
			t.Ops = append(t.Ops, Op{Kind: Free, ID: id})
			total -= sizes[id]
			delete(sizes, id)
		}
		peakTotal = max(peakTotal, total)
	}

	for _, id := range live {
		t.Ops = append(t.Ops, Op{Kind: Free, ID: id})
	}
	t.SuggestedHeap = peakTotal
	return t
}
