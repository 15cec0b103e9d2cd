// Package sysmem provides the operating-system memory primitives the allocator
// grows its heap with.
//
// Two collaborator roles are defined:
//
//   - Grower: a break-style region that is extended at its high end and never
//     shrinks. Every successful Grow returns the whole region, so bytes handed
//     out earlier stay contiguous with the new ones.
//   - Mapper: a source of fresh, independent anonymous regions. The allocator
//     only asks it for memory when the Grower fails.
//
// Break and Anon are the production implementations (mmap-backed on unix,
// Go-memory backed elsewhere). NewFixed, NewSliceMapper and Failing exist for
// tests and tools that need deterministic behaviour.
package sysmem

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joshuapare/heapkit/internal/buf"
)

var (
	// ErrNoMem indicates the request exceeds what the region or the system can supply.
	ErrNoMem = errors.New("sysmem: out of memory")

	// ErrAgain indicates the system was temporarily unable to supply pages.
	ErrAgain = errors.New("sysmem: resource temporarily unavailable")

	// ErrClosed indicates the region was already released.
	ErrClosed = errors.New("sysmem: region closed")
)

// Grower extends a contiguous region at its high end.
type Grower interface {
	// Grow extends the region by n bytes and returns the whole region.
	// The new bytes are region[len(region)-n:]. Earlier results remain valid.
	Grow(n int) ([]byte, error)
}

// Mapper hands out independent anonymous regions.
type Mapper interface {
	// Map returns a fresh zero-filled region of exactly n bytes.
	Map(n int) ([]byte, error)
}

// Break simulates sbrk over a reservation made once up front. The reservation
// never moves, so slices returned by Grow stay valid until Close.
type Break struct {
	mu        sync.Mutex
	mem       []byte
	brk       int
	committed int
	commit    func(mem []byte, from, to int) (int, error)
	release   func(mem []byte) error
}

// NewFixed returns a Break over ordinary Go memory of max bytes.
func NewFixed(max int) *Break {
	return &Break{mem: make([]byte, max), committed: max}
}

// Grow moves the break up by n bytes.
func (b *Break) Grow(n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mem == nil {
		return nil, ErrClosed
	}
	if n < 0 {
		return nil, fmt.Errorf("sysmem: negative increment %d: %w", n, ErrNoMem)
	}
	end, ok := buf.AddOverflowSafe(b.brk, n)
	if !ok || end > len(b.mem) {
		return nil, fmt.Errorf("sysmem: break %d + %d exceeds %d-byte reservation: %w",
			b.brk, n, len(b.mem), ErrNoMem)
	}
	if end > b.committed {
		committed, err := b.commit(b.mem, b.committed, end)
		if err != nil {
			return nil, err
		}
		b.committed = committed
	}
	b.brk = end
	return b.mem[:end:end], nil
}

// Size returns the number of bytes below the break.
func (b *Break) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.brk
}

// Cap returns the size of the reservation.
func (b *Break) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mem)
}

// Reset moves the break back to the start of the reservation. Pages already
// committed stay accessible. Any heap built on b must be discarded first.
func (b *Break) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.brk = 0
}

// Close releases the reservation. Calling Close twice is a no-op.
func (b *Break) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mem == nil {
		return nil
	}
	mem := b.mem
	b.mem = nil
	b.brk = 0
	b.committed = 0
	if b.release == nil {
		return nil
	}
	return b.release(mem)
}

// Anon hands out anonymous regions, optionally up to a byte limit.
type Anon struct {
	mu      sync.Mutex
	limit   int
	used    int
	maps    [][]byte
	mapFn   func(n int) ([]byte, error)
	unmapFn func(mem []byte) error
}

// NewSliceMapper returns a Mapper over ordinary Go memory. A limit of 0 means unlimited.
func NewSliceMapper(limit int) *Anon {
	return &Anon{
		limit: limit,
		mapFn: func(n int) ([]byte, error) { return make([]byte, n), nil },
	}
}

// Map returns a new region of n bytes.
func (a *Anon) Map(n int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 {
		return nil, fmt.Errorf("sysmem: invalid mapping size %d: %w", n, ErrNoMem)
	}
	if a.limit > 0 && a.used+n > a.limit {
		return nil, fmt.Errorf("sysmem: mapping %d bytes exceeds limit %d (%d in use): %w",
			n, a.limit, a.used, ErrNoMem)
	}
	mem, err := a.mapFn(n)
	if err != nil {
		return nil, err
	}
	a.used += n
	a.maps = append(a.maps, mem)
	return mem, nil
}

// Mapped returns the total bytes handed out so far.
func (a *Anon) Mapped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

// Close unmaps every region handed out by a.
func (a *Anon) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.unmapFn != nil {
		for _, m := range a.maps {
			if err := a.unmapFn(m); err != nil {
				errs = append(errs, err)
			}
		}
	}
	a.maps = nil
	a.used = 0
	return errors.Join(errs...)
}

// Failing is a Grower that always fails. Err defaults to ErrNoMem.
// It stands in for a primary primitive that is unavailable.
type Failing struct {
	Err error
}

// Grow always returns f.Err.
func (f Failing) Grow(n int) ([]byte, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return nil, fmt.Errorf("sysmem: grow %d: primary region unavailable: %w", n, ErrNoMem)
}
