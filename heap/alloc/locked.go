package alloc

import "sync"

// Locked serialises every operation on a Heap behind one mutex so a single
// heap can be shared by several goroutines.
type Locked struct {
	mu sync.Mutex
	h  *Heap
}

// NewLocked wraps h. h must not be used directly afterwards.
func NewLocked(h *Heap) *Locked { return &Locked{h: h} }

func (l *Locked) Alloc(size int) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Alloc(size)
}

func (l *Locked) Calloc(count, elemSize int) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Calloc(count, elemSize)
}

func (l *Locked) Realloc(p Ptr, size int) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Realloc(p, size)
}

func (l *Locked) Free(p Ptr) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Free(p)
}

// Bytes returns the payload of p. The slice stays valid after the lock is
// released, until p is freed or moved.
func (l *Locked) Bytes(p Ptr) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Bytes(p)
}

func (l *Locked) PtrOf(b []byte) (Ptr, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.PtrOf(b)
}

func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Stats()
}

func (l *Locked) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Check()
}

// Walk calls fn for every chunk in address order while holding the lock.
// fn must not call back into l.
func (l *Locked) Walk(fn func(ChunkInfo) bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h.Walk(fn)
}

// Do runs fn with exclusive access to the underlying heap.
func (l *Locked) Do(fn func(h *Heap)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.h)
}
