// Package malloc exposes a process-wide heap with a C-style interface.
//
// The heap is created on first use from a reserved primary region (the
// break) and an anonymous-mapping fallback. Allocation functions return
// alloc.Nil when memory is exhausted instead of an error; Default gives
// access to the underlying heap when the error detail is needed.
//
//	p := malloc.Malloc(64)
//	if p == alloc.Nil {
//	    // out of memory
//	}
//	copy(malloc.Bytes(p), data)
//	malloc.Free(p)
package malloc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/internal/logger"
	"github.com/joshuapare/heapkit/internal/sysmem"
)

// ErrStarted is returned by Configure once the default heap exists.
var ErrStarted = errors.New("malloc: default heap already initialised")

var mu sync.Mutex

// Guarded by mu.
var (
	once   = new(sync.Once)
	config = alloc.DefaultConfig
)

// Set once by start, guarded by mu.
var (
	heap    *alloc.Locked
	brk     *sysmem.Break
	anon    *sysmem.Anon
	initErr error
)

// Configure replaces the configuration of the default heap. It must be called
// before the first allocation.
func Configure(cfg alloc.Config) error {
	mu.Lock()
	defer mu.Unlock()
	if heap != nil || initErr != nil {
		return ErrStarted
	}
	config = cfg
	return nil
}

// Default returns the process-wide heap, creating it on first use.
func Default() (*alloc.Locked, error) {
	mu.Lock()
	o := once
	mu.Unlock()

	o.Do(start)

	mu.Lock()
	defer mu.Unlock()
	return heap, initErr
}

func start() {
	mu.Lock()
	defer mu.Unlock()

	var grower sysmem.Grower
	b, err := sysmem.Reserve(config.MaxHeap)
	if err != nil {
		// The heap still works from anonymous mappings alone.
		logger.L.Warn("primary reservation failed", "bytes", config.MaxHeap, "err", err)
		grower = sysmem.Failing{Err: err}
	} else {
		brk = b
		grower = b
	}
	anon = sysmem.NewAnon(0)

	h, err := alloc.New(grower, anon, &config)
	if err != nil {
		initErr = fmt.Errorf("malloc: %w", err)
		logger.L.Error("default heap unavailable", "err", err)
		return
	}
	heap = alloc.NewLocked(h)
	logger.L.Debug("default heap ready",
		"config", config.Name,
		"policy", config.Policy.String(),
		"reserve", config.MaxHeap,
	)
}

// Malloc allocates size bytes and returns alloc.Nil if that is impossible.
func Malloc(size int) alloc.Ptr {
	h, err := Default()
	if err != nil {
		return alloc.Nil
	}
	p, err := h.Alloc(size)
	if err != nil {
		return alloc.Nil
	}
	return p
}

// Calloc allocates count*elemSize zeroed bytes. It returns alloc.Nil on
// exhaustion or when the product overflows.
func Calloc(count, elemSize int) alloc.Ptr {
	h, err := Default()
	if err != nil {
		return alloc.Nil
	}
	p, err := h.Calloc(count, elemSize)
	if err != nil {
		return alloc.Nil
	}
	return p
}

// Realloc resizes the block at p. On failure it returns alloc.Nil and p stays
// valid.
func Realloc(p alloc.Ptr, size int) alloc.Ptr {
	h, err := Default()
	if err != nil {
		return alloc.Nil
	}
	np, err := h.Realloc(p, size)
	if err != nil {
		return alloc.Nil
	}
	return np
}

// Free releases the block at p. Free(alloc.Nil) does nothing.
// Freeing a pointer twice or one the heap never handed out panics.
func Free(p alloc.Ptr) {
	if p == alloc.Nil {
		return
	}
	h, err := Default()
	if err != nil {
		panic(err)
	}
	if err := h.Free(p); err != nil {
		panic(err)
	}
}

// Bytes returns the usable payload of p, or nil.
func Bytes(p alloc.Ptr) []byte {
	h, err := Default()
	if err != nil {
		return nil
	}
	return h.Bytes(p)
}

// reset discards the default heap and releases its memory. Tests only.
func reset() error {
	mu.Lock()
	defer mu.Unlock()

	var errs []error
	if brk != nil {
		errs = append(errs, brk.Close())
	}
	if anon != nil {
		errs = append(errs, anon.Close())
	}
	heap, brk, anon, initErr = nil, nil, nil, nil
	config = alloc.DefaultConfig
	once = new(sync.Once)
	return errors.Join(errs...)
}
