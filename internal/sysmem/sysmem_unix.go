//go:build unix

package sysmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/heapkit/internal/format"
)

// Reserve maps max bytes of address space with no access and returns a Break
// over it. Pages become readable and writable as the break passes them.
func Reserve(max int) (*Break, error) {
	if max <= 0 {
		return nil, fmt.Errorf("sysmem: invalid reservation size %d", max)
	}
	size := format.AlignPage(max, PageSize())
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("sysmem: reserve %d bytes: %w", size, classify(err))
	}
	return &Break{
		mem:     mem[:max],
		commit:  commitPages,
		release: func(m []byte) error { return unmap(m[:cap(m)]) },
	}, nil
}

// NewAnon returns a Mapper backed by anonymous private mappings.
// A limit of 0 means unlimited.
func NewAnon(limit int) *Anon {
	return &Anon{
		limit: limit,
		mapFn: func(n int) ([]byte, error) {
			mem, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
			if err != nil {
				return nil, fmt.Errorf("sysmem: map %d bytes: %w", n, classify(err))
			}
			return mem, nil
		},
		unmapFn: unmap,
	}
}

// PageSize returns the system page size.
func PageSize() int {
	return unix.Getpagesize()
}

// commitPages makes mem[from:to] accessible, rounding to whole pages.
// from is always page aligned because every commit ends on a page boundary.
func commitPages(mem []byte, from, to int) (int, error) {
	end := min(format.AlignPage(to, PageSize()), cap(mem))
	if err := unix.Mprotect(mem[from:end:end], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return from, fmt.Errorf("sysmem: commit [%d,%d): %w", from, end, classify(err))
	}
	return end, nil
}

func unmap(mem []byte) error {
	err := unix.Munmap(mem)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

// classify maps errno values onto the package sentinels so callers can use errors.Is.
func classify(err error) error {
	switch {
	case errors.Is(err, unix.ENOMEM):
		return fmt.Errorf("%w: %w", ErrNoMem, err)
	case errors.Is(err, unix.EAGAIN):
		return fmt.Errorf("%w: %w", ErrAgain, err)
	default:
		return err
	}
}
