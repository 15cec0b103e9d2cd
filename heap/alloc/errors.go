package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpace indicates that no free chunk was large enough and growth failed.
	ErrNoSpace = errors.New("alloc: out of memory")

	// ErrBadSize indicates a negative request size.
	ErrBadSize = errors.New("alloc: invalid size")

	// ErrOverflow indicates count * elemSize overflowed in Calloc.
	ErrOverflow = errors.New("alloc: size overflow")

	// ErrBadPtr indicates a pointer that does not reference a live chunk of this heap.
	ErrBadPtr = errors.New("alloc: bad pointer")

	// ErrDoubleFree indicates Free was called on a chunk that is already free.
	ErrDoubleFree = errors.New("alloc: double free")
)

// InvariantError reports a broken structural invariant of the heap.
// It is returned by Check and panicked by the debug assertions; the heap
// cannot be repaired once one is observed.
type InvariantError struct {
	Off    uint32 // chunk offset where the violation was found
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("alloc: invariant violated at chunk 0x%x: %s", e.Off, e.Reason)
}

func invariantf(off uint32, format string, args ...any) *InvariantError {
	return &InvariantError{Off: off, Reason: fmt.Sprintf(format, args...)}
}
