package format

import "golang.org/x/exp/constraints"

// Alignment utilities for chunk sizes and payload offsets.
// Every chunk starts on an 8-byte boundary and every chunk size is a multiple of 8.

// Align8 returns n aligned up to the next 8-byte boundary.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8[T constraints.Integer](n T) T {
	return (n + AlignmentMask) &^ AlignmentMask
}

// AlignPage returns n aligned up to a multiple of pageSize, which must be a power of two.
func AlignPage[T constraints.Integer](n, pageSize T) T {
	return (n + pageSize - 1) &^ (pageSize - 1)
}

// IsAligned8 reports whether n sits on an 8-byte boundary.
func IsAligned8[T constraints.Integer](n T) bool {
	return n&AlignmentMask == 0
}

// AlignChunkSize converts a requested payload size into the total footprint of
// the chunk that serves it: the request is raised to MinAllocSize, aligned to
// 8 bytes, and the header (plus header padding) is added.
//
// This is the only place the chunk footprint is computed. Allocation, splitting
// and the split-worthiness check all go through it.
//
// Example:
//
//	AlignChunkSize(0)    = 24
//	AlignChunkSize(10)   = 32
//	AlignChunkSize(16)   = 32
//	AlignChunkSize(4096) = 4112
//
// Callers must reject requests above MaxRequestSize first.
func AlignChunkSize(size int) uint32 {
	if size < MinAllocSize {
		size = MinAllocSize
	}
	return uint32(Align8(size) + HeaderSize)
}
