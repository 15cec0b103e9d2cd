package alloc

import (
	"fmt"
	"strings"
)

// Ptr is the heap offset of a payload.
type Ptr uint32

// Nil is the null Ptr. No payload ever lives at offset 0.
const Nil Ptr = 0

// FitPolicy selects which free chunk serves a request.
type FitPolicy uint8

const (
	// BestFit takes the smallest sufficient chunk; ties go to the one nearest the list front.
	BestFit FitPolicy = iota
	// FirstFit takes the first sufficient chunk in list order.
	FirstFit
	// LastFit takes the last sufficient chunk in list order.
	LastFit
)

func (p FitPolicy) String() string {
	switch p {
	case BestFit:
		return "best"
	case FirstFit:
		return "first"
	case LastFit:
		return "last"
	default:
		return fmt.Sprintf("FitPolicy(%d)", uint8(p))
	}
}

// ParsePolicy converts "best", "first" or "last" (any case) into a FitPolicy.
func ParsePolicy(s string) (FitPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best", "best-fit", "bestfit":
		return BestFit, nil
	case "first", "first-fit", "firstfit":
		return FirstFit, nil
	case "last", "last-fit", "lastfit":
		return LastFit, nil
	default:
		return 0, fmt.Errorf("alloc: unknown fit policy %q", s)
	}
}

// ChunkInfo describes one chunk, as reported by Walk and FreeChunks.
type ChunkInfo struct {
	Off      uint32 // chunk offset
	Size     uint32 // total size including header
	PrevSize uint32 // boundary tag
	Used     bool
	Segment  int // index of the segment holding the chunk
}

// Payload returns the Ptr the chunk hands out when in use.
func (c ChunkInfo) Payload() Ptr { return Ptr(c.Off + headerSize) }

// Stats holds allocator counters and a snapshot of heap occupancy.
type Stats struct {
	AllocCalls       int   // Total Alloc() calls, including those made by Calloc and Realloc
	CallocCalls      int   // Total Calloc() calls
	ReallocCalls     int   // Total Realloc() calls
	FreeCalls        int   // Total Free() calls that released a chunk
	FastPath         int   // Allocations served from the free list
	SlowPath         int   // Allocations that required growth
	Failed           int   // Allocations that returned ErrNoSpace
	GrowCalls        int   // Successful growth events
	GrowBytes        int64 // Total bytes added by growth
	FallbackMaps     int   // Growth events served by the Mapper
	StrandedBytes    int64 // Grower bytes left unused by short growths
	SplitCount       int   // Chunk splits
	CoalesceForward  int   // Merges with the upper neighbour
	CoalesceBackward int   // Merges with the lower neighbour
	InPlaceRealloc   int   // Realloc calls answered without moving

	HeapBytes  int64 // Bytes currently tiled by chunks
	InUseBytes int64 // Bytes in used chunks, headers included
	FreeBytes  int64 // Bytes in free chunks, headers included
	FreeChunks int   // Length of the free list
	Segments   int   // Number of heap segments
}
