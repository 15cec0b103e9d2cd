// Package alloc implements a free-list allocator over a growable heap.
//
// # Overview
//
// The heap is a range of bytes obtained from the operating system through a
// sysmem.Grower (break-style, grows at the high end, never shrinks) with a
// sysmem.Mapper as fallback. The range is tiled by chunks. Each chunk starts
// with a 16-byte header:
//
//	0x00  size       total bytes including the header
//	0x04  prev_size  size of the chunk just below (boundary tag)
//	0x08  flags      bit 0 = in use
//	0x0C  check      header check word
//	0x10  payload    while free: next/prev free-list links
//
// The boundary tag lets Free find the lower neighbour in O(1); the size finds
// the upper one. Free chunks are threaded onto one circular intrusive list
// (internal/list) whose links live in the chunks' own payload bytes.
//
// # Operations
//
//   - Alloc(size): find a free chunk (FitPolicy), split off the excess if the
//     remainder can stand as a chunk, otherwise grow the heap and serve the
//     request from the new chunk through the same path.
//   - Calloc(count, elemSize): Alloc with overflow check and zero fill.
//   - Realloc(p, size): shrink in place by splitting, or move to a new chunk
//     and copy. On failure the original block is untouched.
//   - Free(p): mark free, push onto the list, merge with free neighbours.
//
// # Addresses
//
// A Ptr is the heap offset of a payload. Nil (0) is never a payload because
// every payload follows a header. Bytes(p) returns the payload slice.
//
// The heap offset space is made of segments. Growth from the Grower extends the
// current segment; memory from the Mapper opens a new one. Chunks never cross a
// segment boundary, so two chunks on either side of one are not merged.
//
// # Thread Safety
//
// Heap is not safe for concurrent use. Wrap it in a Locked to serialise every
// operation behind one mutex. The sysmem providers carry their own locks.
//
// # Related Packages
//
//   - github.com/joshuapare/heapkit/internal/sysmem: heap growth primitives
//   - github.com/joshuapare/heapkit/internal/format: chunk header layout
//   - github.com/joshuapare/heapkit/pkg/malloc: process-wide default heap
package alloc
