package format

import (
	"fmt"

	"github.com/zeebo/xxh3"

	"github.com/joshuapare/heapkit/internal/buf"
)

// Header is the decoded form of a chunk header.
type Header struct {
	Size     uint32
	PrevSize uint32
	Used     bool
}

// ChunkToMem returns the payload offset for the chunk at off.
func ChunkToMem(off uint32) uint32 { return off + HeaderSize }

// MemToChunk returns the chunk offset for the payload at mem.
func MemToChunk(mem uint32) uint32 { return mem - HeaderSize }

// ReadHeader decodes the header at b[off:].
func ReadHeader(b []byte, off int) Header {
	return Header{
		Size:     ReadU32(b, off+SizeOffset),
		PrevSize: ReadU32(b, off+PrevSizeOffset),
		Used:     ReadU32(b, off+FlagsOffset)&FlagUsed != 0,
	}
}

// PutHeader encodes h at b[off:] and refreshes the check word.
func PutHeader(b []byte, off int, h Header) {
	var flags uint32
	if h.Used {
		flags |= FlagUsed
	}
	PutU32(b, off+SizeOffset, h.Size)
	PutU32(b, off+PrevSizeOffset, h.PrevSize)
	PutU32(b, off+FlagsOffset, flags)
	seal(b, off)
}

// Size returns the size field of the chunk at b[off:].
func Size(b []byte, off int) uint32 { return ReadU32(b, off+SizeOffset) }

// PrevSize returns the boundary tag of the chunk at b[off:].
func PrevSize(b []byte, off int) uint32 { return ReadU32(b, off+PrevSizeOffset) }

// Used reports whether the chunk at b[off:] is allocated.
func Used(b []byte, off int) bool { return ReadU32(b, off+FlagsOffset)&FlagUsed != 0 }

// SetSize rewrites the size field and the check word.
func SetSize(b []byte, off int, v uint32) {
	PutU32(b, off+SizeOffset, v)
	seal(b, off)
}

// SetPrevSize rewrites the boundary tag and the check word.
func SetPrevSize(b []byte, off int, v uint32) {
	PutU32(b, off+PrevSizeOffset, v)
	seal(b, off)
}

// SetUsed flips the in-use flag and rewrites the check word.
func SetUsed(b []byte, off int, used bool) {
	flags := ReadU32(b, off+FlagsOffset) &^ FlagUsed
	if used {
		flags |= FlagUsed
	}
	PutU32(b, off+FlagsOffset, flags)
	seal(b, off)
}

// ValidHeader reports whether the check word at b[off:] matches the header fields.
// A mismatch means off is not a chunk boundary or the header was overwritten.
func ValidHeader(b []byte, off int) bool {
	return ReadU32(b, off+CheckOffset) == check(b, off)
}

// LinkNext and LinkPrev read the free-list links of a free chunk.
func LinkNext(b []byte, off int) uint32 { return ReadU32(b, off+LinkNextOffset) }
func LinkPrev(b []byte, off int) uint32 { return ReadU32(b, off+LinkPrevOffset) }

// SetLinkNext and SetLinkPrev write the free-list links of a free chunk.
func SetLinkNext(b []byte, off int, v uint32) { PutU32(b, off+LinkNextOffset, v) }
func SetLinkPrev(b []byte, off int, v uint32) { PutU32(b, off+LinkPrevOffset, v) }

func seal(b []byte, off int) {
	PutU32(b, off+CheckOffset, check(b, off))
}

func check(b []byte, off int) uint32 {
	return uint32(xxh3.Hash(b[off : off+CheckOffset]))
}

// ParseHeader decodes and validates the chunk header at b[off:]. The chunk
// must fit entirely inside b, be 8-byte aligned, and carry a matching check word.
func ParseHeader(b []byte, off int) (Header, error) {
	if !buf.Has(b, off, HeaderSize) {
		return Header{}, fmt.Errorf("chunk at %d: %w", off, ErrTruncated)
	}
	if !ValidHeader(b, off) {
		return Header{}, fmt.Errorf("chunk at %d: %w", off, ErrBadHeader)
	}
	h := ReadHeader(b, off)
	if h.Size < MinChunkSize || !IsAligned8(h.Size) {
		return Header{}, fmt.Errorf("chunk at %d: size %d: %w", off, h.Size, ErrBadSize)
	}
	if !buf.Has(b, off, int(h.Size)) {
		return Header{}, fmt.Errorf("chunk at %d: size %d past end %d: %w", off, h.Size, len(b), ErrTruncated)
	}
	return h, nil
}
