package format

// Chunk header layout (little-endian):
//
//	Offset  Size  Description
//	0x00    4     Chunk size in bytes, header included. Always a multiple of 8.
//	0x04    4     Size of the chunk immediately below this one (0 for the heap head).
//	0x08    4     Flags. Bit 0 set => chunk is in use.
//	0x0C    4     Check word: low 32 bits of xxh3 over bytes 0x00..0x0B.
//	0x10    ...   Payload. While the chunk is free the first 8 bytes hold the
//	              free-list links (next, prev), both heap offsets.
const (
	// Alignment is the boundary every chunk and every payload sits on.
	Alignment = 8

	// AlignmentMask is Alignment - 1.
	AlignmentMask = Alignment - 1

	SizeOffset     = 0x00
	PrevSizeOffset = 0x04
	FlagsOffset    = 0x08
	CheckOffset    = 0x0C

	// MetaSize is the number of bytes of header metadata.
	MetaSize = 0x10

	// PadSize is the padding that brings the header up to Alignment.
	PadSize = Alignment - ((MetaSize-1)%Alignment + 1)

	// HeaderSize is the fixed distance between a chunk and its payload.
	HeaderSize = MetaSize + PadSize

	// LinkNextOffset and LinkPrevOffset locate the free-list links,
	// relative to the chunk start. They overlap the payload.
	LinkNextOffset = HeaderSize
	LinkPrevOffset = HeaderSize + 4
	LinkSize       = 8

	// MinAllocSize is the smallest payload ever handed out. It must hold the links.
	MinAllocSize = LinkSize

	// MinChunkSize is AlignChunkSize(MinAllocSize). A split remainder smaller
	// than this stays attached to the allocated chunk.
	MinChunkSize = ((MinAllocSize + AlignmentMask) &^ AlignmentMask) + HeaderSize

	// MaxChunkSize is the largest size representable in the 32-bit size field.
	MaxChunkSize = 0xFFFFFFFF &^ AlignmentMask

	// MaxRequestSize is the largest payload AlignChunkSize can represent.
	MaxRequestSize = MaxChunkSize - HeaderSize

	// FlagUsed marks an allocated chunk.
	FlagUsed = 1 << 0
)
