package format

import "errors"

var (
	// ErrTruncated indicates the buffer lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated buffer")
	// ErrBadHeader indicates a chunk header whose check word does not match its fields.
	ErrBadHeader = errors.New("format: corrupt chunk header")
	// ErrBadSize indicates a chunk size that is unaligned or below MinChunkSize.
	ErrBadSize = errors.New("format: invalid chunk size")
)
