//go:build !unix

package sysmem

import (
	"fmt"
	"os"
)

// Reserve returns a Break over Go memory when mmap is not available.
func Reserve(max int) (*Break, error) {
	if max <= 0 {
		return nil, fmt.Errorf("sysmem: invalid reservation size %d", max)
	}
	return NewFixed(max), nil
}

// NewAnon returns a Mapper over Go memory when mmap is not available.
func NewAnon(limit int) *Anon {
	return NewSliceMapper(limit)
}

// PageSize returns the system page size.
func PageSize() int {
	return os.Getpagesize()
}

// MapFile reads the whole file when mmap is not available.
func MapFile(path string) ([]byte, func() error, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, func() error { return nil }, nil
}
