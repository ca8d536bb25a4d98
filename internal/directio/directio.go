// Package directio opens table files so page I/O bypasses the OS cache, and
// hands out buffers aligned the way such files require.
// Adapted from https://github.com/ncw/directio.
package directio

import (
	"unsafe"
)

// IsAligned reports whether block starts on an AlignSize boundary.
func IsAligned(block []byte) bool {
	if AlignSize == 0 {
		return true
	}
	return alignment(block, AlignSize) == 0
}

// AlignedBlock returns a zeroed slice of size bytes whose first byte is
// aligned to AlignSize.
func AlignedBlock(size int) []byte {
	block := make([]byte, size+AlignSize)
	if AlignSize == 0 || size == 0 {
		return block[:size]
	}
	a := alignment(block, AlignSize)
	offset := 0
	if a != 0 {
		offset = AlignSize - a
	}
	return block[offset : offset+size]
}

// alignment returns the misalignment of block relative to align.
// block must not be empty.
func alignment(block []byte, align int) int {
	return int(uintptr(unsafe.Pointer(&block[0])) & uintptr(align-1))
}
