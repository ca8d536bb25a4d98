//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync flushes file data, skipping metadata that is not needed to read it back.
func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
