//go:build unix && !linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

func datasync(f *os.File) error {
	return unix.Fsync(int(f.Fd()))
}
