//go:build !unix

package storage

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}
