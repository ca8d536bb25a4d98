package storage

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"slotdb/internal/base"
	"slotdb/internal/directio"
)

// Storage is positional page I/O over one table file.
type Storage struct {
	file   *os.File
	direct bool
	noSync bool

	// Aligned staging blocks, only used with direct I/O.
	bufPool sync.Pool

	reads   atomic.Uint64
	writes  atomic.Uint64
	read    atomic.Uint64
	written atomic.Uint64
	syncs   atomic.Uint64
}

// Open opens or creates path. With direct set the OS page cache is bypassed
// where the platform supports it.
func Open(path string, direct, noSync bool) (*Storage, error) {
	open := os.OpenFile
	if direct {
		open = directio.OpenFile
	}
	file, err := open(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}

	return &Storage{
		file:   file,
		direct: direct,
		noSync: noSync,
		bufPool: sync.Pool{
			New: func() any {
				return directio.AlignedBlock(base.PageSize)
			},
		},
	}, nil
}

// Size returns the file size in bytes.
func (s *Storage) Size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadPage reads page id into p.
func (s *Storage) ReadPage(id base.PageNo, p *base.Page) error {
	buf := p.Data[:]
	if s.direct {
		block := s.bufPool.Get().([]byte)
		defer s.bufPool.Put(block)
		buf = block
	}

	s.reads.Add(1)
	n, err := s.file.ReadAt(buf, int64(id)*base.PageSize)
	s.read.Add(uint64(n))
	if n != base.PageSize {
		if err == nil {
			err = fmt.Errorf("short read: got %d bytes, expected %d", n, base.PageSize)
		}
		return fmt.Errorf("read page %d: %w", id, err)
	}
	if s.direct {
		copy(p.Data[:], buf)
	}
	return nil
}

// WritePage writes p at page id and issues a durability barrier.
func (s *Storage) WritePage(id base.PageNo, p *base.Page) error {
	if err := s.WriteAt(id, p.Data[:]); err != nil {
		return err
	}
	return s.Sync()
}

// WriteAt writes a run of contiguous pages starting at id without a barrier.
func (s *Storage) WriteAt(id base.PageNo, data []byte) error {
	if len(data)%base.PageSize != 0 {
		return fmt.Errorf("data size %d is not a multiple of page size %d", len(data), base.PageSize)
	}
	if s.direct && !directio.IsAligned(data) {
		aligned := directio.AlignedBlock(len(data))
		copy(aligned, data)
		data = aligned
	}

	s.writes.Add(1)
	n, err := s.file.WriteAt(data, int64(id)*base.PageSize)
	s.written.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("write page %d: %w", id, err)
	}
	if n != len(data) {
		return fmt.Errorf("write page %d: short write: wrote %d bytes, expected %d", id, n, len(data))
	}
	return nil
}

// Sync is the durability barrier. It is a no-op when syncing is off.
func (s *Storage) Sync() error {
	if s.noSync {
		return nil
	}
	s.syncs.Add(1)
	return datasync(s.file)
}

// Close closes the file.
func (s *Storage) Close() error {
	return s.file.Close()
}

// Stats holds I/O statistics.
type Stats struct {
	Reads   uint64
	Writes  uint64
	Read    uint64
	Written uint64
	Syncs   uint64
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Reads += o.Reads
	s.Writes += o.Writes
	s.Read += o.Read
	s.Written += o.Written
	s.Syncs += o.Syncs
}

// Stats returns I/O statistics.
func (s *Storage) Stats() Stats {
	return Stats{
		Reads:   s.reads.Load(),
		Writes:  s.writes.Load(),
		Read:    s.read.Load(),
		Written: s.written.Load(),
		Syncs:   s.syncs.Load(),
	}
}
