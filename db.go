// Package slotdb is an embedded storage engine keeping int64-keyed records in
// disk-resident B+trees, one tree per table file, all sharing one buffer pool.
package slotdb

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"slotdb/internal/algo"
	"slotdb/internal/base"
	"slotdb/internal/cache"
	"slotdb/internal/catalog"
	"slotdb/internal/lock"
	"slotdb/internal/storage"
)

const (
	// PageSize is the unit of allocation and I/O in table files.
	PageSize = base.PageSize

	// LeafCapacity is the number of bytes a leaf page holds for slots and
	// values.
	LeafCapacity = base.BodySize

	// MinValueSize and MaxValueSize bound the length of a stored value.
	MinValueSize = base.MinValueSize
	MaxValueSize = base.MaxValueSize
)

type (
	// TableID identifies an open table file. Ids are never reused within one
	// DB.
	TableID = base.TableID

	Table     = catalog.Table
	Usage     = catalog.Usage
	TreeStats = algo.Stats
	PoolStats = cache.Stats
	DiskStats = storage.Stats
)

// DB is safe for concurrent use. Operations on one table are serialized
// against each other except for Find, which runs concurrently with other
// finds.
type DB struct {
	mu     sync.RWMutex // guards tables and closed
	tables map[TableID]*table
	closed bool

	disk    *storage.Manager
	pool    *cache.BufferPool
	catalog *catalog.Catalog
	locks   *lock.Table
	log     Logger
}

type table struct {
	mu     sync.RWMutex
	tree   *algo.Tree
	closed bool
}

// Open builds the buffer pool and disk manager. No table is open yet.
func Open(options ...Option) (*DB, error) {
	opts := defaultOptions()
	for _, opt := range options {
		opt(&opts)
	}
	if opts.poolSize < MinPoolSize {
		opts.poolSize = MinPoolSize
	}

	diskOpts := []storage.Option{
		storage.WithInitialPages(opts.initialPages),
		storage.WithLogger(opts.logger),
	}
	if opts.syncOff {
		diskOpts = append(diskOpts, storage.WithSyncOff())
	}
	if opts.directIO {
		diskOpts = append(diskOpts, storage.WithDirectIO())
	}
	disk := storage.New(diskOpts...)

	pool, err := cache.NewBufferPool(disk, opts.poolSize, cache.WithLogger(opts.logger))
	if err != nil {
		return nil, err
	}

	opts.logger.Info("database opened", "frames", opts.poolSize, "sync", !opts.syncOff)
	return &DB{
		tables:  make(map[TableID]*table),
		disk:    disk,
		pool:    pool,
		catalog: catalog.New(),
		locks:   lock.NewTable(),
		log:     opts.logger,
	}, nil
}

// OpenTable opens the table file at path, creating it when missing. Opening
// a path that is already open returns its existing id.
func (d *DB) OpenTable(path string) (TableID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrDatabaseClosed
	}

	if tid, ok := d.catalog.Lookup(path); ok {
		return tid, nil
	}
	tid, err := d.disk.OpenTable(path)
	if err != nil {
		return 0, err
	}
	if err := d.catalog.Register(path, tid); err != nil {
		return 0, multierr.Append(err, d.disk.CloseTable(tid))
	}
	d.tables[tid] = &table{tree: algo.NewTree(d.pool, tid)}
	return tid, nil
}

// CloseTable writes back the cached pages of one table and closes its file.
func (d *DB) CloseTable(tid TableID) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDatabaseClosed
	}
	t, ok := d.tables[tid]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}
	delete(d.tables, tid)
	_ = d.catalog.Remove(tid)
	d.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true

	err := d.pool.FlushTable(tid)
	d.pool.DropTable(tid)
	return multierr.Append(err, d.disk.CloseTable(tid))
}

// Close writes back every dirty page and closes all table files. Later calls
// return ErrDatabaseClosed.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDatabaseClosed
	}
	d.closed = true

	// Wait out in-flight operations.
	for _, t := range d.tables {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
	}

	err := d.pool.FlushAll()
	err = multierr.Append(err, d.disk.Close())
	if err != nil {
		d.log.Error("database closed with errors", "error", err)
	} else {
		d.log.Info("database closed", "tables", len(d.tables))
	}
	d.tables = nil
	return err
}

func (d *DB) table(tid TableID) (*table, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDatabaseClosed
	}
	t, ok := d.tables[tid]
	if !ok {
		return nil, fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}
	return t, nil
}

// read runs fn holding the table's shared latch.
func (d *DB) read(tid TableID, fn func(*algo.Tree) error) error {
	t, err := d.table(tid)
	if err != nil {
		return err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}
	return d.corrupt(tid, fn(t.tree))
}

// write runs fn holding the table's exclusive latch.
func (d *DB) write(tid TableID, fn func(*algo.Tree) error) error {
	t, err := d.table(tid)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}
	return d.corrupt(tid, fn(t.tree))
}

func (d *DB) corrupt(tid TableID, err error) error {
	if errors.Is(err, ErrTreeCorrupted) || errors.Is(err, ErrTableCorrupted) {
		d.log.Error("table corrupted", "table", tid, "error", err)
	}
	return err
}

// Insert stores value under key. The value must be MinValueSize to
// MaxValueSize bytes long and the key must not exist yet.
func (d *DB) Insert(tid TableID, key int64, value []byte) error {
	err := d.write(tid, func(tree *algo.Tree) error {
		return tree.Insert(key, value)
	})
	if err == nil {
		d.catalog.CountInsert(tid)
	}
	return err
}

// Find returns a copy of the value stored under key.
func (d *DB) Find(tid TableID, key int64) ([]byte, error) {
	var value []byte
	err := d.read(tid, func(tree *algo.Tree) error {
		var err error
		value, err = tree.Find(key)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.catalog.CountFind(tid)
	return value, nil
}

// Delete removes key.
func (d *DB) Delete(tid TableID, key int64) error {
	err := d.write(tid, func(tree *algo.Tree) error {
		return tree.Delete(key)
	})
	if err == nil {
		d.catalog.CountDelete(tid)
	}
	return err
}

// Check walks the tree of a table and verifies its structure.
func (d *DB) Check(tid TableID) error {
	return d.read(tid, func(tree *algo.Tree) error {
		return tree.Check()
	})
}

// TreeStats walks the tree of a table and reports its shape.
func (d *DB) TreeStats(tid TableID) (TreeStats, error) {
	var s TreeStats
	err := d.read(tid, func(tree *algo.Tree) error {
		var err error
		s, err = tree.Stats()
		return err
	})
	return s, err
}

// UsedPages returns the number of pages of a table that hold tree nodes:
// every page except the header and the free list.
func (d *DB) UsedPages(tid TableID) (uint64, error) {
	var used uint64
	err := d.read(tid, func(*algo.Tree) error {
		h, err := d.disk.Header(tid)
		if err != nil {
			return err
		}
		free, err := d.disk.FreePages(tid)
		if err != nil {
			return err
		}
		used = h.NumPages - 1 - free
		return nil
	})
	return used, err
}

// FileStats returns the page count and free page count of a table file.
func (d *DB) FileStats(tid TableID) (pages, free uint64, err error) {
	err = d.read(tid, func(*algo.Tree) error {
		h, err := d.disk.Header(tid)
		if err != nil {
			return err
		}
		pages = h.NumPages
		free, err = d.disk.FreePages(tid)
		return err
	})
	return pages, free, err
}

// Tables lists the open tables in path order.
func (d *DB) Tables() []Table {
	return d.catalog.Tables()
}

// TablesUnder lists the open tables whose files live below dir.
func (d *DB) TablesUnder(dir string) []Table {
	return d.catalog.Under(dir)
}

// Usage returns the operation counters of a table.
func (d *DB) Usage(tid TableID) (Usage, error) {
	u, err := d.catalog.Usage(tid)
	if errors.Is(err, catalog.ErrUnknownTable) {
		return Usage{}, fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}
	return u, err
}

// Flush writes every dirty cached page to its file.
func (d *DB) Flush() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDatabaseClosed
	}
	return d.pool.FlushAll()
}

// PoolStats returns buffer pool statistics.
func (d *DB) PoolStats() PoolStats {
	return d.pool.Stats()
}

// DiskStats returns file I/O statistics summed over the open tables.
func (d *DB) DiskStats() DiskStats {
	return d.disk.Stats()
}

// Locks returns the record lock table. The engine never takes these locks;
// callers that need to serialize work on a key across operations use them.
func (d *DB) Locks() *lock.Table {
	return d.locks
}
