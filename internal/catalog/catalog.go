// Package catalog maps table file paths to table identifiers and keeps
// per-table usage counters.
package catalog

import (
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/armon/go-radix"

	"slotdb/internal/base"
)

var (
	ErrPathRegistered  = errors.New("path already registered")
	ErrTableRegistered = errors.New("table already registered")
	ErrUnknownTable    = errors.New("table not registered")
)

// Usage counts successful operations on one table.
type Usage struct {
	Inserts uint64
	Finds   uint64
	Deletes uint64
}

type entry struct {
	path    string
	inserts atomic.Uint64
	finds   atomic.Uint64
	deletes atomic.Uint64
}

// Catalog is safe for concurrent use. Counters are updated without taking
// the catalog lock.
type Catalog struct {
	mu     sync.RWMutex
	paths  *radix.Tree // cleaned path -> base.TableID
	tables map[base.TableID]*entry
}

func New() *Catalog {
	return &Catalog{
		paths:  radix.New(),
		tables: make(map[base.TableID]*entry),
	}
}

// Clean returns the key a path is registered under.
func Clean(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// Register records that the file at path is open as tid.
func (c *Catalog) Register(path string, tid base.TableID) error {
	key, err := Clean(path)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.paths.Get(key); ok {
		return ErrPathRegistered
	}
	if _, ok := c.tables[tid]; ok {
		return ErrTableRegistered
	}
	c.paths.Insert(key, tid)
	c.tables[tid] = &entry{path: key}
	return nil
}

// Lookup returns the table open at path.
func (c *Catalog) Lookup(path string) (base.TableID, bool) {
	key, err := Clean(path)
	if err != nil {
		return 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.paths.Get(key)
	if !ok {
		return 0, false
	}
	return v.(base.TableID), true
}

// Path returns the cleaned path of tid.
func (c *Catalog) Path(tid base.TableID) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.tables[tid]
	if !ok {
		return "", false
	}
	return e.path, true
}

// Remove forgets tid and its counters.
func (c *Catalog) Remove(tid base.TableID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.tables[tid]
	if !ok {
		return ErrUnknownTable
	}
	c.paths.Delete(e.path)
	delete(c.tables, tid)
	return nil
}

// Table is a registered path and its identifier.
type Table struct {
	Path string
	ID   base.TableID
}

// Tables lists every registered table in path order.
func (c *Catalog) Tables() []Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Table, 0, c.paths.Len())
	c.paths.Walk(func(path string, v interface{}) bool {
		out = append(out, Table{Path: path, ID: v.(base.TableID)})
		return false
	})
	return out
}

// Under lists the tables whose files live in dir or below it, in path order.
func (c *Catalog) Under(dir string) []Table {
	key, err := Clean(dir)
	if err != nil {
		return nil
	}
	prefix := key
	if prefix != string(filepath.Separator) {
		prefix += string(filepath.Separator)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Table
	c.paths.WalkPrefix(prefix, func(path string, v interface{}) bool {
		out = append(out, Table{Path: path, ID: v.(base.TableID)})
		return false
	})
	return out
}

// IDs returns the registered identifiers in ascending order.
func (c *Catalog) IDs() []base.TableID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]base.TableID, 0, len(c.tables))
	for id := range c.tables {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Catalog) entry(tid base.TableID) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tables[tid]
}

// CountInsert, CountFind and CountDelete bump the counters of tid. Unknown
// tables are ignored.
func (c *Catalog) CountInsert(tid base.TableID) {
	if e := c.entry(tid); e != nil {
		e.inserts.Add(1)
	}
}

func (c *Catalog) CountFind(tid base.TableID) {
	if e := c.entry(tid); e != nil {
		e.finds.Add(1)
	}
}

func (c *Catalog) CountDelete(tid base.TableID) {
	if e := c.entry(tid); e != nil {
		e.deletes.Add(1)
	}
}

// Usage returns the counters of tid.
func (c *Catalog) Usage(tid base.TableID) (Usage, error) {
	e := c.entry(tid)
	if e == nil {
		return Usage{}, ErrUnknownTable
	}
	return Usage{
		Inserts: e.inserts.Load(),
		Finds:   e.finds.Load(),
		Deletes: e.deletes.Load(),
	}, nil
}
