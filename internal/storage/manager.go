package storage

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"slotdb/internal/base"
	"slotdb/internal/directio"
)

// growChunk is the number of pages written per call when threading a new
// region of the file onto the free list.
const growChunk = 256

// Manager is the disk space manager. It owns every open table file and keeps
// the unused pages of each on a singly linked free list rooted in the header
// page. Nothing about the free list is cached in memory: every allocation
// reads and rewrites the on-disk header.
type Manager struct {
	mu     sync.RWMutex
	tables map[base.TableID]*table
	nextID base.TableID
	opts   Options
}

type table struct {
	mu      sync.Mutex // serializes header read-modify-write
	id      base.TableID
	path    string
	store   *Storage
	corrupt error // first I/O failure, sticky
}

// New returns a Manager with no open tables.
func New(opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		tables: make(map[base.TableID]*table),
		opts:   o,
	}
}

// OpenTable opens the table file at path, creating and formatting it when it
// is empty or missing. Existing files must carry a valid header.
func (m *Manager) OpenTable(path string) (base.TableID, error) {
	store, err := Open(path, m.opts.directIO, m.opts.syncOff)
	if err != nil {
		return 0, fmt.Errorf("open table %s: %w", path, err)
	}
	size, err := store.Size()
	if err != nil {
		store.Close()
		return 0, fmt.Errorf("open table %s: %w", path, err)
	}

	t := &table{path: path, store: store}
	if size == 0 {
		err = t.create(m.opts.initialPages)
	} else {
		err = t.load(size)
	}
	if err != nil {
		store.Close()
		return 0, fmt.Errorf("open table %s: %w", path, err)
	}

	m.mu.Lock()
	m.nextID++
	t.id = m.nextID
	m.tables[t.id] = t
	m.mu.Unlock()

	if size == 0 {
		m.opts.logger.Info("table created", "table", t.id, "path", path, "pages", m.opts.initialPages)
	} else {
		m.opts.logger.Info("table opened", "table", t.id, "path", path, "bytes", size)
	}
	return t.id, nil
}

// create writes the header and threads pages [1, n) into the free list.
// Everything goes out in batched writes followed by a single barrier.
func (t *table) create(n uint64) error {
	if err := t.threadFree(1, base.PageNo(n)); err != nil {
		return err
	}
	h := base.HeaderPage{FreeHead: 1, NumPages: n}
	var p base.Page
	h.Encode(&p)
	if err := t.store.WriteAt(0, p.Data[:]); err != nil {
		return err
	}
	return t.store.Sync()
}

func (t *table) load(size int64) error {
	if size%base.PageSize != 0 {
		return fmt.Errorf("file size %d is not a multiple of the page size: %w", size, base.ErrCorruptPage)
	}
	h, err := t.readHeader()
	if err != nil {
		return err
	}
	if h.NumPages*base.PageSize > uint64(size) {
		return fmt.Errorf("header claims %d pages, file holds %d: %w",
			h.NumPages, size/base.PageSize, base.ErrCorruptPage)
	}
	return nil
}

// threadFree writes free pages start→start+1→…→end-1→0 without a barrier.
func (t *table) threadFree(start, end base.PageNo) error {
	buf := directio.AlignedBlock(growChunk * base.PageSize)
	var p base.Page
	for first := start; first < end; first += growChunk {
		n := min(base.PageNo(growChunk), end-first)
		chunk := buf[:n*base.PageSize]
		clear(chunk)
		for i := base.PageNo(0); i < n; i++ {
			next := first + i + 1
			if next == end {
				next = 0
			}
			f := base.FreePage{Next: next}
			f.Encode(&p)
			copy(chunk[i*base.PageSize:], p.Data[:8])
		}
		if err := t.store.WriteAt(first, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (t *table) readHeader() (base.HeaderPage, error) {
	var p base.Page
	if err := t.store.ReadPage(0, &p); err != nil {
		return base.HeaderPage{}, err
	}
	return base.DecodeHeader(&p)
}

func (t *table) writeHeader(h base.HeaderPage) error {
	var p base.Page
	h.Encode(&p)
	return t.store.WritePage(0, &p)
}

// fail marks the table corrupted and returns the error callers see.
func (m *Manager) fail(t *table, err error) error {
	if t.corrupt == nil {
		t.corrupt = err
		m.opts.logger.Error("table corrupted", "table", t.id, "path", t.path, "error", err)
	}
	return fmt.Errorf("table %d: %w: %w", t.id, ErrTableCorrupted, err)
}

// acquire returns the table locked, or an error if it is unknown or corrupted.
func (m *Manager) acquire(tid base.TableID) (*table, error) {
	m.mu.RLock()
	t, ok := m.tables[tid]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}
	t.mu.Lock()
	if t.corrupt != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("table %d: %w: %w", tid, ErrTableCorrupted, t.corrupt)
	}
	return t, nil
}

// AllocPage pops the head of the free list. An exhausted list doubles the
// file first. Page 0 is never returned.
func (m *Manager) AllocPage(tid base.TableID) (base.PageNo, error) {
	t, err := m.acquire(tid)
	if err != nil {
		return 0, err
	}
	defer t.mu.Unlock()

	h, err := t.readHeader()
	if err != nil {
		return 0, m.fail(t, err)
	}
	if h.FreeHead == 0 {
		old := h.NumPages
		if err := t.threadFree(base.PageNo(old), base.PageNo(2*old)); err != nil {
			return 0, m.fail(t, err)
		}
		if err := t.store.Sync(); err != nil {
			return 0, m.fail(t, err)
		}
		h.FreeHead = base.PageNo(old)
		h.NumPages = 2 * old
		m.opts.logger.Info("table grown", "table", tid, "pages", h.NumPages)
	}

	pgno := h.FreeHead
	var p base.Page
	if err := t.store.ReadPage(pgno, &p); err != nil {
		return 0, m.fail(t, err)
	}
	h.FreeHead = base.DecodeFree(&p).Next
	if err := t.writeHeader(h); err != nil {
		return 0, m.fail(t, err)
	}
	return pgno, nil
}

// FreePage pushes pgno onto the free list. Only the next pointer of the page
// is overwritten.
func (m *Manager) FreePage(tid base.TableID, pgno base.PageNo) error {
	t, err := m.acquire(tid)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()

	h, err := t.readHeader()
	if err != nil {
		return m.fail(t, err)
	}
	if pgno == 0 || uint64(pgno) >= h.NumPages {
		panic(fmt.Sprintf("table %d: free of page %d outside [1,%d)", tid, pgno, h.NumPages))
	}

	var p base.Page
	if err := t.store.ReadPage(pgno, &p); err != nil {
		return m.fail(t, err)
	}
	f := base.FreePage{Next: h.FreeHead}
	f.Encode(&p)
	if err := t.store.WritePage(pgno, &p); err != nil {
		return m.fail(t, err)
	}
	h.FreeHead = pgno
	if err := t.writeHeader(h); err != nil {
		return m.fail(t, err)
	}
	return nil
}

// ReadPage reads page pgno of a table into p.
func (m *Manager) ReadPage(tid base.TableID, pgno base.PageNo, p *base.Page) error {
	t, err := m.acquire(tid)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()

	if err := t.store.ReadPage(pgno, p); err != nil {
		return m.fail(t, err)
	}
	return nil
}

// WritePage writes p to page pgno of a table followed by a durability barrier.
func (m *Manager) WritePage(tid base.TableID, pgno base.PageNo, p *base.Page) error {
	t, err := m.acquire(tid)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()

	if err := t.store.WritePage(pgno, p); err != nil {
		return m.fail(t, err)
	}
	return nil
}

// Header returns the on-disk header of a table.
func (m *Manager) Header(tid base.TableID) (base.HeaderPage, error) {
	t, err := m.acquire(tid)
	if err != nil {
		return base.HeaderPage{}, err
	}
	defer t.mu.Unlock()

	h, err := t.readHeader()
	if err != nil {
		return base.HeaderPage{}, m.fail(t, err)
	}
	return h, nil
}

// FreePages walks the free list and returns its length.
func (m *Manager) FreePages(tid base.TableID) (uint64, error) {
	t, err := m.acquire(tid)
	if err != nil {
		return 0, err
	}
	defer t.mu.Unlock()

	h, err := t.readHeader()
	if err != nil {
		return 0, m.fail(t, err)
	}
	var (
		n uint64
		p base.Page
	)
	for next := h.FreeHead; next != 0; n++ {
		if n >= h.NumPages || uint64(next) >= h.NumPages {
			return 0, m.fail(t, fmt.Errorf("free list leaves the file at page %d: %w", next, base.ErrCorruptPage))
		}
		if err := t.store.ReadPage(next, &p); err != nil {
			return 0, m.fail(t, err)
		}
		next = base.DecodeFree(&p).Next
	}
	return n, nil
}

// Tables returns the ids of all open tables in ascending order.
func (m *Manager) Tables() []base.TableID {
	m.mu.RLock()
	ids := make([]base.TableID, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NumTables returns the number of open tables.
func (m *Manager) NumTables() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables)
}

// CloseTable closes one table file. The id is not reused.
func (m *Manager) CloseTable(tid base.TableID) error {
	m.mu.Lock()
	t, ok := m.tables[tid]
	delete(m.tables, tid)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("table %d: %w", tid, ErrTableNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	m.opts.logger.Debug("table closed", "table", tid, "path", t.path)
	return t.store.Close()
}

// Close closes every open table file.
func (m *Manager) Close() error {
	var err error
	for _, tid := range m.Tables() {
		err = multierr.Append(err, m.CloseTable(tid))
	}
	return err
}

// Stats returns I/O statistics summed over the open tables.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, t := range m.tables {
		s.Add(t.store.Stats())
	}
	return s
}
