// Package cache implements the buffer pool that sits between the tree engine
// and the table files.
package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/elastic/go-freelru"
	"go.uber.org/multierr"

	"slotdb/internal/base"
)

var (
	ErrPoolExhausted   = errors.New("buffer pool exhausted: every frame is pinned")
	ErrInvalidPoolSize = errors.New("buffer pool size must be positive")
)

// Disk is the page store behind the pool.
type Disk interface {
	ReadPage(tid base.TableID, pgno base.PageNo, p *base.Page) error
	WritePage(tid base.TableID, pgno base.PageNo, p *base.Page) error
	AllocPage(tid base.TableID) (base.PageNo, error)
	FreePage(tid base.TableID, pgno base.PageNo) error
}

type frameKey struct {
	table base.TableID
	page  base.PageNo
}

func hashFrameKey(k frameKey) uint32 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[:8], uint64(k.table))
	binary.LittleEndian.PutUint64(b[8:], uint64(k.page))
	return uint32(xxhash.Sum64(b[:]))
}

// nilFrame terminates the recency list.
const nilFrame = -1

type frame struct {
	page  base.Page
	key   frameKey
	used  bool
	dirty bool
	pins  int

	// Recency list links, toward MRU (prev) and LRU (next).
	prev, next int
}

// BufferPool is a fixed set of page frames with strict LRU replacement among
// unpinned frames.
//
// Callers Get a page, which pins its frame and hands back a private copy, and
// finish with exactly one Put (write back and unpin) or Unpin (release
// unchanged). Dirty frames reach disk only on eviction or flush.
type BufferPool struct {
	mu     sync.Mutex
	disk   Disk
	frames []frame
	index  *freelru.LRU[frameKey, int] // resident (table, page) → frame
	free   []int                       // frames never used or discarded
	head   int                         // most recently used
	tail   int                         // least recently used
	log    base.Logger

	hits       atomic.Uint64
	misses     atomic.Uint64
	evictions  atomic.Uint64
	writeBacks atomic.Uint64
}

// Option configures a BufferPool.
type Option func(*BufferPool)

// WithLogger sets the logger.
func WithLogger(l base.Logger) Option {
	return func(bp *BufferPool) {
		if l != nil {
			bp.log = l
		}
	}
}

// NewBufferPool returns a pool of size frames over disk.
func NewBufferPool(disk Disk, size int, opts ...Option) (*BufferPool, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPoolSize, size)
	}
	// The index never holds more keys than there are frames, so it never
	// evicts on its own.
	index, err := freelru.New[frameKey, int](uint32(size), hashFrameKey)
	if err != nil {
		return nil, err
	}

	bp := &BufferPool{
		disk:   disk,
		frames: make([]frame, size),
		index:  index,
		free:   make([]int, size),
		head:   nilFrame,
		tail:   nilFrame,
		log:    base.DiscardLogger{},
	}
	for i := range bp.frames {
		bp.frames[i].prev, bp.frames[i].next = nilFrame, nilFrame
		// Pop order hands out frame 0 first.
		bp.free[i] = size - 1 - i
	}
	for _, opt := range opts {
		opt(bp)
	}
	return bp, nil
}

// Get pins page pgno of table tid and returns a copy of its bytes.
func (bp *BufferPool) Get(tid base.TableID, pgno base.PageNo) (*base.Page, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	key := frameKey{table: tid, page: pgno}
	if i, ok := bp.index.Get(key); ok {
		bp.hits.Add(1)
		f := &bp.frames[i]
		f.pins++
		bp.moveToFront(i)
		p := f.page
		return &p, nil
	}

	bp.misses.Add(1)
	i, err := bp.victim()
	if err != nil {
		return nil, err
	}
	f := &bp.frames[i]
	if err := bp.disk.ReadPage(tid, pgno, &f.page); err != nil {
		bp.free = append(bp.free, i)
		return nil, err
	}
	f.key = key
	f.used = true
	f.dirty = false
	f.pins = 1
	if bp.index.Add(key, i) {
		panic("buffer pool index evicted a resident page")
	}
	bp.pushFront(i)

	p := f.page
	return &p, nil
}

// Put copies p into the frame of page pgno, marks it dirty and releases one
// pin. The page must be resident and pinned.
func (bp *BufferPool) Put(tid base.TableID, pgno base.PageNo, p *base.Page) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f := bp.pinned(tid, pgno, "put")
	f.page = *p
	f.dirty = true
	f.pins--
}

// Unpin releases one pin on page pgno without changing it.
func (bp *BufferPool) Unpin(tid base.TableID, pgno base.PageNo) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	f := bp.pinned(tid, pgno, "unpin")
	f.pins--
}

func (bp *BufferPool) pinned(tid base.TableID, pgno base.PageNo, op string) *frame {
	i, ok := bp.index.Get(frameKey{table: tid, page: pgno})
	if !ok {
		panic(fmt.Sprintf("buffer pool: %s of non-resident page %d of table %d", op, pgno, tid))
	}
	f := &bp.frames[i]
	if f.pins == 0 {
		panic(fmt.Sprintf("buffer pool: %s of unpinned page %d of table %d", op, pgno, tid))
	}
	return f
}

// victim returns an unlinked, unindexed frame ready to be loaded. Free frames
// go first, then the least recently used unpinned frame, written back first
// if dirty. A failed write-back leaves the victim resident.
func (bp *BufferPool) victim() (int, error) {
	if n := len(bp.free); n > 0 {
		i := bp.free[n-1]
		bp.free = bp.free[:n-1]
		return i, nil
	}

	for i := bp.tail; i != nilFrame; i = bp.frames[i].prev {
		f := &bp.frames[i]
		if f.pins > 0 {
			continue
		}
		if f.dirty {
			if err := bp.disk.WritePage(f.key.table, f.key.page, &f.page); err != nil {
				bp.log.Error("eviction write-back failed",
					"table", f.key.table, "page", f.key.page, "error", err)
				return 0, err
			}
			bp.writeBacks.Add(1)
			f.dirty = false
		}
		bp.unlink(i)
		bp.index.Remove(f.key)
		f.used = false
		bp.evictions.Add(1)
		return i, nil
	}
	return 0, ErrPoolExhausted
}

// AllocPage allocates a page of table tid through the disk manager while
// keeping a resident header frame consistent with the file.
func (bp *BufferPool) AllocPage(tid base.TableID) (base.PageNo, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if err := bp.writeHeader(tid); err != nil {
		return 0, err
	}
	pgno, err := bp.disk.AllocPage(tid)
	if err != nil {
		return 0, err
	}
	// A frame left over from the page's previous life is stale.
	bp.discard(tid, pgno)
	if err := bp.refreshHeader(tid); err != nil {
		return 0, err
	}
	return pgno, nil
}

// FreePage drops the frame of pgno, which must not be pinned, and returns the
// page to the free list.
func (bp *BufferPool) FreePage(tid base.TableID, pgno base.PageNo) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	bp.discard(tid, pgno)
	if err := bp.writeHeader(tid); err != nil {
		return err
	}
	if err := bp.disk.FreePage(tid, pgno); err != nil {
		return err
	}
	return bp.refreshHeader(tid)
}

// writeHeader writes a dirty resident header back so the disk manager sees
// the latest root.
func (bp *BufferPool) writeHeader(tid base.TableID) error {
	i, ok := bp.index.Get(frameKey{table: tid, page: 0})
	if !ok {
		return nil
	}
	f := &bp.frames[i]
	if !f.dirty {
		return nil
	}
	if err := bp.disk.WritePage(tid, 0, &f.page); err != nil {
		return err
	}
	bp.writeBacks.Add(1)
	f.dirty = false
	return nil
}

// refreshHeader reloads a resident header frame in place after the disk
// manager rewrote it. Pins and recency are left alone.
func (bp *BufferPool) refreshHeader(tid base.TableID) error {
	i, ok := bp.index.Get(frameKey{table: tid, page: 0})
	if !ok {
		return nil
	}
	var p base.Page
	if err := bp.disk.ReadPage(tid, 0, &p); err != nil {
		return err
	}
	f := &bp.frames[i]
	f.page = p
	f.dirty = false
	return nil
}

// discard forgets a resident frame without writing it.
func (bp *BufferPool) discard(tid base.TableID, pgno base.PageNo) {
	key := frameKey{table: tid, page: pgno}
	i, ok := bp.index.Get(key)
	if !ok {
		return
	}
	f := &bp.frames[i]
	if f.pins > 0 {
		panic(fmt.Sprintf("buffer pool: discard of pinned page %d of table %d", pgno, tid))
	}
	bp.unlink(i)
	bp.index.Remove(key)
	*f = frame{prev: nilFrame, next: nilFrame}
	bp.free = append(bp.free, i)
}

// FlushAll writes every dirty frame in frame order.
func (bp *BufferPool) FlushAll() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	return bp.flush(func(frameKey) bool { return true })
}

// FlushTable writes every dirty frame of one table.
func (bp *BufferPool) FlushTable(tid base.TableID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	return bp.flush(func(k frameKey) bool { return k.table == tid })
}

func (bp *BufferPool) flush(match func(frameKey) bool) error {
	var err error
	for i := range bp.frames {
		f := &bp.frames[i]
		if !f.used || !f.dirty || !match(f.key) {
			continue
		}
		if werr := bp.disk.WritePage(f.key.table, f.key.page, &f.page); werr != nil {
			err = multierr.Append(err, fmt.Errorf("flush page %d of table %d: %w", f.key.page, f.key.table, werr))
			continue
		}
		bp.writeBacks.Add(1)
		f.dirty = false
	}
	return err
}

// DropTable discards every frame of a table without writing it. None may be
// pinned.
func (bp *BufferPool) DropTable(tid base.TableID) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for i := range bp.frames {
		f := &bp.frames[i]
		if f.used && f.key.table == tid {
			bp.discard(tid, f.key.page)
		}
	}
}

func (bp *BufferPool) pushFront(i int) {
	f := &bp.frames[i]
	f.prev = nilFrame
	f.next = bp.head
	if bp.head != nilFrame {
		bp.frames[bp.head].prev = i
	}
	bp.head = i
	if bp.tail == nilFrame {
		bp.tail = i
	}
}

func (bp *BufferPool) unlink(i int) {
	f := &bp.frames[i]
	if f.prev != nilFrame {
		bp.frames[f.prev].next = f.next
	} else {
		bp.head = f.next
	}
	if f.next != nilFrame {
		bp.frames[f.next].prev = f.prev
	} else {
		bp.tail = f.prev
	}
	f.prev, f.next = nilFrame, nilFrame
}

func (bp *BufferPool) moveToFront(i int) {
	if bp.head == i {
		return
	}
	bp.unlink(i)
	bp.pushFront(i)
}

// Size returns the number of frames.
func (bp *BufferPool) Size() int {
	return len(bp.frames)
}

// Resident reports whether a page currently occupies a frame.
func (bp *BufferPool) Resident(tid base.TableID, pgno base.PageNo) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	_, ok := bp.index.Get(frameKey{table: tid, page: pgno})
	return ok
}

// Stats holds pool counters and a snapshot of frame state.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	WriteBacks uint64

	Frames   int
	Resident int
	Pinned   int
	Dirty    int
}

// Stats returns pool statistics.
func (bp *BufferPool) Stats() Stats {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	s := Stats{
		Hits:       bp.hits.Load(),
		Misses:     bp.misses.Load(),
		Evictions:  bp.evictions.Load(),
		WriteBacks: bp.writeBacks.Load(),
		Frames:     len(bp.frames),
	}
	for i := range bp.frames {
		f := &bp.frames[i]
		if !f.used {
			continue
		}
		s.Resident++
		if f.pins > 0 {
			s.Pinned++
		}
		if f.dirty {
			s.Dirty++
		}
	}
	return s
}
