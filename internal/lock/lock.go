// Package lock is a table of exclusive record locks keyed by (table, key).
// Waiters on the same record are granted the lock in arrival order.
package lock

import (
	"context"
	"sync"

	"slotdb/internal/base"
)

type recordID struct {
	table base.TableID
	key   int64
}

// Lock is one acquisition of a record. The holder is the head of the
// record's queue.
type Lock struct {
	id       recordID
	prev     *Lock
	next     *Lock
	granted  chan struct{}
	released bool
}

func (l *Lock) Table() base.TableID { return l.id.table }
func (l *Lock) Key() int64          { return l.id.key }

type queue struct {
	head, tail *Lock
}

// Table is safe for concurrent use.
type Table struct {
	mu     sync.Mutex
	queues map[recordID]*queue
}

func NewTable() *Table {
	return &Table{queues: make(map[recordID]*queue)}
}

// Acquire blocks until the caller holds the lock on (table, key) or ctx is
// done. A cancelled waiter leaves the queue without ever holding the lock.
func (t *Table) Acquire(ctx context.Context, table base.TableID, key int64) (*Lock, error) {
	id := recordID{table: table, key: key}
	l := &Lock{id: id, granted: make(chan struct{})}

	t.mu.Lock()
	q, ok := t.queues[id]
	if !ok {
		q = &queue{}
		t.queues[id] = q
	}
	if q.tail == nil {
		q.head, q.tail = l, l
		close(l.granted)
		t.mu.Unlock()
		return l, nil
	}
	l.prev = q.tail
	q.tail.next = l
	q.tail = l
	t.mu.Unlock()

	select {
	case <-l.granted:
		return l, nil
	case <-ctx.Done():
	}

	t.mu.Lock()
	select {
	case <-l.granted:
		// Granted while giving up: pass it on.
		t.release(l)
	default:
		t.unlink(l)
	}
	l.released = true
	t.mu.Unlock()
	return nil, ctx.Err()
}

// Release hands the lock to the next waiter. Releasing a lock twice panics.
func (t *Table) Release(l *Lock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if l.released {
		panic("lock: release of a released lock")
	}
	l.released = true
	t.release(l)
}

func (t *Table) release(l *Lock) {
	next := l.next
	t.unlink(l)
	if next != nil {
		close(next.granted)
	}
}

func (t *Table) unlink(l *Lock) {
	q := t.queues[l.id]
	if l.prev != nil {
		l.prev.next = l.next
	} else {
		q.head = l.next
	}
	if l.next != nil {
		l.next.prev = l.prev
	} else {
		q.tail = l.prev
	}
	l.prev, l.next = nil, nil
	if q.head == nil {
		delete(t.queues, l.id)
	}
}

// Waiters returns the number of acquisitions queued on (table, key),
// including the holder.
func (t *Table) Waiters(table base.TableID, key int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queues[recordID{table: table, key: key}]
	if !ok {
		return 0
	}
	n := 0
	for l := q.head; l != nil; l = l.next {
		n++
	}
	return n
}

// Len returns the number of records with a holder.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queues)
}
