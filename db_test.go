package slotdb

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, opts ...Option) (*DB, string) {
	t.Helper()

	opts = append([]Option{WithSyncOff(), WithInitialPages(64)}, opts...)
	db, err := Open(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, t.TempDir()
}

func value(key int64, size int) []byte {
	return bytes.Repeat([]byte{byte(key), byte(key >> 8)}, size/2)
}

func TestOpenTableIdempotent(t *testing.T) {
	t.Parallel()

	db, dir := setup(t)
	path := filepath.Join(dir, "a.db")

	a, err := db.OpenTable(path)
	require.NoError(t, err)
	again, err := db.OpenTable(filepath.Join(dir, ".", "a.db"))
	require.NoError(t, err)
	assert.Equal(t, a, again)

	b, err := db.OpenTable(filepath.Join(dir, "b.db"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	assert.Equal(t, []Table{
		{Path: path, ID: a},
		{Path: filepath.Join(dir, "b.db"), ID: b},
	}, db.Tables())
	assert.Len(t, db.TablesUnder(dir), 2)
}

func TestInsertFindDelete(t *testing.T) {
	t.Parallel()

	db, dir := setup(t)
	tid, err := db.OpenTable(filepath.Join(dir, "t.db"))
	require.NoError(t, err)

	require.NoError(t, db.Insert(tid, 7, value(7, 100)))
	got, err := db.Find(tid, 7)
	require.NoError(t, err)
	assert.Equal(t, value(7, 100), got)

	assert.ErrorIs(t, db.Insert(tid, 7, value(8, 100)), ErrDuplicateKey)
	assert.ErrorIs(t, db.Insert(tid, 8, make([]byte, MinValueSize-1)), ErrInvalidValueSize)
	assert.ErrorIs(t, db.Insert(tid, 8, make([]byte, MaxValueSize+1)), ErrInvalidValueSize)

	require.NoError(t, db.Delete(tid, 7))
	_, err = db.Find(tid, 7)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, db.Delete(tid, 7), ErrKeyNotFound)

	u, err := db.Usage(tid)
	require.NoError(t, err)
	assert.Equal(t, Usage{Inserts: 1, Finds: 1, Deletes: 1}, u)
}

func TestUnknownTable(t *testing.T) {
	t.Parallel()

	db, _ := setup(t)
	assert.ErrorIs(t, db.Insert(99, 1, value(1, 60)), ErrTableNotFound)
	_, err := db.Find(99, 1)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, db.Delete(99, 1), ErrTableNotFound)
	_, err = db.Usage(99)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, db.CloseTable(99), ErrTableNotFound)
}

func TestUsedPagesShrink(t *testing.T) {
	t.Parallel()

	db, dir := setup(t)
	tid, err := db.OpenTable(filepath.Join(dir, "t.db"))
	require.NoError(t, err)

	for k := int64(1); k <= 200; k++ {
		require.NoError(t, db.Insert(tid, k, value(k, 100)))
	}
	full, err := db.UsedPages(tid)
	require.NoError(t, err)

	for k := int64(1); k <= 100; k++ {
		require.NoError(t, db.Delete(tid, k))
	}
	for k := int64(101); k <= 200; k++ {
		got, err := db.Find(tid, k)
		require.NoError(t, err)
		assert.Equal(t, value(k, 100), got)
	}
	half, err := db.UsedPages(tid)
	require.NoError(t, err)
	assert.Less(t, half, full)
	require.NoError(t, db.Check(tid))

	s, err := db.TreeStats(tid)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Records)
	assert.Equal(t, uint64(s.Pages()), half)

	pages, free, err := db.FileStats(tid)
	require.NoError(t, err)
	assert.Equal(t, pages-1-free, half)
}

func TestReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "t.db")

	db, err := Open(WithSyncOff(), WithPoolSize(MinPoolSize))
	require.NoError(t, err)
	tid, err := db.OpenTable(path)
	require.NoError(t, err)
	for k := int64(0); k < 1000; k++ {
		require.NoError(t, db.Insert(tid, k, value(k, 80)))
	}
	require.NoError(t, db.Close())
	assert.ErrorIs(t, db.Close(), ErrDatabaseClosed)
	_, err = db.Find(tid, 1)
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.OpenTable(path)
	assert.ErrorIs(t, err, ErrDatabaseClosed)

	db, err = Open(WithSyncOff())
	require.NoError(t, err)
	defer db.Close()
	tid, err = db.OpenTable(path)
	require.NoError(t, err)
	require.NoError(t, db.Check(tid))
	for k := int64(0); k < 1000; k++ {
		got, err := db.Find(tid, k)
		require.NoError(t, err)
		assert.Equal(t, value(k, 80), got)
	}
}

func TestCloseTable(t *testing.T) {
	t.Parallel()

	db, dir := setup(t)
	path := filepath.Join(dir, "t.db")
	tid, err := db.OpenTable(path)
	require.NoError(t, err)
	require.NoError(t, db.Insert(tid, 1, value(1, 64)))

	require.NoError(t, db.CloseTable(tid))
	_, err = db.Find(tid, 1)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Empty(t, db.Tables())
	assert.Zero(t, db.PoolStats().Resident)

	reopened, err := db.OpenTable(path)
	require.NoError(t, err)
	assert.NotEqual(t, tid, reopened)
	got, err := db.Find(reopened, 1)
	require.NoError(t, err)
	assert.Equal(t, value(1, 64), got)
}

func TestForeignFileRejected(t *testing.T) {
	t.Parallel()

	db, dir := setup(t)
	path := filepath.Join(dir, "junk.db")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 8192), 0o644))

	_, err := db.OpenTable(path)
	assert.ErrorIs(t, err, ErrInvalidMagicNumber)
	assert.Empty(t, db.Tables())
}

func TestPoolSizeClamped(t *testing.T) {
	t.Parallel()

	db, _ := setup(t, WithPoolSize(1))
	assert.Equal(t, MinPoolSize, db.PoolStats().Frames)
}

func TestConcurrentTables(t *testing.T) {
	t.Parallel()

	db, dir := setup(t, WithPoolSize(64))
	const tables, n = 4, 500

	tids := make([]TableID, tables)
	for i := range tids {
		tid, err := db.OpenTable(filepath.Join(dir, string(rune('a'+i))+".db"))
		require.NoError(t, err)
		tids[i] = tid
	}

	var wg sync.WaitGroup
	for _, tid := range tids {
		wg.Add(1)
		go func(tid TableID) {
			defer wg.Done()
			for k := int64(0); k < n; k++ {
				if !assert.NoError(t, db.Insert(tid, k, value(k+int64(tid), 90))) {
					return
				}
			}
			for k := int64(0); k < n; k += 2 {
				if !assert.NoError(t, db.Delete(tid, k)) {
					return
				}
			}
		}(tid)
	}
	// Readers run against the same tables meanwhile.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := int64(0); k < n; k++ {
				_, err := db.Find(tids[k%tables], k)
				if err != nil {
					assert.ErrorIs(t, err, ErrKeyNotFound)
				}
			}
		}()
	}
	wg.Wait()

	for _, tid := range tids {
		require.NoError(t, db.Check(tid))
		s, err := db.TreeStats(tid)
		require.NoError(t, err)
		assert.Equal(t, n/2, s.Records)
	}
	assert.Zero(t, db.PoolStats().Pinned)
}

func TestLocks(t *testing.T) {
	t.Parallel()

	db, dir := setup(t)
	tid, err := db.OpenTable(filepath.Join(dir, "t.db"))
	require.NoError(t, err)

	// Read-modify-write of one key under its record lock.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := db.Locks().Acquire(context.Background(), tid, 1)
			if !assert.NoError(t, err) {
				return
			}
			defer db.Locks().Release(l)

			v, err := db.Find(tid, 1)
			if err == nil {
				n := len(v) + 2
				assert.NoError(t, db.Delete(tid, 1))
				assert.NoError(t, db.Insert(tid, 1, value(1, n)))
				return
			}
			assert.ErrorIs(t, err, ErrKeyNotFound)
			assert.NoError(t, db.Insert(tid, 1, value(1, 60)))
		}()
	}
	wg.Wait()

	got, err := db.Find(tid, 1)
	require.NoError(t, err)
	assert.Len(t, got, 60+7*2)
	assert.Zero(t, db.Locks().Len())
}
