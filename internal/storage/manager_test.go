package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotdb/internal/base"
)

func setup(t *testing.T, opts ...Option) (*Manager, base.TableID, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "table.db")
	m := New(append([]Option{WithSyncOff()}, opts...)...)
	tid, err := m.OpenTable(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, tid, path
}

func TestCreateTable(t *testing.T) {
	t.Parallel()

	m, tid, path := setup(t, WithInitialPages(16))

	h, err := m.Header(tid)
	require.NoError(t, err)
	assert.Equal(t, base.HeaderPage{FreeHead: 1, NumPages: 16}, h)

	free, err := m.FreePages(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), free)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(16*base.PageSize), info.Size())
}

func TestDefaultInitialPages(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t)
	h, err := m.Header(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(base.DefaultInitialPages), h.NumPages)
}

func TestAllocFreeLIFO(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t, WithInitialPages(8))

	var got []base.PageNo
	for i := 0; i < 3; i++ {
		pgno, err := m.AllocPage(tid)
		require.NoError(t, err)
		got = append(got, pgno)
	}
	assert.Equal(t, []base.PageNo{1, 2, 3}, got)

	require.NoError(t, m.FreePage(tid, 2))
	require.NoError(t, m.FreePage(tid, 1))

	h, err := m.Header(tid)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(1), h.FreeHead)

	pgno, err := m.AllocPage(tid)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(1), pgno)
	pgno, err = m.AllocPage(tid)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(2), pgno)
	pgno, err = m.AllocPage(tid)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(4), pgno)
}

func TestFreeKeepsPayload(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t, WithInitialPages(4))
	pgno, err := m.AllocPage(tid)
	require.NoError(t, err)

	var p base.Page
	for i := range p.Data {
		p.Data[i] = 0x5A
	}
	require.NoError(t, m.WritePage(tid, pgno, &p))
	require.NoError(t, m.FreePage(tid, pgno))

	var got base.Page
	require.NoError(t, m.ReadPage(tid, pgno, &got))
	assert.Equal(t, base.PageNo(2), base.DecodeFree(&got).Next)
	assert.Equal(t, base.KindFree, base.PageKind(pgno, &got))
	assert.Equal(t, p.Data[12:], got.Data[12:])
}

func TestGrowDoubles(t *testing.T) {
	t.Parallel()

	m, tid, path := setup(t, WithInitialPages(4))

	for want := base.PageNo(1); want < 4; want++ {
		pgno, err := m.AllocPage(tid)
		require.NoError(t, err)
		require.Equal(t, want, pgno)
	}

	pgno, err := m.AllocPage(tid)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(4), pgno)

	h, err := m.Header(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), h.NumPages)
	assert.Equal(t, base.PageNo(5), h.FreeHead)

	free, err := m.FreePages(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), free)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8*base.PageSize), info.Size())

	// Drain the second region and grow again.
	for i := 0; i < 3; i++ {
		_, err := m.AllocPage(tid)
		require.NoError(t, err)
	}
	pgno, err = m.AllocPage(tid)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(8), pgno)
	h, err = m.Header(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(16), h.NumPages)
}

func TestGrowAcrossChunks(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t, WithInitialPages(growChunk+7))
	free, err := m.FreePages(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(growChunk+6), free)
}

func TestReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.db")
	m := New(WithSyncOff(), WithInitialPages(8))
	tid, err := m.OpenTable(path)
	require.NoError(t, err)

	pgno, err := m.AllocPage(tid)
	require.NoError(t, err)
	var p base.Page
	copy(p.Data[:], "persisted")
	require.NoError(t, m.WritePage(tid, pgno, &p))
	require.NoError(t, m.Close())

	m = New(WithSyncOff())
	defer m.Close()
	tid, err = m.OpenTable(path)
	require.NoError(t, err)

	h, err := m.Header(tid)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), h.NumPages)
	assert.Equal(t, base.PageNo(2), h.FreeHead)

	var got base.Page
	require.NoError(t, m.ReadPage(tid, pgno, &got))
	assert.Equal(t, p, got)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := New(WithSyncOff())
	defer m.Close()

	zeros := filepath.Join(dir, "zeros.db")
	require.NoError(t, os.WriteFile(zeros, make([]byte, base.PageSize), 0600))
	_, err := m.OpenTable(zeros)
	assert.ErrorIs(t, err, base.ErrInvalidMagicNumber)

	odd := filepath.Join(dir, "odd.db")
	require.NoError(t, os.WriteFile(odd, make([]byte, base.PageSize+1), 0600))
	_, err = m.OpenTable(odd)
	assert.ErrorIs(t, err, base.ErrCorruptPage)

	assert.Equal(t, 0, m.NumTables())
}

func TestFreeInvalidPagePanics(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t, WithInitialPages(4))
	assert.Panics(t, func() { _ = m.FreePage(tid, 0) })
	assert.Panics(t, func() { _ = m.FreePage(tid, 4) })
}

func TestCorruptionIsSticky(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t, WithInitialPages(4))

	// Pull the file out from under the manager.
	m.tables[tid].store.file.Close()

	var p base.Page
	err := m.ReadPage(tid, 1, &p)
	require.ErrorIs(t, err, ErrTableCorrupted)

	_, err = m.AllocPage(tid)
	assert.ErrorIs(t, err, ErrTableCorrupted)
	_, err = m.Header(tid)
	assert.ErrorIs(t, err, ErrTableCorrupted)
}

func TestShortReadCorrupts(t *testing.T) {
	t.Parallel()

	m, tid, _ := setup(t, WithInitialPages(4))

	var p base.Page
	err := m.ReadPage(tid, 100, &p)
	require.ErrorIs(t, err, ErrTableCorrupted)
	assert.ErrorIs(t, m.WritePage(tid, 1, &p), ErrTableCorrupted)
}

func TestUnknownTable(t *testing.T) {
	t.Parallel()

	m := New()
	_, err := m.AllocPage(42)
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.ErrorIs(t, m.CloseTable(42), ErrTableNotFound)
}

func TestMultipleTables(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := New(WithSyncOff(), WithInitialPages(4))
	a, err := m.OpenTable(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	b, err := m.OpenTable(filepath.Join(dir, "b.db"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Equal(t, []base.TableID{a, b}, m.Tables())

	_, err = m.AllocPage(a)
	require.NoError(t, err)
	hb, err := m.Header(b)
	require.NoError(t, err)
	assert.Equal(t, base.PageNo(1), hb.FreeHead)

	assert.Greater(t, m.Stats().Writes, uint64(0))
	require.NoError(t, m.Close())
	assert.Equal(t, 0, m.NumTables())
}

func TestSyncBarrier(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.db")
	m := New(WithInitialPages(4))
	defer m.Close()
	tid, err := m.OpenTable(path)
	require.NoError(t, err)

	before := m.Stats().Syncs
	var p base.Page
	require.NoError(t, m.WritePage(tid, 1, &p))
	assert.Equal(t, before+1, m.Stats().Syncs)
}

func TestDirectIO(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "table.db")
	m := New(WithSyncOff(), WithDirectIO(), WithInitialPages(4))
	defer m.Close()
	tid, err := m.OpenTable(path)
	if err != nil {
		t.Skipf("direct I/O unavailable: %v", err)
	}

	pgno, err := m.AllocPage(tid)
	require.NoError(t, err)
	var p base.Page
	copy(p.Data[100:], "direct")
	require.NoError(t, m.WritePage(tid, pgno, &p))

	var got base.Page
	require.NoError(t, m.ReadPage(tid, pgno, &got))
	assert.Equal(t, p, got)
}
