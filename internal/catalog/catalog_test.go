package catalog

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotdb/internal/base"
)

func TestRegisterLookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New()
	require.NoError(t, c.Register(filepath.Join(dir, "a.db"), 1))

	tid, ok := c.Lookup(filepath.Join(dir, "sub", "..", "a.db"))
	require.True(t, ok)
	assert.Equal(t, base.TableID(1), tid)

	_, ok = c.Lookup(filepath.Join(dir, "b.db"))
	assert.False(t, ok)

	path, ok := c.Path(1)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "a.db"), path)

	assert.ErrorIs(t, c.Register(filepath.Join(dir, "a.db"), 2), ErrPathRegistered)
	assert.ErrorIs(t, c.Register(filepath.Join(dir, "b.db"), 1), ErrTableRegistered)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New()
	require.NoError(t, c.Register(filepath.Join(dir, "a.db"), 1))
	require.NoError(t, c.Remove(1))

	_, ok := c.Lookup(filepath.Join(dir, "a.db"))
	assert.False(t, ok)
	assert.ErrorIs(t, c.Remove(1), ErrUnknownTable)
	assert.Empty(t, c.Tables())

	// The path is free again.
	require.NoError(t, c.Register(filepath.Join(dir, "a.db"), 2))
}

func TestTablesAndUnder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New()
	require.NoError(t, c.Register(filepath.Join(dir, "x", "c.db"), 3))
	require.NoError(t, c.Register(filepath.Join(dir, "b.db"), 2))
	require.NoError(t, c.Register(filepath.Join(dir, "x", "a.db"), 1))
	require.NoError(t, c.Register(filepath.Join(dir, "xy.db"), 4))

	all := c.Tables()
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Path, all[i].Path)
	}

	under := c.Under(filepath.Join(dir, "x"))
	assert.Equal(t, []Table{
		{Path: filepath.Join(dir, "x", "a.db"), ID: 1},
		{Path: filepath.Join(dir, "x", "c.db"), ID: 3},
	}, under)

	assert.Equal(t, []base.TableID{1, 2, 3, 4}, c.IDs())
}

func TestUsage(t *testing.T) {
	t.Parallel()

	c := New()
	require.NoError(t, c.Register(filepath.Join(t.TempDir(), "a.db"), 1))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.CountInsert(1)
				c.CountFind(1)
			}
			c.CountDelete(1)
		}()
	}
	wg.Wait()

	u, err := c.Usage(1)
	require.NoError(t, err)
	assert.Equal(t, Usage{Inserts: 800, Finds: 800, Deletes: 8}, u)

	c.CountInsert(9)
	_, err = c.Usage(9)
	assert.ErrorIs(t, err, ErrUnknownTable)
}
