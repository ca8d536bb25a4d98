package algo

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slotdb/internal/base"
)

var slow = flag.Bool("slow", false, "run slow tests")

func val(key int64, size int) []byte {
	return bytes.Repeat([]byte{byte(key)}, size)
}

func makeLeaf(id base.PageNo, keys []int64, size int) *base.LeafPage {
	l := base.NewLeafPage(id)
	for _, k := range keys {
		l.Insert(k, val(k, size))
	}
	return l
}

func makeInternal(id base.PageNo, keys []int64) *base.InternalPage {
	in := base.NewInternalPage(id, 1000)
	for i, k := range keys {
		in.InsertAfter(i, k, base.PageNo(1001+i))
	}
	return in
}

func span(from, to int64) []int64 {
	var keys []int64
	for k := from; k < to; k++ {
		keys = append(keys, k)
	}
	return keys
}

func TestLeafSplitIndex(t *testing.T) {
	tests := []struct {
		name string
		size int
		n    int
		want int
	}{
		// 15 records of 112+12 bytes use 1860; the 16th would reach 1984.
		{name: "max values", size: base.MaxValueSize, n: 33, want: 15},
		{name: "100 byte values", size: 100, n: 36, want: 17},
		{name: "min values", size: base.MinValueSize, n: 64, want: 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := make([]base.Record, tt.n)
			for i := range recs {
				recs[i] = base.Record{Key: int64(i), Value: val(int64(i), tt.size)}
			}
			assert.Equal(t, tt.want, LeafSplitIndex(recs))
		})
	}
}

func TestSplitLeaf(t *testing.T) {
	t.Parallel()

	left := makeLeaf(1, span(0, 35), 100)
	left.Parent = 9
	left.Sibling = 7
	require.False(t, left.Fits(100))

	right := base.NewLeafPage(2)
	SplitLeaf(left, right, base.Record{Key: 10_000, Value: val(1, 100)})

	require.NoError(t, left.Validate())
	require.NoError(t, right.Validate())
	assert.Equal(t, 17, left.NumKeys())
	assert.Equal(t, 19, right.NumKeys())
	assert.Equal(t, int64(17), right.Key(0))
	assert.Equal(t, int64(10_000), right.Key(right.NumKeys()-1))
	assert.Equal(t, base.PageNo(2), left.Sibling)
	assert.Equal(t, base.PageNo(7), right.Sibling)
	assert.Equal(t, base.PageNo(9), right.Parent)
	assert.False(t, LeafUnderfull(left))
	assert.False(t, LeafUnderfull(right))
}

func TestSplitInternal(t *testing.T) {
	t.Parallel()

	left := makeInternal(1, span(0, base.MaxInternalKeys+1))
	left.Parent = 5
	right := base.NewInternalPage(2, 0)

	median := SplitInternal(left, right)
	assert.Equal(t, int64(124), median)
	assert.Len(t, left.Keys, 124)
	assert.Len(t, right.Keys, 124)
	assert.Len(t, left.Children, 125)
	assert.Len(t, right.Children, 125)
	assert.Equal(t, int64(125), right.Keys[0])
	assert.Equal(t, base.PageNo(5), right.Parent)
	require.NoError(t, left.Validate())
	require.NoError(t, right.Validate())
	assert.False(t, InternalUnderfull(left))
	assert.False(t, InternalUnderfull(right))
}

func TestCanMerge(t *testing.T) {
	tests := []struct {
		name string
		a, b int
		size int
		want bool
	}{
		{name: "two small leaves", a: 10, b: 10, size: 100, want: true},
		{name: "exactly full", a: 20, b: 12, size: 112, want: true},
		{name: "one record too many", a: 20, b: 13, size: 112, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := makeLeaf(1, span(0, int64(tt.a)), tt.size)
			b := makeLeaf(2, span(100, 100+int64(tt.b)), tt.size)
			assert.Equal(t, tt.want, CanMergeLeaves(a, b))
		})
	}

	assert.True(t, CanMergeInternal(makeInternal(1, span(0, 123)), makeInternal(2, span(200, 324))))
	assert.False(t, CanMergeInternal(makeInternal(1, span(0, 123)), makeInternal(2, span(200, 325))))
}

func TestMergeLeaves(t *testing.T) {
	t.Parallel()

	left := makeLeaf(1, span(0, 10), 60)
	right := makeLeaf(2, span(10, 20), 90)
	right.Sibling = 3

	MergeLeaves(left, right)
	require.NoError(t, left.Validate())
	assert.Equal(t, 20, left.NumKeys())
	assert.Equal(t, base.PageNo(3), left.Sibling)
	i, ok := left.Search(15)
	require.True(t, ok)
	assert.Equal(t, val(15, 90), left.Value(i))
}

func TestMergeInternal(t *testing.T) {
	t.Parallel()

	left := makeInternal(1, []int64{10, 20})
	right := base.NewInternalPage(2, 50)
	right.InsertAfter(0, 40, 51)

	moved := MergeInternal(left, right, 30)
	assert.Equal(t, []int64{10, 20, 30, 40}, left.Keys)
	assert.Equal(t, []base.PageNo{1000, 1001, 1002, 50, 51}, left.Children)
	assert.Equal(t, []base.PageNo{50, 51}, moved)
	require.NoError(t, left.Validate())
}

func TestBorrowLeaf(t *testing.T) {
	t.Parallel()

	t.Run("from left", func(t *testing.T) {
		left := makeLeaf(1, span(0, 30), 112)
		right := makeLeaf(2, span(100, 110), 112)
		require.True(t, LeafUnderfull(right))
		require.False(t, CanMergeLeaves(left, right))

		sep := BorrowLeafFromLeft(left, right)
		require.NoError(t, left.Validate())
		require.NoError(t, right.Validate())
		assert.False(t, LeafUnderfull(left))
		assert.False(t, LeafUnderfull(right))
		assert.Equal(t, right.Key(0), sep)
		assert.Equal(t, 40, left.NumKeys()+right.NumKeys())
		assert.Less(t, left.Key(left.NumKeys()-1), right.Key(0))
	})

	t.Run("from right", func(t *testing.T) {
		left := makeLeaf(1, span(0, 10), 112)
		right := makeLeaf(2, span(100, 130), 112)

		sep := BorrowLeafFromRight(left, right)
		require.NoError(t, left.Validate())
		require.NoError(t, right.Validate())
		assert.False(t, LeafUnderfull(left))
		assert.False(t, LeafUnderfull(right))
		assert.Equal(t, right.Key(0), sep)
		assert.Equal(t, int64(100), left.Key(10))
	})
}

func TestBorrowInternal(t *testing.T) {
	t.Parallel()

	t.Run("from left", func(t *testing.T) {
		left := makeInternal(1, []int64{10, 20, 30})
		right := base.NewInternalPage(2, 50)
		right.InsertAfter(0, 60, 51)

		sep, child := BorrowInternalFromLeft(left, right, 40)
		assert.Equal(t, int64(30), sep)
		assert.Equal(t, base.PageNo(1003), child)
		assert.Equal(t, []int64{10, 20}, left.Keys)
		assert.Equal(t, []base.PageNo{1000, 1001, 1002}, left.Children)
		assert.Equal(t, []int64{40, 60}, right.Keys)
		assert.Equal(t, []base.PageNo{1003, 50, 51}, right.Children)
	})

	t.Run("from right", func(t *testing.T) {
		left := base.NewInternalPage(1, 50)
		left.InsertAfter(0, 5, 51)
		right := makeInternal(2, []int64{20, 30})

		sep, child := BorrowInternalFromRight(left, right, 10)
		assert.Equal(t, int64(20), sep)
		assert.Equal(t, base.PageNo(1000), child)
		assert.Equal(t, []int64{5, 10}, left.Keys)
		assert.Equal(t, []base.PageNo{50, 51, 1000}, left.Children)
		assert.Equal(t, []int64{30}, right.Keys)
		assert.Equal(t, []base.PageNo{1001, 1002}, right.Children)
	})
}
