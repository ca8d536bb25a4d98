// Package algo contains algorithms used for traversing and editing a b+ tree.
//
// The functions in this file work on decoded pages only and never touch the
// buffer pool; Tree strings them together and persists the results.
package algo

import (
	"fmt"

	"slotdb/internal/base"
)

// InsertRecord returns recs with r inserted in key order.
func InsertRecord(recs []base.Record, r base.Record) []base.Record {
	pos := 0
	for pos < len(recs) && recs[pos].Key < r.Key {
		pos++
	}
	recs = append(recs, base.Record{})
	copy(recs[pos+1:], recs[pos:])
	recs[pos] = r
	return recs
}

// LeafSplitIndex returns the first index at which the running total of slot
// and value bytes reaches base.LeafSplitThreshold. Records before it stay in
// the left leaf.
func LeafSplitIndex(recs []base.Record) int {
	used := 0
	for i, r := range recs {
		if used+base.SlotSize+len(r.Value) >= base.LeafSplitThreshold {
			if i == 0 {
				panic("leaf split: first record alone reaches the split threshold")
			}
			return i
		}
		used += base.SlotSize + len(r.Value)
	}
	panic(fmt.Sprintf("leaf split: %d records use only %d bytes", len(recs), used))
}

// SplitLeaf distributes the records of left plus r over left and right.
// right must be empty; it takes over left's sibling and parent.
func SplitLeaf(left, right *base.LeafPage, r base.Record) {
	recs := InsertRecord(left.Records(), r)
	cut := LeafSplitIndex(recs)

	right.Parent = left.Parent
	right.Sibling = left.Sibling
	right.SetRecords(recs[cut:])

	left.Sibling = right.ID
	left.SetRecords(recs[:cut])
}

// internalCut is the number of children that stay in the left half of a
// split internal page: ⌈InternalOrder/2⌉.
const internalCut = (base.InternalOrder + 1) / 2

// SplitInternal splits an overfull internal page (MaxInternalKeys+1 keys) in
// place. left keeps internalCut-1 keys, the next key moves up and is returned,
// and right receives the remainder. right takes over left's parent.
func SplitInternal(left, right *base.InternalPage) int64 {
	if len(left.Keys) != base.MaxInternalKeys+1 {
		panic(fmt.Sprintf("internal split of page %d with %d keys", left.ID, len(left.Keys)))
	}
	median := left.Keys[internalCut-1]

	right.Parent = left.Parent
	right.Keys = append(right.Keys[:0], left.Keys[internalCut:]...)
	right.Children = append(right.Children[:0], left.Children[internalCut:]...)

	left.Keys = left.Keys[:internalCut-1]
	left.Children = left.Children[:internalCut]
	return median
}

// LeafUnderfull reports whether a non-root leaf needs rebalancing.
func LeafUnderfull(l *base.LeafPage) bool {
	return l.FreeSpace >= base.LeafMergeThreshold
}

// InternalUnderfull reports whether a non-root internal page needs rebalancing.
func InternalUnderfull(in *base.InternalPage) bool {
	return len(in.Keys) < base.MinInternalKeys
}

// CanMergeLeaves reports whether both leaves fit into one page.
func CanMergeLeaves(a, b *base.LeafPage) bool {
	return a.FreeSpace+b.FreeSpace >= base.BodySize
}

// CanMergeInternal reports whether both pages plus the separator between
// them fit into one page.
func CanMergeInternal(a, b *base.InternalPage) bool {
	return len(a.Keys)+len(b.Keys) < base.MaxInternalKeys
}

// MergeLeaves appends every record of right to left and unlinks right from
// the sibling chain.
func MergeLeaves(left, right *base.LeafPage) {
	left.SetRecords(append(left.Records(), right.Records()...))
	left.Sibling = right.Sibling
}

// MergeInternal appends the separator and every key and child of right to
// left. It returns the children that moved and now need left as parent.
func MergeInternal(left, right *base.InternalPage, separator int64) []base.PageNo {
	left.Keys = append(left.Keys, separator)
	left.Keys = append(left.Keys, right.Keys...)
	left.Children = append(left.Children, right.Children...)
	return right.Children
}

// BorrowLeafFromLeft moves the last records of left to the front of right
// until right is no longer underfull. It returns the new separator.
func BorrowLeafFromLeft(left, right *base.LeafPage) int64 {
	lrecs := left.Records()
	rrecs := right.Records()
	free := int(right.FreeSpace)
	n := len(lrecs)
	for free >= base.LeafMergeThreshold && n > 0 {
		n--
		free -= base.SlotSize + len(lrecs[n].Value)
	}

	right.SetRecords(append(lrecs[n:len(lrecs):len(lrecs)], rrecs...))
	left.SetRecords(lrecs[:n])
	return right.Key(0)
}

// BorrowLeafFromRight moves the first records of right to the end of left
// until left is no longer underfull. It returns the new separator.
func BorrowLeafFromRight(left, right *base.LeafPage) int64 {
	lrecs := left.Records()
	rrecs := right.Records()
	free := int(left.FreeSpace)
	n := 0
	for free >= base.LeafMergeThreshold && n < len(rrecs) {
		free -= base.SlotSize + len(rrecs[n].Value)
		n++
	}

	left.SetRecords(append(lrecs, rrecs[:n]...))
	right.SetRecords(rrecs[n:])
	return right.Key(0)
}

// BorrowInternalFromLeft rotates the last child of left through the parent
// into the front of right. It returns the new separator and the moved child.
func BorrowInternalFromLeft(left, right *base.InternalPage, separator int64) (int64, base.PageNo) {
	last := len(left.Keys) - 1
	newSep := left.Keys[last]
	child := left.Children[last+1]

	right.Keys = append([]int64{separator}, right.Keys...)
	right.Children = append([]base.PageNo{child}, right.Children...)

	left.Keys = left.Keys[:last]
	left.Children = left.Children[:last+1]
	return newSep, child
}

// BorrowInternalFromRight rotates the first child of right through the parent
// onto the end of left. It returns the new separator and the moved child.
func BorrowInternalFromRight(left, right *base.InternalPage, separator int64) (int64, base.PageNo) {
	newSep := right.Keys[0]
	child := right.Children[0]

	left.Keys = append(left.Keys, separator)
	left.Children = append(left.Children, child)

	right.Keys = append(right.Keys[:0], right.Keys[1:]...)
	right.Children = append(right.Children[:0], right.Children[1:]...)
	return newSep, child
}
