package algo

import (
	"fmt"

	"slotdb/internal/base"
)

// Insert stores value under key. Keys are unique; an existing key is left
// untouched and ErrDuplicateKey returned.
func (t *Tree) Insert(key int64, value []byte) error {
	if !base.ValidValueSize(len(value)) {
		return fmt.Errorf("%w: %d bytes, want %d..%d",
			ErrInvalidValueSize, len(value), base.MinValueSize, base.MaxValueSize)
	}

	root, err := t.root()
	if err != nil {
		return err
	}
	if root == 0 {
		return t.startTree(key, value)
	}

	leaf, err := t.findLeaf(root, key)
	if err != nil {
		return err
	}
	if _, ok := leaf.Search(key); ok {
		return ErrDuplicateKey
	}

	if leaf.Fits(len(value)) {
		leaf.Insert(key, value)
		return t.write(leaf)
	}
	return t.splitLeaf(leaf, base.Record{Key: key, Value: value})
}

func (t *Tree) startTree(key int64, value []byte) error {
	pgno, err := t.pager.AllocPage(t.table)
	if err != nil {
		return err
	}
	leaf := base.NewLeafPage(pgno)
	leaf.Insert(key, value)
	if err := t.write(leaf); err != nil {
		return err
	}
	return t.setRoot(pgno)
}

func (t *Tree) splitLeaf(leaf *base.LeafPage, r base.Record) error {
	pgno, err := t.pager.AllocPage(t.table)
	if err != nil {
		return err
	}
	right := base.NewLeafPage(pgno)
	SplitLeaf(leaf, right, r)

	if err := t.write(leaf); err != nil {
		return err
	}
	if err := t.write(right); err != nil {
		return err
	}
	return t.insertIntoParent(leaf, right.Key(0), right)
}

// insertIntoParent links right into the parent of left, with key as the
// separator between them. Both pages are already written.
func (t *Tree) insertIntoParent(left base.Node, key int64, right base.Node) error {
	if left.ParentNo() == 0 {
		return t.newRoot(left.PageNo(), key, right.PageNo())
	}

	parent, err := t.readInternal(left.ParentNo())
	if err != nil {
		return err
	}
	i := parent.IndexOf(left.PageNo())
	if i < 0 {
		return fmt.Errorf("table %d: page %d missing from its parent %d: %w",
			t.table, left.PageNo(), parent.ID, ErrTreeCorrupted)
	}
	parent.InsertAfter(i, key, right.PageNo())

	if len(parent.Keys) <= base.MaxInternalKeys {
		return t.write(parent)
	}
	return t.splitInternal(parent)
}

func (t *Tree) newRoot(left base.PageNo, key int64, right base.PageNo) error {
	pgno, err := t.pager.AllocPage(t.table)
	if err != nil {
		return err
	}
	root := base.NewInternalPage(pgno, left)
	root.InsertAfter(0, key, right)
	if err := t.write(root); err != nil {
		return err
	}
	if err := t.setParents(root.Children, pgno); err != nil {
		return err
	}
	return t.setRoot(pgno)
}

// splitInternal splits a parent holding one key too many and pushes the
// median up.
func (t *Tree) splitInternal(left *base.InternalPage) error {
	pgno, err := t.pager.AllocPage(t.table)
	if err != nil {
		return err
	}
	right := base.NewInternalPage(pgno, 0)
	median := SplitInternal(left, right)

	if err := t.write(left); err != nil {
		return err
	}
	if err := t.write(right); err != nil {
		return err
	}
	if err := t.setParents(right.Children, pgno); err != nil {
		return err
	}
	return t.insertIntoParent(left, median, right)
}
