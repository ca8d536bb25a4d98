package algo

import (
	"fmt"

	"slotdb/internal/base"
)

// Delete removes key from the tree.
func (t *Tree) Delete(key int64) error {
	root, err := t.root()
	if err != nil {
		return err
	}
	if root == 0 {
		return ErrKeyNotFound
	}
	leaf, err := t.findLeaf(root, key)
	if err != nil {
		return err
	}
	i, ok := leaf.Search(key)
	if !ok {
		return ErrKeyNotFound
	}
	leaf.RemoveAt(i)
	return t.rebalance(leaf)
}

// rebalance persists n, which just lost an entry, and restores the occupancy
// invariants on the way up.
func (t *Tree) rebalance(n base.Node) error {
	if n.ParentNo() == 0 {
		return t.adjustRoot(n)
	}
	if !underfull(n) {
		return t.write(n)
	}

	parent, err := t.readInternal(n.ParentNo())
	if err != nil {
		return err
	}
	ci := parent.IndexOf(n.PageNo())
	if ci < 0 {
		return fmt.Errorf("table %d: page %d missing from its parent %d: %w",
			t.table, n.PageNo(), parent.ID, ErrTreeCorrupted)
	}

	// The neighbor is the left sibling, or the right one for a leftmost child.
	// sep indexes the parent key between the two.
	var (
		sep         int
		left, right base.Node
	)
	if ci == 0 {
		left = n
		right, err = t.read(parent.Children[1])
	} else {
		sep = ci - 1
		left, err = t.read(parent.Children[sep])
		right = n
	}
	if err != nil {
		return err
	}
	if left.Kind() != right.Kind() {
		return fmt.Errorf("table %d: siblings %d and %d differ in kind: %w",
			t.table, left.PageNo(), right.PageNo(), ErrTreeCorrupted)
	}

	if canMerge(left, right) {
		return t.merge(parent, sep, left, right)
	}
	return t.redistribute(parent, sep, left, right, ci == 0)
}

func underfull(n base.Node) bool {
	switch n := n.(type) {
	case *base.LeafPage:
		return LeafUnderfull(n)
	case *base.InternalPage:
		return InternalUnderfull(n)
	}
	return false
}

func canMerge(left, right base.Node) bool {
	switch l := left.(type) {
	case *base.LeafPage:
		return CanMergeLeaves(l, right.(*base.LeafPage))
	case *base.InternalPage:
		return CanMergeInternal(l, right.(*base.InternalPage))
	}
	return false
}

// adjustRoot persists a root that lost an entry, shrinking the tree when the
// root became empty.
func (t *Tree) adjustRoot(root base.Node) error {
	if root.NumKeys() > 0 {
		return t.write(root)
	}

	switch r := root.(type) {
	case *base.LeafPage:
		if err := t.setRoot(0); err != nil {
			return err
		}
	case *base.InternalPage:
		child := r.Children[0]
		if err := t.setParent(child, 0); err != nil {
			return err
		}
		if err := t.setRoot(child); err != nil {
			return err
		}
	}
	return t.pager.FreePage(t.table, root.PageNo())
}

// merge folds right into left, frees right and removes the separator from
// the parent.
func (t *Tree) merge(parent *base.InternalPage, sep int, left, right base.Node) error {
	switch l := left.(type) {
	case *base.LeafPage:
		MergeLeaves(l, right.(*base.LeafPage))
		if err := t.write(l); err != nil {
			return err
		}
	case *base.InternalPage:
		moved := MergeInternal(l, right.(*base.InternalPage), parent.Keys[sep])
		if err := t.write(l); err != nil {
			return err
		}
		if err := t.setParents(moved, l.ID); err != nil {
			return err
		}
	}
	if err := t.pager.FreePage(t.table, right.PageNo()); err != nil {
		return err
	}

	parent.RemoveKeyAt(sep)
	return t.rebalance(parent)
}

// redistribute moves entries from the fuller sibling into the underfull one
// and updates the separator. underfullLeft tells which side lost the entry.
func (t *Tree) redistribute(parent *base.InternalPage, sep int, left, right base.Node, underfullLeft bool) error {
	switch l := left.(type) {
	case *base.LeafPage:
		r := right.(*base.LeafPage)
		if underfullLeft {
			parent.Keys[sep] = BorrowLeafFromRight(l, r)
		} else {
			parent.Keys[sep] = BorrowLeafFromLeft(l, r)
		}
	case *base.InternalPage:
		r := right.(*base.InternalPage)
		var (
			child base.PageNo
			to    base.PageNo
		)
		if underfullLeft {
			parent.Keys[sep], child = BorrowInternalFromRight(l, r, parent.Keys[sep])
			to = l.ID
		} else {
			parent.Keys[sep], child = BorrowInternalFromLeft(l, r, parent.Keys[sep])
			to = r.ID
		}
		if err := t.setParent(child, to); err != nil {
			return err
		}
	}

	if err := t.write(left); err != nil {
		return err
	}
	if err := t.write(right); err != nil {
		return err
	}
	return t.write(parent)
}
