package algo

import (
	"fmt"

	"slotdb/internal/base"
)

// maxDepth bounds descents so a cyclic child pointer surfaces as corruption.
const maxDepth = 64

// Pager is the page access the tree needs. Every Get must be matched by
// exactly one Put or Unpin.
type Pager interface {
	Get(tid base.TableID, pgno base.PageNo) (*base.Page, error)
	Put(tid base.TableID, pgno base.PageNo, p *base.Page)
	Unpin(tid base.TableID, pgno base.PageNo)
	AllocPage(tid base.TableID) (base.PageNo, error)
	FreePage(tid base.TableID, pgno base.PageNo) error
}

// Tree is the B+tree of one table. It holds no state of its own: the root
// lives in the header page and every page goes through the pager.
//
// Pages are decoded into typed values and released right away, so a Tree
// holds at most one pin at any moment. Callers serialize mutations of a table.
type Tree struct {
	pager Pager
	table base.TableID
}

// NewTree returns the tree stored in table.
func NewTree(pager Pager, table base.TableID) *Tree {
	return &Tree{pager: pager, table: table}
}

func (t *Tree) header() (base.HeaderPage, error) {
	p, err := t.pager.Get(t.table, 0)
	if err != nil {
		return base.HeaderPage{}, err
	}
	defer t.pager.Unpin(t.table, 0)

	h, err := base.DecodeHeader(p)
	if err != nil {
		return base.HeaderPage{}, fmt.Errorf("table %d header: %w", t.table, err)
	}
	return h, nil
}

func (t *Tree) root() (base.PageNo, error) {
	h, err := t.header()
	if err != nil {
		return 0, err
	}
	return h.Root, nil
}

func (t *Tree) setRoot(root base.PageNo) error {
	p, err := t.pager.Get(t.table, 0)
	if err != nil {
		return err
	}
	h, err := base.DecodeHeader(p)
	if err != nil {
		t.pager.Unpin(t.table, 0)
		return fmt.Errorf("table %d header: %w", t.table, err)
	}
	h.Root = root
	h.Encode(p)
	t.pager.Put(t.table, 0, p)
	return nil
}

// read decodes a tree page. A pointer into the header or the free list
// surfaces as ErrTreeCorrupted.
func (t *Tree) read(pgno base.PageNo) (base.Node, error) {
	p, err := t.pager.Get(t.table, pgno)
	if err != nil {
		return nil, err
	}
	defer t.pager.Unpin(t.table, pgno)

	n, err := base.DecodeNode(pgno, p)
	if err != nil {
		return nil, fmt.Errorf("table %d: %w: %w", t.table, ErrTreeCorrupted, err)
	}
	return n, nil
}

func (t *Tree) readLeaf(pgno base.PageNo) (*base.LeafPage, error) {
	n, err := t.read(pgno)
	if err != nil {
		return nil, err
	}
	l, ok := n.(*base.LeafPage)
	if !ok {
		return nil, fmt.Errorf("table %d: page %d is not a leaf: %w", t.table, pgno, ErrTreeCorrupted)
	}
	return l, nil
}

func (t *Tree) readInternal(pgno base.PageNo) (*base.InternalPage, error) {
	n, err := t.read(pgno)
	if err != nil {
		return nil, err
	}
	in, ok := n.(*base.InternalPage)
	if !ok {
		return nil, fmt.Errorf("table %d: page %d is not internal: %w", t.table, pgno, ErrTreeCorrupted)
	}
	return in, nil
}

func (t *Tree) write(n base.Node) error {
	p, err := t.pager.Get(t.table, n.PageNo())
	if err != nil {
		return err
	}
	n.Encode(p)
	t.pager.Put(t.table, n.PageNo(), p)
	return nil
}

func (t *Tree) setParent(child, parent base.PageNo) error {
	p, err := t.pager.Get(t.table, child)
	if err != nil {
		return err
	}
	base.SetParentNo(p, parent)
	t.pager.Put(t.table, child, p)
	return nil
}

func (t *Tree) setParents(children []base.PageNo, parent base.PageNo) error {
	for _, c := range children {
		if err := t.setParent(c, parent); err != nil {
			return err
		}
	}
	return nil
}

// findLeaf descends from root to the leaf that covers key.
func (t *Tree) findLeaf(root base.PageNo, key int64) (*base.LeafPage, error) {
	pgno := root
	for depth := 0; depth < maxDepth; depth++ {
		n, err := t.read(pgno)
		if err != nil {
			return nil, err
		}
		switch n := n.(type) {
		case *base.LeafPage:
			return n, nil
		case *base.InternalPage:
			pgno = n.Children[n.ChildIndex(key)]
		}
	}
	return nil, fmt.Errorf("table %d: descent deeper than %d levels: %w", t.table, maxDepth, ErrTreeCorrupted)
}

// Find returns a copy of the value stored under key.
func (t *Tree) Find(key int64) ([]byte, error) {
	root, err := t.root()
	if err != nil {
		return nil, err
	}
	if root == 0 {
		return nil, ErrKeyNotFound
	}
	leaf, err := t.findLeaf(root, key)
	if err != nil {
		return nil, err
	}
	i, ok := leaf.Search(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), leaf.Value(i)...), nil
}

// Empty reports whether the tree has no records.
func (t *Tree) Empty() (bool, error) {
	root, err := t.root()
	return root == 0, err
}
