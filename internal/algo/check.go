package algo

import (
	"fmt"

	"slotdb/internal/base"
)

// Stats describes the shape of a tree.
type Stats struct {
	Height        int // levels, 0 for an empty tree
	LeafPages     int
	InternalPages int
	Records       int
	UsedBytes     int // slot and value bytes over all leaves
}

// Pages returns the number of tree pages.
func (s Stats) Pages() int {
	return s.LeafPages + s.InternalPages
}

type bound struct {
	key int64
	ok  bool
}

// checker walks the whole tree depth first, validating every page and
// collecting statistics.
type checker struct {
	t         *Tree
	stats     Stats
	leafDepth int
	leaves    []leafLink // in key order
}

type leafLink struct {
	id      base.PageNo
	sibling base.PageNo
}

// Check verifies the structural invariants of the tree: page encoding and
// leaf compaction, key order against the separators above, parent pointers,
// minimum occupancy below the root, uniform leaf depth and the leaf sibling
// chain.
func (t *Tree) Check() error {
	_, err := t.walk()
	return err
}

// Stats walks the tree and reports its shape.
func (t *Tree) Stats() (Stats, error) {
	return t.walk()
}

func (t *Tree) walk() (Stats, error) {
	root, err := t.root()
	if err != nil {
		return Stats{}, err
	}
	if root == 0 {
		return Stats{}, nil
	}

	c := &checker{t: t, leafDepth: -1}
	if err := c.visit(root, 0, bound{}, bound{}, 0); err != nil {
		return Stats{}, err
	}
	for i, l := range c.leaves {
		want := base.PageNo(0)
		if i+1 < len(c.leaves) {
			want = c.leaves[i+1].id
		}
		if l.sibling != want {
			return Stats{}, c.fail("leaf %d: sibling %d, want %d", l.id, l.sibling, want)
		}
	}
	c.stats.Height = c.leafDepth + 1
	return c.stats, nil
}

func (c *checker) fail(format string, args ...any) error {
	return fmt.Errorf("table %d: %s: %w", c.t.table, fmt.Sprintf(format, args...), ErrTreeCorrupted)
}

func (c *checker) visit(pgno, parent base.PageNo, lo, hi bound, depth int) error {
	if depth >= maxDepth {
		return c.fail("tree deeper than %d levels", maxDepth)
	}
	n, err := c.t.read(pgno)
	if err != nil {
		return err
	}
	if n.ParentNo() != parent {
		return c.fail("page %d: parent %d, want %d", pgno, n.ParentNo(), parent)
	}
	isRoot := parent == 0

	switch n := n.(type) {
	case *base.LeafPage:
		return c.visitLeaf(n, isRoot, lo, hi, depth)
	case *base.InternalPage:
		return c.visitInternal(n, isRoot, lo, hi, depth)
	}
	return nil
}

func (c *checker) visitLeaf(l *base.LeafPage, isRoot bool, lo, hi bound, depth int) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrTreeCorrupted, err)
	}
	if l.NumKeys() == 0 {
		return c.fail("leaf %d is empty", l.ID)
	}
	if !isRoot && LeafUnderfull(l) {
		return c.fail("leaf %d underfull: %d bytes free", l.ID, l.FreeSpace)
	}
	if err := c.inRange(l.ID, l.Key(0), l.Key(l.NumKeys()-1), lo, hi); err != nil {
		return err
	}

	if c.leafDepth < 0 {
		c.leafDepth = depth
	} else if c.leafDepth != depth {
		return c.fail("leaf %d at depth %d, other leaves at %d", l.ID, depth, c.leafDepth)
	}
	c.leaves = append(c.leaves, leafLink{id: l.ID, sibling: l.Sibling})
	c.stats.LeafPages++
	c.stats.Records += l.NumKeys()
	c.stats.UsedBytes += l.Used()
	return nil
}

func (c *checker) visitInternal(in *base.InternalPage, isRoot bool, lo, hi bound, depth int) error {
	if err := in.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrTreeCorrupted, err)
	}
	if len(in.Keys) == 0 {
		return c.fail("internal %d has no keys", in.ID)
	}
	if !isRoot && InternalUnderfull(in) {
		return c.fail("internal %d underfull: %d keys", in.ID, len(in.Keys))
	}
	if err := c.inRange(in.ID, in.Keys[0], in.Keys[len(in.Keys)-1], lo, hi); err != nil {
		return err
	}
	c.stats.InternalPages++

	for i, child := range in.Children {
		clo, chi := lo, hi
		if i > 0 {
			clo = bound{key: in.Keys[i-1], ok: true}
		}
		if i < len(in.Keys) {
			chi = bound{key: in.Keys[i], ok: true}
		}
		if err := c.visit(child, in.ID, clo, chi, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// inRange checks lo <= first and last < hi.
func (c *checker) inRange(pgno base.PageNo, first, last int64, lo, hi bound) error {
	if lo.ok && first < lo.key {
		return c.fail("page %d: key %d below separator %d", pgno, first, lo.key)
	}
	if hi.ok && last >= hi.key {
		return c.fail("page %d: key %d not below separator %d", pgno, last, hi.key)
	}
	return nil
}
