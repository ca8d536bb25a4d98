package base

import (
	"fmt"
	"sort"
)

// InternalPage is a decoded internal node: len(Children) == len(Keys)+1.
// Children[i] holds keys k with Keys[i-1] <= k < Keys[i].
type InternalPage struct {
	ID       PageNo
	Parent   PageNo
	Keys     []int64
	Children []PageNo
}

// NewInternalPage returns an internal page with a single leftmost child.
func NewInternalPage(id PageNo, leftmost PageNo) *InternalPage {
	return &InternalPage{
		ID:       id,
		Keys:     make([]int64, 0, MaxInternalKeys),
		Children: append(make([]PageNo, 0, InternalOrder), leftmost),
	}
}

// DecodeInternal decodes an internal page.
func DecodeInternal(id PageNo, p *Page) (*InternalPage, error) {
	if k := PageKind(id, p); k != KindInternal {
		return nil, fmt.Errorf("page %d: %s page, not internal: %w", id, k, ErrCorruptPage)
	}
	n := int(p.u32(offNumKeys))
	if n > MaxInternalKeys {
		return nil, fmt.Errorf("page %d: %d keys: %w", id, n, ErrCorruptPage)
	}

	in := &InternalPage{
		ID:       id,
		Parent:   PageNo(p.u64(offParent)),
		Keys:     make([]int64, n, MaxInternalKeys),
		Children: make([]PageNo, n+1, InternalOrder),
	}
	in.Children[0] = PageNo(p.u64(InternalRecordsOffset + 8))
	for i := 0; i < n; i++ {
		off := InternalRecordsOffset + (i+1)*InternalRecordSize
		in.Keys[i] = int64(p.u64(off))
		in.Children[i+1] = PageNo(p.u64(off + 8))
	}
	return in, nil
}

// Encode writes the internal page into p, clearing unused records.
func (in *InternalPage) Encode(p *Page) {
	p.Reset()
	p.putU64(offParent, uint64(in.Parent))
	p.putU32(offIsLeaf, flagInternal)
	p.putU32(offNumKeys, uint32(len(in.Keys)))
	p.putU64(InternalRecordsOffset+8, uint64(in.Children[0]))
	for i, k := range in.Keys {
		off := InternalRecordsOffset + (i+1)*InternalRecordSize
		p.putU64(off, uint64(k))
		p.putU64(off+8, uint64(in.Children[i+1]))
	}
}

func (in *InternalPage) Kind() Kind { return KindInternal }

func (in *InternalPage) PageNo() PageNo { return in.ID }

func (in *InternalPage) ParentNo() PageNo { return in.Parent }

func (in *InternalPage) SetParent(parent PageNo) { in.Parent = parent }

func (in *InternalPage) NumKeys() int { return len(in.Keys) }

// Full reports whether another key would overflow the page.
func (in *InternalPage) Full() bool {
	return len(in.Keys) >= MaxInternalKeys
}

// ChildIndex returns the index of the child to descend into for key:
// the first i with key < Keys[i], else the last child.
func (in *InternalPage) ChildIndex(key int64) int {
	return sort.Search(len(in.Keys), func(i int) bool {
		return key < in.Keys[i]
	})
}

// IndexOf returns the position of child, or -1.
func (in *InternalPage) IndexOf(child PageNo) int {
	for i, c := range in.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// InsertAfter inserts key and its right child directly after Children[i].
func (in *InternalPage) InsertAfter(i int, key int64, right PageNo) {
	in.Keys = append(in.Keys, 0)
	copy(in.Keys[i+1:], in.Keys[i:])
	in.Keys[i] = key

	in.Children = append(in.Children, 0)
	copy(in.Children[i+2:], in.Children[i+1:])
	in.Children[i+1] = right
}

// RemoveKeyAt removes Keys[i] and the child to its right.
func (in *InternalPage) RemoveKeyAt(i int) {
	in.Keys = append(in.Keys[:i], in.Keys[i+1:]...)
	in.Children = append(in.Children[:i+1], in.Children[i+2:]...)
}

// Validate checks key ordering and the child count.
func (in *InternalPage) Validate() error {
	if len(in.Children) != len(in.Keys)+1 {
		return fmt.Errorf("internal %d: %d keys with %d children: %w",
			in.ID, len(in.Keys), len(in.Children), ErrCorruptPage)
	}
	if len(in.Keys) > MaxInternalKeys {
		return fmt.Errorf("internal %d: %d keys: %w", in.ID, len(in.Keys), ErrCorruptPage)
	}
	for i := 1; i < len(in.Keys); i++ {
		if in.Keys[i-1] >= in.Keys[i] {
			return fmt.Errorf("internal %d: keys out of order at %d: %w", in.ID, i, ErrCorruptPage)
		}
	}
	for i, c := range in.Children {
		if c == 0 {
			return fmt.Errorf("internal %d: child %d is page 0: %w", in.ID, i, ErrCorruptPage)
		}
	}
	return nil
}
