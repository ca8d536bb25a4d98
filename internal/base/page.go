package base

import (
	"encoding/binary"
	"fmt"
)

const (
	PageSize = 4096

	// PageHeaderSize is the common header (16 bytes) plus the reserved region
	// (96 bytes) plus the 16 bytes a leaf spends on free space and sibling.
	// Leaf slots start here.
	PageHeaderSize   = 128
	CommonHeaderSize = 16
	BodySize         = PageSize - PageHeaderSize // 3968

	// InternalRecordsOffset is where internal records start. The key field of
	// record 0 overlaps the bytes a leaf uses for free space and is unused, so
	// the leftmost child sits at 120 and key 0 at 128.
	InternalRecordsOffset = CommonHeaderSize + 96

	SlotSize           = 12 // Key(8) + Size(2) + Off(2)
	InternalRecordSize = 16 // Key(8) + Child(8)

	// InternalOrder is the number of (key, child) records an internal page holds.
	// Record 0 only carries the leftmost child, so an internal page has at most
	// InternalOrder-1 keys.
	InternalOrder   = 249
	MaxInternalKeys = InternalOrder - 1
	MinInternalKeys = (InternalOrder+1)/2 - 1

	MinValueSize = 50
	MaxValueSize = 112

	// LeafSplitThreshold is the number of used body bytes a split leaf keeps on
	// its left half.
	LeafSplitThreshold = BodySize / 2
	// LeafMergeThreshold is the free space at which a non-root leaf is
	// considered underfull.
	LeafMergeThreshold = 2500

	// DefaultInitialPages is the page count of a freshly created table file.
	DefaultInitialPages = 2560
)

// Byte offsets inside a page.
const (
	offParent    = 0
	offIsLeaf    = 8
	offNumKeys   = 12
	offFreeSpace = 112
	offSibling   = 120

	offHeaderFreeHead = 0
	offHeaderNumPages = 8
	offHeaderRoot     = 16
	offHeaderMagic    = 24
	offHeaderChecksum = 32

	offFreeNext = 0
)

// Values of the is-leaf word. Free pages carry their own tag there so a
// stale pointer into the free list does not decode as an internal page.
const (
	flagInternal = 0
	flagLeaf     = 1
	flagFree     = 2
)

// PageNo is the number of a page inside a table file. Page 0 is always the
// header page, so 0 doubles as the "no page" value in pointers.
type PageNo uint64

// TableID identifies an open table file.
type TableID int64

// Page is a raw disk page (4096 bytes).
//
// Every page of a table shares this byte layout; which interpretation applies
// is known from its number (page 0 is the header) or from the is-leaf word,
// which free pages set to a tag of their own:
//
// HEADER PAGE (page 0):
// ┌─────────────────────────────────────────────────────────────────────┐
// │ FreeHead(8) | NumPages(8) | Root(8) | Magic(8) | Checksum(8) | ...  │
// └─────────────────────────────────────────────────────────────────────┘
//
// FREE PAGE:
// ┌─────────────────────────────────────────────────────────────────────┐
// │ Next(8) | Tag=2(4) | ...                                            │
// └─────────────────────────────────────────────────────────────────────┘
//
// LEAF PAGE (slotted):
// ┌─────────────────────────────────────────────────────────────────────┐
// │ Parent(8) | IsLeaf=1(4) | NumKeys(4) | Reserved(96)                 │
// │ FreeSpace(8) | Sibling(8)                                           │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Slot[0] | Slot[1] | ... | Slot[N-1] →     Key(8) | Size(2) | Off(2) │
// ├─────────────────────────────────────────────────────────────────────┤
// │ free space                                                          │
// ├─────────────────────────────────────────────────────────────────────┤
// │                                  ← ... | Value[1] | Value[0]        │
// └─────────────────────────────────────────────────────────────────────┘
//
// INTERNAL PAGE:
// ┌─────────────────────────────────────────────────────────────────────┐
// │ Parent(8) | IsLeaf=0(4) | NumKeys(4) | Reserved(96)                 │
// ├─────────────────────────────────────────────────────────────────────┤
// │ Record[0] = (unused, Child[0])             at 112                   │
// │ Record[i+1] = (Key[i], Child[i+1])         up to InternalOrder      │
// └─────────────────────────────────────────────────────────────────────┘
type Page struct {
	Data [PageSize]byte
}

// Kind tags the logical interpretation of a page.
type Kind uint8

const (
	KindHeader Kind = iota + 1
	KindFree
	KindLeaf
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindFree:
		return "free"
	case KindLeaf:
		return "leaf"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// PageKind reports what page pgno holds. Page 0 is always the header; any
// other page is told apart by its is-leaf word.
func PageKind(pgno PageNo, p *Page) Kind {
	if pgno == 0 {
		return KindHeader
	}
	switch p.u32(offIsLeaf) {
	case flagInternal:
		return KindInternal
	case flagLeaf:
		return KindLeaf
	case flagFree:
		return KindFree
	}
	return 0
}

// Reset zeroes the page.
func (p *Page) Reset() {
	p.Data = [PageSize]byte{}
}

func (p *Page) u64(off int) uint64 {
	return binary.LittleEndian.Uint64(p.Data[off:])
}

func (p *Page) putU64(off int, v uint64) {
	binary.LittleEndian.PutUint64(p.Data[off:], v)
}

func (p *Page) u32(off int) uint32 {
	return binary.LittleEndian.Uint32(p.Data[off:])
}

func (p *Page) putU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(p.Data[off:], v)
}

func (p *Page) u16(off int) uint16 {
	return binary.LittleEndian.Uint16(p.Data[off:])
}

func (p *Page) putU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(p.Data[off:], v)
}

// Node is a decoded tree page, either *LeafPage or *InternalPage.
type Node interface {
	Kind() Kind
	PageNo() PageNo
	ParentNo() PageNo
	SetParent(parent PageNo)
	NumKeys() int
	Encode(p *Page)
}

// DecodeNode decodes a tree page. Header and free pages are rejected.
func DecodeNode(id PageNo, p *Page) (Node, error) {
	switch k := PageKind(id, p); k {
	case KindLeaf:
		l, err := DecodeLeaf(id, p)
		if err != nil {
			return nil, err
		}
		return l, nil
	case KindInternal:
		n, err := DecodeInternal(id, p)
		if err != nil {
			return nil, err
		}
		return n, nil
	default:
		return nil, fmt.Errorf("page %d: %s page where a tree page belongs: %w", id, k, ErrCorruptPage)
	}
}

// SetParentNo rewrites the parent pointer of a tree page without decoding it.
func SetParentNo(p *Page, parent PageNo) {
	p.putU64(offParent, uint64(parent))
}

// ParentNo reads the parent pointer of a tree page without decoding it.
func ParentNo(p *Page) PageNo {
	return PageNo(p.u64(offParent))
}
