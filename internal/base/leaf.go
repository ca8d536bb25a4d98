package base

import (
	"fmt"
	"sort"
)

// Slot is the fixed-size directory entry of a leaf record.
// Off is an absolute offset into the page.
type Slot struct {
	Key  int64
	Size uint16
	Off  uint16
}

// Record is a decoded leaf key-value pair.
type Record struct {
	Key   int64
	Value []byte
}

// LeafPage is a decoded slotted leaf. Values live in data at the offsets
// named by their slots, exactly where they sit in the encoded page.
type LeafPage struct {
	ID        PageNo
	Parent    PageNo
	FreeSpace uint64
	Sibling   PageNo
	Slots     []Slot

	data [PageSize]byte
}

// NewLeafPage returns an empty leaf.
func NewLeafPage(id PageNo) *LeafPage {
	return &LeafPage{
		ID:        id,
		FreeSpace: BodySize,
	}
}

// DecodeLeaf decodes a leaf page and checks its slot directory is in bounds.
func DecodeLeaf(id PageNo, p *Page) (*LeafPage, error) {
	if k := PageKind(id, p); k != KindLeaf {
		return nil, fmt.Errorf("page %d: %s page, not a leaf: %w", id, k, ErrCorruptPage)
	}
	n := int(p.u32(offNumKeys))
	if n*SlotSize > BodySize {
		return nil, fmt.Errorf("page %d: %d slots: %w", id, n, ErrCorruptPage)
	}

	l := &LeafPage{
		ID:        id,
		Parent:    PageNo(p.u64(offParent)),
		FreeSpace: p.u64(offFreeSpace),
		Sibling:   PageNo(p.u64(offSibling)),
		Slots:     make([]Slot, n),
	}
	valueStart := PageHeaderSize + n*SlotSize
	for i := range l.Slots {
		off := PageHeaderSize + i*SlotSize
		s := Slot{
			Key:  int64(p.u64(off)),
			Size: p.u16(off + 8),
			Off:  p.u16(off + 10),
		}
		if int(s.Off) < valueStart || int(s.Off)+int(s.Size) > PageSize {
			return nil, fmt.Errorf("page %d: slot %d value [%d,+%d): %w",
				id, i, s.Off, s.Size, ErrCorruptPage)
		}
		l.Slots[i] = s
	}
	copy(l.data[valueStart:], p.Data[valueStart:])
	return l, nil
}

// Encode writes the leaf into p, clearing the free region.
func (l *LeafPage) Encode(p *Page) {
	p.Reset()
	p.putU64(offParent, uint64(l.Parent))
	p.putU32(offIsLeaf, flagLeaf)
	p.putU32(offNumKeys, uint32(len(l.Slots)))
	p.putU64(offFreeSpace, l.FreeSpace)
	p.putU64(offSibling, uint64(l.Sibling))
	for i, s := range l.Slots {
		off := PageHeaderSize + i*SlotSize
		p.putU64(off, uint64(s.Key))
		p.putU16(off+8, s.Size)
		p.putU16(off+10, s.Off)
		copy(p.Data[s.Off:int(s.Off)+int(s.Size)], l.data[s.Off:])
	}
}

func (l *LeafPage) Kind() Kind { return KindLeaf }

func (l *LeafPage) PageNo() PageNo { return l.ID }

func (l *LeafPage) ParentNo() PageNo { return l.Parent }

func (l *LeafPage) SetParent(parent PageNo) { l.Parent = parent }

func (l *LeafPage) NumKeys() int { return len(l.Slots) }

// Used returns the body bytes taken by slots and values.
func (l *LeafPage) Used() int {
	return BodySize - int(l.FreeSpace)
}

// Key returns the key of slot i.
func (l *LeafPage) Key(i int) int64 {
	return l.Slots[i].Key
}

// Value returns the value of slot i. The slice aliases the page.
func (l *LeafPage) Value(i int) []byte {
	s := l.Slots[i]
	return l.data[s.Off : int(s.Off)+int(s.Size)]
}

// Search returns the index of key, or the index it would be inserted at.
func (l *LeafPage) Search(key int64) (int, bool) {
	i := sort.Search(len(l.Slots), func(i int) bool {
		return l.Slots[i].Key >= key
	})
	return i, i < len(l.Slots) && l.Slots[i].Key == key
}

// Fits reports whether a value of size bytes plus its slot fits.
func (l *LeafPage) Fits(size int) bool {
	return int(l.FreeSpace) >= SlotSize+size
}

// Insert adds a record in key order. The value is placed directly below the
// lowest value already in the page, so the value region stays contiguous.
// The caller checks Fits and that key is absent.
func (l *LeafPage) Insert(key int64, value []byte) {
	if !l.Fits(len(value)) {
		panic(fmt.Sprintf("leaf %d: insert of %d bytes with %d free", l.ID, len(value), l.FreeSpace))
	}
	pos, found := l.Search(key)
	if found {
		panic(fmt.Sprintf("leaf %d: duplicate key %d", l.ID, key))
	}

	top := PageHeaderSize + len(l.Slots)*SlotSize + int(l.FreeSpace)
	off := top - len(value)
	copy(l.data[off:], value)

	l.Slots = append(l.Slots, Slot{})
	copy(l.Slots[pos+1:], l.Slots[pos:])
	l.Slots[pos] = Slot{Key: key, Size: uint16(len(value)), Off: uint16(off)}
	l.FreeSpace -= uint64(SlotSize + len(value))
}

// RemoveAt drops slot i and compacts the value region.
func (l *LeafPage) RemoveAt(i int) {
	l.Slots = append(l.Slots[:i], l.Slots[i+1:]...)
	l.Compact()
}

// Records returns copies of all records in key order.
func (l *LeafPage) Records() []Record {
	recs := make([]Record, len(l.Slots))
	for i := range l.Slots {
		recs[i] = Record{
			Key:   l.Slots[i].Key,
			Value: append([]byte(nil), l.Value(i)...),
		}
	}
	return recs
}

// SetRecords replaces the page contents with recs, which must be sorted.
// Values are packed from the end of the page in slot order.
func (l *LeafPage) SetRecords(recs []Record) {
	l.Slots = l.Slots[:0]
	l.data = [PageSize]byte{}
	off := PageSize
	used := 0
	for _, r := range recs {
		off -= len(r.Value)
		copy(l.data[off:], r.Value)
		l.Slots = append(l.Slots, Slot{Key: r.Key, Size: uint16(len(r.Value)), Off: uint16(off)})
		used += SlotSize + len(r.Value)
	}
	if used > BodySize {
		panic(fmt.Sprintf("leaf %d: %d bytes of records exceed the body", l.ID, used))
	}
	l.FreeSpace = uint64(BodySize - used)
}

// Compact repacks the values against the end of the page in slot order so
// neither region has holes, and recomputes the free space counter.
func (l *LeafPage) Compact() {
	l.SetRecords(l.Records())
}

// Validate checks the space accounting and packing of the leaf.
func (l *LeafPage) Validate() error {
	sum := 0
	for i, s := range l.Slots {
		if i > 0 && l.Slots[i-1].Key >= s.Key {
			return fmt.Errorf("leaf %d: keys out of order at slot %d: %w", l.ID, i, ErrCorruptPage)
		}
		sum += int(s.Size)
	}
	if len(l.Slots)*SlotSize+int(l.FreeSpace)+sum != BodySize {
		return fmt.Errorf("leaf %d: %d slots + %d free + %d values != %d: %w",
			l.ID, len(l.Slots), l.FreeSpace, sum, BodySize, ErrCorruptPage)
	}

	// Values must tile [PageSize-sum, PageSize) exactly.
	order := make([]Slot, len(l.Slots))
	copy(order, l.Slots)
	sort.Slice(order, func(i, j int) bool { return order[i].Off > order[j].Off })
	end := PageSize
	for _, s := range order {
		if int(s.Off)+int(s.Size) != end {
			return fmt.Errorf("leaf %d: gap or overlap below offset %d: %w", l.ID, end, ErrCorruptPage)
		}
		end = int(s.Off)
	}
	if end < PageHeaderSize+len(l.Slots)*SlotSize {
		return fmt.Errorf("leaf %d: values overlap the slot directory: %w", l.ID, ErrCorruptPage)
	}
	return nil
}

// ValidValueSize reports whether a value length is storable in a leaf.
func ValidValueSize(n int) bool {
	return n >= MinValueSize && n <= MaxValueSize
}
