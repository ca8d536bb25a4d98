package base

import (
	"github.com/cespare/xxhash/v2"
)

// MagicNumber identifies a slotdb table file ("slotdb" + format version 1).
const MagicNumber uint64 = 0x01_00_62_64_74_6f_6c_73

// HeaderPage is page 0 of every table file.
type HeaderPage struct {
	FreeHead PageNo // first page of the free list, 0 when exhausted
	NumPages uint64 // total pages in the file, header included
	Root     PageNo // root of the tree, 0 when empty
}

// Encode writes the header fields, magic number and checksum into p.
// Bytes past the checksum are left untouched.
func (h *HeaderPage) Encode(p *Page) {
	p.putU64(offHeaderFreeHead, uint64(h.FreeHead))
	p.putU64(offHeaderNumPages, h.NumPages)
	p.putU64(offHeaderRoot, uint64(h.Root))
	p.putU64(offHeaderMagic, MagicNumber)
	p.putU64(offHeaderChecksum, headerChecksum(p))
}

// DecodeHeader reads and validates a header page.
func DecodeHeader(p *Page) (HeaderPage, error) {
	if p.u64(offHeaderMagic) != MagicNumber {
		return HeaderPage{}, ErrInvalidMagicNumber
	}
	if p.u64(offHeaderChecksum) != headerChecksum(p) {
		return HeaderPage{}, ErrInvalidChecksum
	}
	return HeaderPage{
		FreeHead: PageNo(p.u64(offHeaderFreeHead)),
		NumPages: p.u64(offHeaderNumPages),
		Root:     PageNo(p.u64(offHeaderRoot)),
	}, nil
}

// headerChecksum hashes everything in front of the checksum field.
func headerChecksum(p *Page) uint64 {
	return xxhash.Sum64(p.Data[:offHeaderChecksum])
}

// FreePage is a page on the free list.
type FreePage struct {
	Next PageNo
}

// Encode writes the next pointer and the free tag; the rest of the payload
// is not cleared.
func (f *FreePage) Encode(p *Page) {
	p.putU64(offFreeNext, uint64(f.Next))
	p.putU32(offIsLeaf, flagFree)
}

// DecodeFree reads a free page.
func DecodeFree(p *Page) FreePage {
	return FreePage{Next: PageNo(p.u64(offFreeNext))}
}
