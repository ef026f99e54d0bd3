// Package join implements C9 (the temp-tuple page) and a storage-level
// build/probe side for hash-join, grounded in original_source's
// tmp_tuple_page.h and hash_join_executor.cpp — the executor layer itself
// (SQL types, predicates, schemas) stays out of scope; only the
// storage-facing shape (stage tuples, index by join hash, probe back out)
// is reproduced.
package join

import (
	"encoding/binary"

	"github.com/pinlatch/storage/common"
)

// Header layout: page_id(4) | lsn(4) | free_space_pointer(4).
const (
	ttpOffPageID     = 0
	ttpOffLSN        = 4
	ttpOffFreeSpace  = 8
	ttpHeaderSize    = 12
	ttpSizePrefix    = 4
)

// TmpTuple locates a staged tuple: the page it lives on and the offset of
// its 4-byte size prefix.
type TmpTuple struct {
	PageID common.PageID
	Offset int32
}

// Encode packs a TmpTuple into a uint64, so it can be stored as a
// LinearProbeHashTable value.
func (t TmpTuple) Encode() uint64 {
	return uint64(uint32(t.PageID))<<32 | uint64(uint32(t.Offset))
}

// DecodeTmpTuple reverses Encode.
func DecodeTmpTuple(v uint64) TmpTuple {
	return TmpTuple{
		PageID: common.PageID(int32(uint32(v >> 32))),
		Offset: int32(uint32(v)),
	}
}

// TmpTuplePage is C9: an append-only page staging build-side tuples for
// hash-join, growing from the end of the page backward. Layout per tuple,
// address-increasing: size(4), data(size) — chosen so the deserializer's
// read order (size then data) matches memory order, per original_source's
// own rationale comment.
type TmpTuplePage struct {
	data *[common.PageSize]byte
}

// New wraps a buffer pool frame's bytes as a tmp-tuple page.
func New(data *[common.PageSize]byte) *TmpTuplePage {
	return &TmpTuplePage{data: data}
}

// Init formats the page as empty, with the free-space pointer at the end of
// the page.
func (p *TmpTuplePage) Init(pageID common.PageID) {
	p.putUint32(ttpOffPageID, uint32(int32(pageID)))
	p.SetLSN(common.InvalidLSN)
	p.putUint32(ttpOffFreeSpace, uint32(common.PageSize))
}

func (p *TmpTuplePage) PageID() common.PageID {
	return common.PageID(int32(p.getUint32(ttpOffPageID)))
}

func (p *TmpTuplePage) GetLSN() common.LSN { return common.LSN(int32(p.getUint32(ttpOffLSN))) }
func (p *TmpTuplePage) SetLSN(lsn common.LSN) { p.putUint32(ttpOffLSN, uint32(int32(lsn))) }

func (p *TmpTuplePage) freeSpacePointer() int { return int(p.getUint32(ttpOffFreeSpace)) }
func (p *TmpTuplePage) setFreeSpacePointer(v int) { p.putUint32(ttpOffFreeSpace, uint32(v)) }

func (p *TmpTuplePage) freeSpaceRemaining() int {
	return p.freeSpacePointer() - ttpHeaderSize
}

// Insert stages tuple data, returning a TmpTuple pointing at its size
// prefix. Fails if fewer than len(data)+4 bytes of free space remain.
func (p *TmpTuplePage) Insert(data []byte) (TmpTuple, bool) {
	if p.freeSpaceRemaining() < len(data)+ttpSizePrefix {
		return TmpTuple{}, false
	}

	ptr := p.freeSpacePointer() - len(data)
	copy(p.data[ptr:ptr+len(data)], data)
	ptr -= ttpSizePrefix
	binary.LittleEndian.PutUint32(p.data[ptr:ptr+4], uint32(len(data)))
	p.setFreeSpacePointer(ptr)

	return TmpTuple{PageID: p.PageID(), Offset: int32(ptr)}, true
}

// Get reads back the tuple at tmp's offset.
func (p *TmpTuplePage) Get(tmp TmpTuple) []byte {
	off := int(tmp.Offset)
	size := binary.LittleEndian.Uint32(p.data[off : off+4])
	out := make([]byte, size)
	copy(out, p.data[off+4:off+4+int(size)])
	return out
}

func (p *TmpTuplePage) getUint32(off int) uint32 {
	return binary.LittleEndian.Uint32(p.data[off : off+4])
}

func (p *TmpTuplePage) putUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(p.data[off:off+4], v)
}
