// Package table implements C6.5, the slotted page log recovery replays
// INSERT/UPDATE/MARKDELETE/APPLYDELETE/ROLLBACKDELETE against. It is the
// concrete collaborator spec.md's C6 describes but leaves external; the
// layout and slot-growth discipline mirror the hash block page and the
// tmp-tuple page for consistency across the module.
package table

import (
	"encoding/binary"

	"github.com/pinlatch/storage/common"
)

// Header layout, little-endian, packed at the front of every page:
//
//	page_id(4) | lsn(4) | prev_page_id(4) | next_page_id(4) | tuple_count(4) | free_space_offset(4)
const (
	offPageID         = 0
	offLSN            = 4
	offPrevPageID     = 8
	offNextPageID     = 12
	offTupleCount     = 16
	offFreeSpace      = 20
	headerSize        = 24
	slotSize          = 8 // offset(4) + size(4); size<0 means tombstoned
	slotDirectoryBase = headerSize
)

// Page is a slotted table page: a forward-growing slot directory and
// tuple bytes packed backward from the end of the page, the same
// "slots grow down, data grows up" discipline the hash block page and the
// tmp-tuple page use.
type Page struct {
	data *[common.PageSize]byte
}

// New wraps a buffer pool frame's raw bytes as a table page. Callers must
// already hold the frame's latch appropriately for the operation performed.
func New(data *[common.PageSize]byte) *Page {
	return &Page{data: data}
}

// Init formats the page as empty, with free_space_offset at the end of the
// page and zero tuples. LSN is reset to common.InvalidLSN, matching a page
// that has not yet been touched by any logged operation.
func (p *Page) Init(pageID common.PageID, prevPageID common.PageID) {
	p.putInt32(offPageID, int32(pageID))
	p.SetLSN(common.InvalidLSN)
	p.putInt32(offPrevPageID, int32(prevPageID))
	p.putInt32(offNextPageID, int32(common.InvalidPageID))
	p.putUint32(offTupleCount, 0)
	p.putUint32(offFreeSpace, uint32(common.PageSize))
}

func (p *Page) PageID() common.PageID { return common.PageID(p.getInt32(offPageID)) }

func (p *Page) GetLSN() common.LSN { return common.LSN(p.getInt32(offLSN)) }
func (p *Page) SetLSN(lsn common.LSN) { p.putInt32(offLSN, int32(lsn)) }

func (p *Page) GetPrevPageID() common.PageID { return common.PageID(p.getInt32(offPrevPageID)) }
func (p *Page) SetPrevPageID(id common.PageID) { p.putInt32(offPrevPageID, int32(id)) }

func (p *Page) GetNextPageID() common.PageID { return common.PageID(p.getInt32(offNextPageID)) }
func (p *Page) SetNextPageID(id common.PageID) { p.putInt32(offNextPageID, int32(id)) }

func (p *Page) tupleCount() int { return int(p.getUint32(offTupleCount)) }
func (p *Page) setTupleCount(n int) { p.putUint32(offTupleCount, uint32(n)) }

func (p *Page) freeSpaceOffset() int { return int(p.getUint32(offFreeSpace)) }
func (p *Page) setFreeSpaceOffset(off int) { p.putUint32(offFreeSpace, uint32(off)) }

func (p *Page) slotOffset(i int) int { return slotDirectoryBase + i*slotSize }

func (p *Page) slotAt(i int) (offset int, size int32) {
	base := p.slotOffset(i)
	return int(p.getUint32(base)), int32(p.getInt32(base + 4))
}

func (p *Page) setSlot(i int, offset int, size int32) {
	base := p.slotOffset(i)
	p.putUint32(base, uint32(offset))
	p.putInt32(base+4, size)
}

// freeSpaceRemaining is the gap between the slot directory's end (after one
// more slot) and the start of the tuple region.
func (p *Page) freeSpaceRemaining() int {
	return p.freeSpaceOffset() - (p.slotOffset(p.tupleCount()) + slotSize)
}

// InsertTuple appends data as a new tuple, returning its RID. Fails if the
// page has insufficient free space for the tuple plus a new slot entry.
func (p *Page) InsertTuple(data []byte) (common.RID, bool) {
	if p.freeSpaceRemaining() < len(data) {
		return common.InvalidRID, false
	}
	newOffset := p.freeSpaceOffset() - len(data)
	copy(p.data[newOffset:newOffset+len(data)], data)
	p.setFreeSpaceOffset(newOffset)

	slot := p.tupleCount()
	p.setSlot(slot, newOffset, int32(len(data)))
	p.setTupleCount(slot + 1)

	return common.RID{PageID: p.PageID(), Slot: uint32(slot)}, true
}

// GetTuple returns the tuple at rid. Returns false for an out-of-range slot
// or one that has been tombstoned by MarkDelete/ApplyDelete.
func (p *Page) GetTuple(rid common.RID) ([]byte, bool) {
	slot := int(rid.Slot)
	if slot < 0 || slot >= p.tupleCount() {
		return nil, false
	}
	offset, size := p.slotAt(slot)
	if size < 0 {
		return nil, false
	}
	out := make([]byte, size)
	copy(out, p.data[offset:offset+int(size)])
	return out, true
}

// UpdateTuple replaces the tuple at rid with newData in place if it fits in
// the old slot's size; otherwise the update fails (no relocation chains —
// non-goal: online reorganization). Returns the previous tuple bytes.
func (p *Page) UpdateTuple(rid common.RID, newData []byte) ([]byte, bool) {
	slot := int(rid.Slot)
	if slot < 0 || slot >= p.tupleCount() {
		return nil, false
	}
	offset, size := p.slotAt(slot)
	if size < 0 || int(size) < len(newData) {
		return nil, false
	}
	old := make([]byte, size)
	copy(old, p.data[offset:offset+int(size)])

	copy(p.data[offset:offset+len(newData)], newData)
	p.setSlot(slot, offset, int32(len(newData)))
	return old, true
}

// MarkDelete tombstones rid's slot without discarding its bytes, so
// RollbackDelete can restore it.
func (p *Page) MarkDelete(rid common.RID) bool {
	slot := int(rid.Slot)
	if slot < 0 || slot >= p.tupleCount() {
		return false
	}
	offset, size := p.slotAt(slot)
	if size < 0 {
		return false
	}
	p.setSlot(slot, offset, -size)
	return true
}

// ApplyDelete finalizes a MarkDelete, discarding the tuple for good. The
// slot's directory entry stays (so later slot indices remain valid) but its
// size is recorded as -1 so GetTuple/UpdateTuple reject it.
func (p *Page) ApplyDelete(rid common.RID) bool {
	slot := int(rid.Slot)
	if slot < 0 || slot >= p.tupleCount() {
		return false
	}
	offset, _ := p.slotAt(slot)
	p.setSlot(slot, offset, -1)
	return true
}

// RollbackDelete undoes a MarkDelete that was never applied, restoring the
// slot's positive size.
func (p *Page) RollbackDelete(rid common.RID) bool {
	slot := int(rid.Slot)
	if slot < 0 || slot >= p.tupleCount() {
		return false
	}
	offset, size := p.slotAt(slot)
	if size >= 0 {
		return false
	}
	p.putUint32(p.slotOffset(slot), uint32(offset))
	p.putInt32(p.slotOffset(slot)+4, -size)
	return true
}

func (p *Page) getInt32(off int) int32 { return int32(p.getUint32(off)) }
func (p *Page) putInt32(off int, v int32) { p.putUint32(off, uint32(v)) }

func (p *Page) getUint32(off int) uint32 {
	return binary.LittleEndian.Uint32(p.data[off : off+4])
}

func (p *Page) putUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(p.data[off:off+4], v)
}
