// Package buffer implements C2 (page frame + latch), C3 (clock replacer) and
// C4 (buffer pool manager).
package buffer

import (
	"encoding/binary"
	"sync"

	"github.com/pinlatch/storage/common"
)

// lsnOffset is the byte offset within every page's data reserved for its
// LSN, shared by table pages, hash block/header pages and the tmp-tuple
// page alike (each page type's header layout places its own lsn field at
// this offset). Keeping LSN inside the page bytes rather than as
// out-of-band frame metadata means it survives FetchPage's read from disk,
// which recovery depends on: after a crash nothing is resident in memory,
// so the only place the persisted LSN can come from is the page itself.
const lsnOffset = 4

// Page is one in-memory frame: a fixed-size byte buffer plus the metadata
// and reader/writer latch spec.md §3/§4.2 describe. Latches are re-acquired
// on every fetch and are independent of the pool-wide latch guarding the
// page table.
type Page struct {
	latch sync.RWMutex

	pageID   common.PageID
	data     [common.PageSize]byte
	pinCount int32
	isDirty  bool
}

// RLatch/RUnlatch admit multiple concurrent readers.
func (p *Page) RLatch()   { p.latch.RLock() }
func (p *Page) RUnlatch() { p.latch.RUnlock() }

// WLatch/WUnlatch are exclusive.
func (p *Page) WLatch()   { p.latch.Lock() }
func (p *Page) WUnlatch() { p.latch.Unlock() }

// PageID returns the page_id currently mapped to this frame.
func (p *Page) PageID() common.PageID { return p.pageID }

// Data returns the frame's raw byte buffer. Callers must hold at least an
// R-latch to read it or a W-latch to mutate it.
func (p *Page) Data() *[common.PageSize]byte { return &p.data }

// PinCount returns the frame's current pin count.
func (p *Page) PinCount() int32 { return p.pinCount }

// IsDirty reports whether the frame has been modified since it was read or
// last flushed.
func (p *Page) IsDirty() bool { return p.isDirty }

// LSN returns the LSN of the last WAL record that describes a change to this
// page, used by the buffer pool to enforce write-ahead logging on eviction.
func (p *Page) LSN() common.LSN {
	return common.LSN(int32(binary.LittleEndian.Uint32(p.data[lsnOffset : lsnOffset+4])))
}

// SetLSN records the LSN of the change currently applied to this page.
func (p *Page) SetLSN(lsn common.LSN) {
	binary.LittleEndian.PutUint32(p.data[lsnOffset:lsnOffset+4], uint32(int32(lsn)))
}

// resetTo re-labels the frame for page_id with a single pin and a zeroed
// buffer, used when the frame is installed for a brand new page. The zeroed
// buffer reads back as LSN 0 until the page-type's Init sets it to
// common.InvalidLSN explicitly.
func (p *Page) resetTo(pageID common.PageID) {
	p.pageID = pageID
	p.pinCount = 1
	p.isDirty = false
	p.data = [common.PageSize]byte{}
}

// installFetched re-labels the frame for page_id after its contents have
// been read from disk; its LSN comes along with the rest of the bytes.
func (p *Page) installFetched(pageID common.PageID) {
	p.pageID = pageID
	p.pinCount = 1
	p.isDirty = false
}
