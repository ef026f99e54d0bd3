package hash

import (
	"encoding/binary"

	"github.com/pinlatch/storage/common"
)

// Header layout, little-endian, packed:
//
//	page_id(4) | lsn(4) | size(4) | num_block_ids(4) | block_ids[...]
const (
	headerOffPageID       = 0
	headerOffLSN          = 4
	headerOffSize         = 8
	headerOffNumBlockIDs  = 12
	headerBlockIDsBase    = 16
)

// headerCapacity is the number of child block page ids a single header page
// can list.
const headerCapacity = (common.PageSize - headerBlockIDsBase) / 4

// HeaderPage is C7's header page: the bucket count and the ordered list of
// block page ids backing the table.
type HeaderPage struct {
	data *[common.PageSize]byte
}

// NewHeaderPage wraps a buffer pool frame's bytes as a header page.
func NewHeaderPage(data *[common.PageSize]byte) *HeaderPage {
	return &HeaderPage{data: data}
}

// Init formats the page as empty, with bucket count size and no block pages
// listed yet.
func (h *HeaderPage) Init(pageID common.PageID, size int) {
	h.putUint32(headerOffPageID, uint32(int32(pageID)))
	h.SetLSN(common.InvalidLSN)
	h.SetSize(size)
	h.putUint32(headerOffNumBlockIDs, 0)
}

func (h *HeaderPage) PageID() common.PageID {
	return common.PageID(int32(h.getUint32(headerOffPageID)))
}

func (h *HeaderPage) GetLSN() common.LSN { return common.LSN(int32(h.getUint32(headerOffLSN))) }
func (h *HeaderPage) SetLSN(lsn common.LSN) { h.putUint32(headerOffLSN, uint32(int32(lsn))) }

// GetSize returns the logical bucket count (num_buckets).
func (h *HeaderPage) GetSize() int { return int(h.getUint32(headerOffSize)) }

// SetSize sets the logical bucket count.
func (h *HeaderPage) SetSize(size int) { h.putUint32(headerOffSize, uint32(size)) }

// NumBlockPages returns how many block page ids are currently listed.
func (h *HeaderPage) NumBlockPages() int { return int(h.getUint32(headerOffNumBlockIDs)) }

// GetBlockPageID returns the i-th child block page's id.
func (h *HeaderPage) GetBlockPageID(i int) common.PageID {
	return common.PageID(int32(h.getUint32(headerBlockIDsBase + i*4)))
}

// GetBlockArraySize returns how many of blockIndex's slots are logically
// part of the table: BlockArraySize for every block page but the last, and
// whatever remainder num_buckets leaves for the last one (num_buckets is not
// generally a multiple of BlockArraySize). Mirrors original_source's
// GetBlockArraySize, which StepForward and Resize both consult instead of
// assuming every block page is full-width.
func (h *HeaderPage) GetBlockArraySize(blockIndex int) int {
	return blockArraySizeFor(h.GetSize(), h.NumBlockPages(), blockIndex)
}

// blockArraySizeFor is the standalone form of GetBlockArraySize, usable once
// num_buckets/num_pages have already been read out of a header page that is
// no longer pinned (resizeLocked's reinsertion pass over the old layout).
func blockArraySizeFor(numBuckets, numPages, blockIndex int) int {
	if blockIndex < numPages-1 {
		return BlockArraySize
	}
	rem := numBuckets - (numPages-1)*BlockArraySize
	if rem <= 0 || rem > BlockArraySize {
		return BlockArraySize
	}
	return rem
}

// AddBlockPageID appends pageID to the block page list. Returns false if the
// header page is already at capacity.
func (h *HeaderPage) AddBlockPageID(pageID common.PageID) bool {
	n := h.NumBlockPages()
	if n >= headerCapacity {
		return false
	}
	h.putUint32(headerBlockIDsBase+n*4, uint32(int32(pageID)))
	h.putUint32(headerOffNumBlockIDs, uint32(n+1))
	return true
}

func (h *HeaderPage) getUint32(off int) uint32 {
	return binary.LittleEndian.Uint32(h.data[off : off+4])
}

func (h *HeaderPage) putUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(h.data[off:off+4], v)
}
