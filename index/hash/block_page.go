package hash

import (
	"encoding/binary"

	"github.com/pinlatch/storage/common"
)

// BlockArraySize is the number of (key, value) slots a single block page
// holds. Chosen so the page's header, two occupied/readable bitmaps and the
// slot array all fit within common.PageSize: 8 (header) + 2*31 (bitmaps,
// ceil(248/8)=31 bytes each) + 248*16 (slots) = 4038 bytes.
const BlockArraySize = 248

const (
	blockOffPageID    = 0
	blockOffLSN       = 4
	bitmapBytes       = (BlockArraySize + 7) / 8
	blockOffOccupied  = 8
	blockOffReadable  = blockOffOccupied + bitmapBytes
	blockSlotsBase    = blockOffReadable + bitmapBytes
	slotWidth         = 16 // 8-byte key + 8-byte value
)

// BlockPage is C7's block page: two occupancy bitmaps and BlockArraySize
// (key, value) slots. readable[i] implies occupied[i]; occupied-but-not-
// readable is a tombstone that must not terminate linear-probe scans.
type BlockPage[K FixedWord, V FixedWord] struct {
	data *[common.PageSize]byte
}

// NewBlockPage wraps a buffer pool frame's bytes as a block page.
func NewBlockPage[K FixedWord, V FixedWord](data *[common.PageSize]byte) *BlockPage[K, V] {
	return &BlockPage[K, V]{data: data}
}

// Init formats the page as empty (both bitmaps cleared) and records its
// page_id; callers typically also set LSN via SetLSN once logged.
func (b *BlockPage[K, V]) Init(pageID common.PageID) {
	binary.LittleEndian.PutUint32(b.data[blockOffPageID:blockOffPageID+4], uint32(int32(pageID)))
	b.SetLSN(common.InvalidLSN)
	for i := 0; i < bitmapBytes; i++ {
		b.data[blockOffOccupied+i] = 0
		b.data[blockOffReadable+i] = 0
	}
}

func (b *BlockPage[K, V]) PageID() common.PageID {
	return common.PageID(int32(binary.LittleEndian.Uint32(b.data[blockOffPageID : blockOffPageID+4])))
}

func (b *BlockPage[K, V]) GetLSN() common.LSN {
	return common.LSN(int32(binary.LittleEndian.Uint32(b.data[blockOffLSN : blockOffLSN+4])))
}

func (b *BlockPage[K, V]) SetLSN(lsn common.LSN) {
	binary.LittleEndian.PutUint32(b.data[blockOffLSN:blockOffLSN+4], uint32(int32(lsn)))
}

// KeyAt returns the key stored at slot i, valid regardless of readable/
// occupied state (callers check those separately).
func (b *BlockPage[K, V]) KeyAt(i int) K {
	off := blockSlotsBase + i*slotWidth
	return fromWord[K](binary.LittleEndian.Uint64(b.data[off : off+8]))
}

// ValueAt returns the value stored at slot i.
func (b *BlockPage[K, V]) ValueAt(i int) V {
	off := blockSlotsBase + i*slotWidth + 8
	return fromWord[V](binary.LittleEndian.Uint64(b.data[off : off+8]))
}

// Insert stores (k, v) at slot i if the slot is not currently readable,
// reclaiming a tombstoned (occupied but not readable) slot just as a never-
// used one. Returns false only if readable[i] is already set.
func (b *BlockPage[K, V]) Insert(i int, k K, v V) bool {
	if b.IsReadable(i) {
		return false
	}
	off := blockSlotsBase + i*slotWidth
	binary.LittleEndian.PutUint64(b.data[off:off+8], toWord(k))
	binary.LittleEndian.PutUint64(b.data[off+8:off+16], toWord(v))
	b.setBit(blockOffOccupied, i, true)
	b.setBit(blockOffReadable, i, true)
	return true
}

// Remove clears readable[i], leaving occupied[i] set as a tombstone so
// linear probing does not stop early on this slot.
func (b *BlockPage[K, V]) Remove(i int) {
	b.setBit(blockOffReadable, i, false)
}

// IsOccupied reports whether slot i has ever held an entry (readable or
// tombstoned).
func (b *BlockPage[K, V]) IsOccupied(i int) bool { return b.getBit(blockOffOccupied, i) }

// IsReadable reports whether slot i currently holds a live entry.
func (b *BlockPage[K, V]) IsReadable(i int) bool { return b.getBit(blockOffReadable, i) }

func (b *BlockPage[K, V]) getBit(base int, i int) bool {
	return b.data[base+i/8]&(1<<uint(i%8)) != 0
}

func (b *BlockPage[K, V]) setBit(base int, i int, v bool) {
	mask := byte(1 << uint(i%8))
	if v {
		b.data[base+i/8] |= mask
	} else {
		b.data[base+i/8] &^= mask
	}
}
