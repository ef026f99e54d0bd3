package hash

import (
	"sync"

	"github.com/pinlatch/storage/buffer"
	"github.com/pinlatch/storage/common"
	"github.com/pinlatch/storage/config"
)

// LinearProbeHashTable is C8: a disk-backed linear-probing hash index over
// HeaderPage + BlockPage (C7). Concurrency follows spec.md §4.7/§5's
// two-level scheme: a table-wide reader/writer latch serializes structural
// changes (Resize) against everything else, and each block page's own
// buffer-pool frame latch serializes concurrent probes.
type LinearProbeHashTable[K FixedWord, V FixedWord] struct {
	mu sync.RWMutex

	bpm          *buffer.BufferPoolManager
	headerPageID common.PageID
	hashFn       HashFunc[K]
	cmp          Comparator[K]
}

// New creates a hash table with exactly numBuckets buckets, persisted via
// bpm; block pages are allocated for whole multiples of BlockArraySize, and
// the last page's slots past numBuckets go unused. cfg's BlockArraySize
// must agree with the compile-time block page layout (see
// index/hash.BlockArraySize): the page layout is fixed at build time, so cfg
// is consulted here as a consistency check rather than a tunable.
func New[K FixedWord, V FixedWord](bpm *buffer.BufferPoolManager, cfg config.Config, numBuckets int, hashFn HashFunc[K], cmp Comparator[K]) *LinearProbeHashTable[K, V] {
	if cfg.BlockArraySize != BlockArraySize {
		panic("hash: config.BlockArraySize does not match the compiled block page layout")
	}
	t := &LinearProbeHashTable[K, V]{bpm: bpm, hashFn: hashFn, cmp: cmp}

	headerFrame := bpm.NewPage()
	header := NewHeaderPage(headerFrame.Data())
	header.Init(headerFrame.PageID(), numBuckets)
	t.headerPageID = headerFrame.PageID()

	for i := 0; i < numPagesFor(numBuckets); i++ {
		bf := bpm.NewPage()
		NewBlockPage[K, V](bf.Data()).Init(bf.PageID())
		header.AddBlockPageID(bf.PageID())
		bpm.UnpinPage(bf.PageID(), true)
	}
	bpm.UnpinPage(t.headerPageID, true)

	return t
}

func numPagesFor(numBuckets int) int {
	return (numBuckets + BlockArraySize - 1) / BlockArraySize
}

func blockBucket(slotIndex int) (blockIndex, bucketIndex int) {
	return slotIndex / BlockArraySize, slotIndex % BlockArraySize
}

func (t *LinearProbeHashTable[K, V]) slotFor(k K, numBuckets int) int {
	return int(t.hashFn(k) % uint64(numBuckets))
}

// GetSize returns the current logical bucket count.
func (t *LinearProbeHashTable[K, V]) GetSize() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	headerFrame := t.bpm.FetchPage(t.headerPageID)
	size := NewHeaderPage(headerFrame.Data()).GetSize()
	t.bpm.UnpinPage(t.headerPageID, false)
	return size
}

// GetValue returns every value currently associated with k (duplicate keys
// with distinct values are allowed), in probe order.
func (t *LinearProbeHashTable[K, V]) GetValue(k K) []V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	headerFrame := t.bpm.FetchPage(t.headerPageID)
	header := NewHeaderPage(headerFrame.Data())
	numBuckets := header.GetSize()
	numPages := header.NumBlockPages()

	var results []V
	startSlot := t.slotFor(k, numBuckets)
	slotIndex := startSlot
	blockIndex, bucketIndex := blockBucket(slotIndex)

	for {
		blockPageID := header.GetBlockPageID(blockIndex)
		page := t.bpm.FetchPage(blockPageID)
		page.RLatch()
		bp := NewBlockPage[K, V](page.Data())

		if !bp.IsOccupied(bucketIndex) {
			page.RUnlatch()
			t.bpm.UnpinPage(blockPageID, false)
			break
		}
		if bp.IsReadable(bucketIndex) && t.cmp(bp.KeyAt(bucketIndex), k) == 0 {
			results = append(results, bp.ValueAt(bucketIndex))
		}
		page.RUnlatch()
		t.bpm.UnpinPage(blockPageID, false)

		bucketIndex++
		if bucketIndex == header.GetBlockArraySize(blockIndex) {
			blockIndex = (blockIndex + 1) % numPages
			bucketIndex = 0
		}
		slotIndex = (slotIndex + 1) % numBuckets
		if slotIndex == startSlot {
			break
		}
	}

	t.bpm.UnpinPage(t.headerPageID, false)
	return results
}

// Insert adds (k, v), growing the table (doubling num_buckets) and retrying
// if a full probe cycle finds no free slot. Returns false only for an exact
// (k, v) duplicate, which is rejected without growing the table.
func (t *LinearProbeHashTable[K, V]) Insert(k K, v V) bool {
	for {
		t.mu.RLock()
		ok, needResize := t.insertImpl(k, v)
		t.mu.RUnlock()
		if !needResize {
			return ok
		}

		t.mu.Lock()
		t.resizeLocked()
		t.mu.Unlock()
	}
}

// insertImpl runs the probe-and-place algorithm. Caller must hold at least
// the table R-latch (Insert) or the table W-latch (resizeLocked's
// reinsertion pass, which must not re-acquire it).
func (t *LinearProbeHashTable[K, V]) insertImpl(k K, v V) (ok bool, needResize bool) {
	headerFrame := t.bpm.FetchPage(t.headerPageID)
	header := NewHeaderPage(headerFrame.Data())
	numBuckets := header.GetSize()
	numPages := header.NumBlockPages()

	startSlot := t.slotFor(k, numBuckets)
	slotIndex := startSlot
	blockIndex, bucketIndex := blockBucket(slotIndex)

	for {
		blockPageID := header.GetBlockPageID(blockIndex)
		page := t.bpm.FetchPage(blockPageID)
		page.WLatch()
		bp := NewBlockPage[K, V](page.Data())

		if bp.Insert(bucketIndex, k, v) {
			page.WUnlatch()
			t.bpm.UnpinPage(blockPageID, true)
			t.bpm.UnpinPage(t.headerPageID, false)
			return true, false
		}

		if bp.IsReadable(bucketIndex) && t.cmp(bp.KeyAt(bucketIndex), k) == 0 && bp.ValueAt(bucketIndex) == v {
			page.WUnlatch()
			t.bpm.UnpinPage(blockPageID, false)
			t.bpm.UnpinPage(t.headerPageID, false)
			return false, false // duplicate pair rejected
		}

		page.WUnlatch()
		t.bpm.UnpinPage(blockPageID, false)

		bucketIndex++
		if bucketIndex == header.GetBlockArraySize(blockIndex) {
			blockIndex = (blockIndex + 1) % numPages
			bucketIndex = 0
		}
		slotIndex = (slotIndex + 1) % numBuckets
		if slotIndex == startSlot {
			t.bpm.UnpinPage(t.headerPageID, false)
			return false, true // full cycle: caller must resize and retry
		}
	}
}

// Remove deletes the exact (k, v) pair if it is currently readable. Stops
// at the first occupied slot matching (k, v) even if it is a tombstone
// (already removed), without scanning further.
func (t *LinearProbeHashTable[K, V]) Remove(k K, v V) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	headerFrame := t.bpm.FetchPage(t.headerPageID)
	header := NewHeaderPage(headerFrame.Data())
	numBuckets := header.GetSize()
	numPages := header.NumBlockPages()

	startSlot := t.slotFor(k, numBuckets)
	slotIndex := startSlot
	blockIndex, bucketIndex := blockBucket(slotIndex)

	for {
		blockPageID := header.GetBlockPageID(blockIndex)
		page := t.bpm.FetchPage(blockPageID)
		page.WLatch()
		bp := NewBlockPage[K, V](page.Data())

		if !bp.IsOccupied(bucketIndex) {
			page.WUnlatch()
			t.bpm.UnpinPage(blockPageID, false)
			break
		}
		if t.cmp(bp.KeyAt(bucketIndex), k) == 0 && bp.ValueAt(bucketIndex) == v {
			success := bp.IsReadable(bucketIndex)
			if success {
				bp.Remove(bucketIndex)
			}
			page.WUnlatch()
			t.bpm.UnpinPage(blockPageID, success)
			t.bpm.UnpinPage(t.headerPageID, false)
			return success
		}

		page.WUnlatch()
		t.bpm.UnpinPage(blockPageID, false)

		bucketIndex++
		if bucketIndex == header.GetBlockArraySize(blockIndex) {
			blockIndex = (blockIndex + 1) % numPages
			bucketIndex = 0
		}
		slotIndex = (slotIndex + 1) % numBuckets
		if slotIndex == startSlot {
			break
		}
	}

	t.bpm.UnpinPage(t.headerPageID, false)
	return false
}

// resizeLocked doubles the table's bucket count and reinserts every
// currently-readable entry into the new layout, then discards the old
// pages. Caller holds the table W-latch.
//
// spec.md §9 flags a bug in the original reinsertion loop: it increments
// the block-page index inside the per-bucket loop and reinserts
// ValueAt(block_index) instead of ValueAt(bucket_index). This iterates
// bucket_index within each block and reinserts (KeyAt(bucket_index),
// ValueAt(bucket_index)), which is the corrected behavior.
func (t *LinearProbeHashTable[K, V]) resizeLocked() {
	oldHeaderPageID := t.headerPageID
	oldHeaderFrame := t.bpm.FetchPage(oldHeaderPageID)
	oldHeader := NewHeaderPage(oldHeaderFrame.Data())
	oldSize := oldHeader.GetSize()
	oldNumPages := oldHeader.NumBlockPages()
	oldBlockIDs := make([]common.PageID, oldNumPages)
	for i := 0; i < oldNumPages; i++ {
		oldBlockIDs[i] = oldHeader.GetBlockPageID(i)
	}
	t.bpm.UnpinPage(oldHeaderPageID, false)

	newSize := oldSize * 2
	newHeaderFrame := t.bpm.NewPage()
	newHeaderPageID := newHeaderFrame.PageID()
	newHeader := NewHeaderPage(newHeaderFrame.Data())
	newHeader.Init(newHeaderPageID, newSize)

	for i := 0; i < numPagesFor(newSize); i++ {
		bf := t.bpm.NewPage()
		NewBlockPage[K, V](bf.Data()).Init(bf.PageID())
		newHeader.AddBlockPageID(bf.PageID())
		t.bpm.UnpinPage(bf.PageID(), true)
	}
	t.bpm.UnpinPage(newHeaderPageID, true)

	// Swap the active header before reinserting, since insertImpl always
	// fetches by t.headerPageID.
	t.headerPageID = newHeaderPageID

	for blockIndex, id := range oldBlockIDs {
		bf := t.bpm.FetchPage(id)
		bp := NewBlockPage[K, V](bf.Data())
		arraySize := blockArraySizeFor(oldSize, oldNumPages, blockIndex)
		for bucketIndex := 0; bucketIndex < arraySize; bucketIndex++ {
			if bp.IsReadable(bucketIndex) {
				t.insertImpl(bp.KeyAt(bucketIndex), bp.ValueAt(bucketIndex))
			}
		}
		t.bpm.UnpinPage(id, false)
		t.bpm.DeletePage(id)
	}
	t.bpm.DeletePage(oldHeaderPageID)
}
