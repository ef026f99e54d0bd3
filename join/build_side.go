package join

import (
	"github.com/pinlatch/storage/buffer"
	"github.com/pinlatch/storage/common"
	"github.com/pinlatch/storage/config"
	"github.com/pinlatch/storage/index/hash"
)

// jhtNumBuckets is the initial bucket count for a build side's join hash
// table; small on purpose since LinearProbeHashTable doubles on demand.
const jhtNumBuckets = 64

// BuildSide stages one side of a hash join: raw tuples land on
// TmpTuplePages as they stream in, indexed by join hash in a
// LinearProbeHashTable keyed on that hash, reproducing the storage-level
// shape of HashJoinExecutor::Init without any SQL type system above it.
type BuildSide struct {
	bpm *buffer.BufferPoolManager
	jht *hash.LinearProbeHashTable[uint64, uint64]

	currentPageID common.PageID
	currentPage   *TmpTuplePage
}

// NewBuildSide creates an empty build side backed by bpm.
func NewBuildSide(bpm *buffer.BufferPoolManager) *BuildSide {
	frame := bpm.NewPage()
	page := New(frame.Data())
	page.Init(frame.PageID())

	identity := hash.HashFunc[uint64](func(k uint64) uint64 { return k })
	jht := hash.New[uint64, uint64](bpm, config.Default(), jhtNumBuckets, identity, hash.DefaultComparator[uint64]())

	return &BuildSide{
		bpm:           bpm,
		jht:           jht,
		currentPageID: frame.PageID(),
		currentPage:   page,
	}
}

// Build stages tuple under joinHash, as HashJoinExecutor::Init does for
// every left-side row: try the current page; if it is full, unpin it
// (dirty) and start a fresh one.
func (b *BuildSide) Build(joinHash uint64, tuple []byte) {
	tmp, ok := b.currentPage.Insert(tuple)
	if !ok {
		b.bpm.UnpinPage(b.currentPageID, true)

		frame := b.bpm.NewPage()
		b.currentPage = New(frame.Data())
		b.currentPage.Init(frame.PageID())
		b.currentPageID = frame.PageID()

		tmp, ok = b.currentPage.Insert(tuple)
		if !ok {
			panic("join: tuple too large to fit on an empty TmpTuplePage")
		}
	}

	b.jht.Insert(joinHash, tmp.Encode())
}

// Probe returns every staged tuple whose join hash matches joinHash, as
// HashJoinExecutor::Next does for each right-side row.
func (b *BuildSide) Probe(joinHash uint64) [][]byte {
	encoded := b.jht.GetValue(joinHash)
	out := make([][]byte, 0, len(encoded))

	for _, v := range encoded {
		tmp := DecodeTmpTuple(v)
		frame := b.bpm.FetchPage(tmp.PageID)
		out = append(out, New(frame.Data()).Get(tmp))
		b.bpm.UnpinPage(tmp.PageID, false)
	}
	return out
}

// Close unpins the page currently being staged into, marking it dirty; it
// is written to disk only when the buffer pool evicts or flushes it.
func (b *BuildSide) Close() {
	b.bpm.UnpinPage(b.currentPageID, true)
}
