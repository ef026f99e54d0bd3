package buffer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pinlatch/storage/common"
	"github.com/pinlatch/storage/config"
	"github.com/pinlatch/storage/disk"
)

// ErrPoolExhausted is returned by callers that prefer an error over a nil
// pointer; FetchPage/NewPage themselves follow spec.md §7's policy of
// returning a nullable pointer rather than an error for this case.
var ErrPoolExhausted = errors.New("buffer: every frame is pinned")

// logFlusher is the WAL-ordering hook C4 needs from the log manager (§4.4):
// force a flush, and report how much of the log is currently durable.
// Declared locally (rather than importing package recovery) so buffer has no
// dependency on recovery; recovery.LogManager satisfies this interface.
type logFlusher interface {
	Flush()
	PersistentLSN() common.LSN
}

// BufferPoolManager is C4: it owns the frame array, page table, free list
// and replacer, and enforces WAL-before-data-page ordering on eviction.
// Grounded in the teacher's BufMgr.PinLatch/PageOut victim discipline and in
// novasql/internal/bufferpool.Pool, generalized to the page-table + free-list
// + replacer structure spec.md §3/§4.4 specifies.
type BufferPoolManager struct {
	mu sync.Mutex

	poolSize int
	pages    []Page
	table    map[common.PageID]common.FrameID
	freeList []common.FrameID
	replacer *ClockReplacer

	disk          *disk.Manager
	log           logFlusher // nil when logging is disabled
	enableLogging bool
}

// NewBufferPoolManager creates a pool of cfg.PoolSize frames over disk, built
// from config.Config. log may be nil; pass a non-nil log manager (with
// cfg.EnableLogging true) to turn on the WAL-ordering check in
// evictFrameLocked.
func NewBufferPoolManager(cfg config.Config, d *disk.Manager, log logFlusher) *BufferPoolManager {
	poolSize := cfg.PoolSize
	bpm := &BufferPoolManager{
		poolSize:      poolSize,
		pages:         make([]Page, poolSize),
		table:         make(map[common.PageID]common.FrameID, poolSize),
		freeList:      make([]common.FrameID, poolSize),
		replacer:      NewClockReplacer(poolSize),
		disk:          d,
		log:           log,
		enableLogging: cfg.EnableLogging && log != nil,
	}
	for i := 0; i < poolSize; i++ {
		bpm.freeList[i] = common.FrameID(i)
		bpm.pages[i].pageID = common.InvalidPageID
	}
	return bpm
}

// FetchPage pins and returns the frame holding page_id, reading it from disk
// if it is not already resident. Returns nil if every frame is pinned.
func (b *BufferPoolManager) FetchPage(pageID common.PageID) *Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f, ok := b.table[pageID]; ok {
		page := &b.pages[f]
		if page.pinCount == 0 {
			b.replacer.Pin(f)
		}
		page.pinCount++
		return page
	}

	f, ok := b.getFrame()
	if !ok {
		slog.Debug("buffer: FetchPage found no free frame", "pageID", pageID)
		return nil
	}

	page := &b.pages[f]
	b.evictFrameLocked(f, page)

	delete(b.table, page.pageID)
	b.table[pageID] = f
	b.disk.ReadPage(pageID, page.data[:])
	page.installFetched(pageID)
	b.replacer.Pin(f)

	slog.Debug("buffer: FetchPage read from disk", "pageID", pageID, "frame", f)
	return page
}

// NewPage allocates a fresh page_id, pins a frame for it, and returns the
// (zeroed) frame. Returns nil if every frame is pinned.
func (b *BufferPoolManager) NewPage() *Page {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.getFrame()
	if !ok {
		return nil
	}

	page := &b.pages[f]
	b.evictFrameLocked(f, page)

	pageID := b.disk.AllocatePage()
	delete(b.table, page.pageID)
	b.table[pageID] = f
	page.resetTo(pageID)
	b.replacer.Pin(f)

	slog.Debug("buffer: NewPage", "pageID", pageID, "frame", f)
	return page
}

// UnpinPage decrements pageID's pin count, ORing isDirty into its dirty bit.
// Returns false if the page is unmapped or already unpinned.
func (b *BufferPoolManager) UnpinPage(pageID common.PageID, isDirty bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.table[pageID]
	if !ok {
		return false
	}
	page := &b.pages[f]
	if page.pinCount <= 0 {
		return false
	}

	page.isDirty = page.isDirty || isDirty
	page.pinCount--
	if page.pinCount == 0 {
		b.replacer.Unpin(f)
	}
	return true
}

// FlushPage writes pageID back to disk if dirty and clears its dirty bit.
// Returns false only if the page is unmapped; flushing a clean page is a
// no-op that still returns true.
func (b *BufferPoolManager) FlushPage(pageID common.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.table[pageID]
	if !ok {
		return false
	}
	b.flushFrameLocked(&b.pages[f])
	return true
}

// DeletePage removes pageID from the pool and returns its frame to the free
// list. Returns true if the page was already absent (the postcondition
// already holds); returns false if it is still pinned.
func (b *BufferPoolManager) DeletePage(pageID common.PageID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	f, ok := b.table[pageID]
	if !ok {
		return true
	}
	page := &b.pages[f]
	if page.pinCount > 0 {
		return false
	}

	b.disk.DeallocatePage(pageID)
	delete(b.table, pageID)
	b.replacer.Pin(f) // it must not be a victim candidate while "free"
	page.pageID = common.InvalidPageID
	page.isDirty = false
	page.SetLSN(common.InvalidLSN)
	b.freeList = append(b.freeList, f)
	return true
}

// FlushAllPages writes back every dirty mapped frame. Per spec.md §9's
// redesign note, this writes each frame's *own* stored page_id, not its
// index in the pool — the bug in the original FlushAllPagesImpl (which wrote
// frame i to page-id i) is the thing being corrected here.
func (b *BufferPoolManager) FlushAllPages() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for f := range b.pages {
		page := &b.pages[f]
		if page.pageID == common.InvalidPageID {
			continue
		}
		b.flushFrameLocked(page)
	}
}

// flushFrameLocked writes page back to disk if dirty; caller holds b.mu.
func (b *BufferPoolManager) flushFrameLocked(page *Page) {
	if !page.isDirty {
		return
	}
	b.disk.WritePage(page.pageID, page.data[:])
	page.isDirty = false
}

// evictFrameLocked prepares frame f (identified by its current page, which
// is common.InvalidPageID for a never-used or deleted frame) to be repurposed: if it is
// dirty and WAL-tracked past the durable point, the log is forced durable
// first (spec.md §4.4's critical WAL-ordering rule), then the frame is
// written back. Caller holds b.mu.
func (b *BufferPoolManager) evictFrameLocked(f common.FrameID, page *Page) {
	if page.pageID == common.InvalidPageID {
		return
	}
	if page.isDirty {
		if b.enableLogging && page.LSN() > b.log.PersistentLSN() {
			b.log.Flush()
		}
		b.disk.WritePage(page.pageID, page.data[:])
		page.isDirty = false
	}
}

// getFrame returns a frame to repurpose, preferring the free list, falling
// back to the clock replacer. Caller holds b.mu.
func (b *BufferPoolManager) getFrame() (common.FrameID, bool) {
	if n := len(b.freeList); n > 0 {
		f := b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
		return f, true
	}
	return b.replacer.Victim()
}

// PoolSize returns the number of frames in the pool.
func (b *BufferPoolManager) PoolSize() int { return b.poolSize }

// String is useful in test failure output.
func (b *BufferPoolManager) String() string {
	return fmt.Sprintf("BufferPoolManager{poolSize=%d, mapped=%d}", b.poolSize, len(b.table))
}
