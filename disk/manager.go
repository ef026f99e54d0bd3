// Package disk implements C1: block-addressed page and log I/O, and the
// page-id allocation counter.
package disk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pinlatch/storage/common"
)

// Manager is the disk manager: it owns the page file and the log file and
// translates page_id/offset into file I/O. It never interprets page
// contents.
//
// I/O failures are fatal per spec.md §7 (IoFailure): Manager panics rather
// than returning an error, since callers (the buffer pool, recovery) have no
// sound way to make progress with a corrupt or unreachable backing store.
type Manager struct {
	mu      sync.Mutex
	db      backend
	logFile backend

	nextPageID int32 // atomic, monotonically increasing page_id allocator
}

// Option configures how Manager opens its backing files.
type Option func(*options)

type options struct {
	useDirectIO bool
	inMemory    bool
}

// WithDirectIO opens the page file with O_DIRECT (see disk.openDirectIOBackend).
func WithDirectIO() Option { return func(o *options) { o.useDirectIO = true } }

// InMemory backs both files with memfile.File instead of the filesystem;
// every test in this module uses it.
func InMemory() Option { return func(o *options) { o.inMemory = true } }

// NewManager opens (or creates) the page file at dbPath and the log file at
// logPath.
func NewManager(dbPath, logPath string, opts ...Option) *Manager {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var db, lg backend
	var err error
	switch {
	case o.inMemory:
		db, lg = newMemoryBackend(), newMemoryBackend()
	case o.useDirectIO:
		db, err = openDirectIOBackend(dbPath)
		if err != nil {
			panic(fmt.Sprintf("disk: open db file %q (direct I/O): %v", dbPath, err))
		}
		lg, err = openFileBackend(logPath)
		if err != nil {
			panic(fmt.Sprintf("disk: open log file %q: %v", logPath, err))
		}
	default:
		db, err = openFileBackend(dbPath)
		if err != nil {
			panic(fmt.Sprintf("disk: open db file %q: %v", dbPath, err))
		}
		lg, err = openFileBackend(logPath)
		if err != nil {
			panic(fmt.Sprintf("disk: open log file %q: %v", logPath, err))
		}
	}

	return &Manager{db: db, logFile: lg}
}

// ReadPage reads the page at page_id into buf, which must be common.PageSize
// bytes long.
func (m *Manager) ReadPage(pageID common.PageID, buf []byte) {
	if len(buf) != common.PageSize {
		panic("disk: ReadPage buffer must be PageSize bytes")
	}
	offset := int64(pageID) * common.PageSize
	n, err := m.db.ReadAt(buf, offset)
	if err != nil && n != len(buf) {
		// A page that has never been written reads as zeros, matching a
		// freshly-allocated page's on-disk state; only a genuine I/O error
		// (not a short read past EOF of an otherwise-unwritten page) is fatal.
		if !isBenignShortRead(err, n) {
			panic(fmt.Sprintf("disk: read page %d: %v", pageID, err))
		}
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	}
}

// WritePage writes buf (common.PageSize bytes) to the page at page_id.
func (m *Manager) WritePage(pageID common.PageID, buf []byte) {
	if len(buf) != common.PageSize {
		panic("disk: WritePage buffer must be PageSize bytes")
	}
	offset := int64(pageID) * common.PageSize
	if _, err := m.db.WriteAt(buf, offset); err != nil {
		panic(fmt.Sprintf("disk: write page %d: %v", pageID, err))
	}
}

// AllocatePage returns a new, monotonically increasing page_id. It does not
// write anything to disk; the caller (the buffer pool manager) is
// responsible for materializing the page.
func (m *Manager) AllocatePage() common.PageID {
	return common.PageID(atomic.AddInt32(&m.nextPageID, 1) - 1)
}

// DeallocatePage marks page_id reusable. Per spec.md §4.1, reuse is not
// required by any invariant, so this only logs the intent; nothing else in
// the module depends on deallocated ids being recycled.
func (m *Manager) DeallocatePage(pageID common.PageID) {
	slog.Debug("disk: deallocate page", "pageID", pageID)
}

// ReadLog reads up to len(buf) bytes of the log starting at offset, returning
// the number of bytes actually read and whether anything was read at all.
// A false return (with n==0) means offset is at or past the end of the log.
func (m *Manager) ReadLog(buf []byte, offset int) (int, bool) {
	n, err := m.logFile.ReadAt(buf, int64(offset))
	if n == 0 {
		return 0, false
	}
	if err != nil && !isBenignShortRead(err, n) {
		panic(fmt.Sprintf("disk: read log at %d: %v", offset, err))
	}
	return n, true
}

// WriteLog appends buf to the log file at offset and forces it durable
// before returning, per spec.md §4.1 ("appended with fsync on every
// WriteLog").
func (m *Manager) WriteLog(buf []byte, offset int) {
	if len(buf) == 0 {
		return
	}
	if _, err := m.logFile.WriteAt(buf, int64(offset)); err != nil {
		panic(fmt.Sprintf("disk: write log at %d: %v", offset, err))
	}
	if s, ok := m.logFile.(syncer); ok {
		if err := s.Sync(); err != nil {
			panic(fmt.Sprintf("disk: fsync log: %v", err))
		}
	}
}

// Close releases both backing files.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.db.Close()
	_ = m.logFile.Close()
}

// isBenignShortRead reports whether err is the ordinary "ran off the end of
// a sparse/empty backing store" condition rather than a genuine I/O fault.
func isBenignShortRead(err error, n int) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
