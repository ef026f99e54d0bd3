package recovery

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pinlatch/storage/common"
	"github.com/pinlatch/storage/config"
	"github.com/pinlatch/storage/disk"
)

// LogManager is C5: two equally sized buffers, a background flush thread,
// and two condition variables coordinating appenders and the flusher.
// Grounded in the pack's closest sync.Cond discipline (a lock-guarded
// predicate loop with Broadcast on every state change, as in the cache
// worker-coordination code elsewhere in the pack) generalized from a
// single-predicate cache lock into the append/flush handoff spec.md §4.5
// describes.
type LogManager struct {
	mu        sync.Mutex
	cvFlush   *sync.Cond
	cvAppend  *sync.Cond

	logBuffer   []byte
	flushBuffer []byte

	logBufferOffset   int
	flushBufferOffset int

	// logFileOffset is the byte offset in the log file the next flush writes
	// at, advanced by each flush's length so the file stays append-only
	// across flush cycles rather than every flush clobbering offset 0.
	logFileOffset int

	nextLSN       common.LSN
	persistentLSN common.LSN
	needFlush     bool

	enabled bool
	running bool
	done    chan struct{}

	disk       *disk.Manager
	logTimeout time.Duration
}

// NewLogManager creates a log manager with two cfg.LogBufferSize-byte
// buffers, backed by d for durability and built from config.Config. The
// background flush thread is not started until RunFlushThread is called.
func NewLogManager(d *disk.Manager, cfg config.Config) *LogManager {
	lm := &LogManager{
		logBuffer:     make([]byte, cfg.LogBufferSize),
		flushBuffer:   make([]byte, cfg.LogBufferSize),
		persistentLSN: common.InvalidLSN, // nothing is durable until the first flush
		disk:          d,
		logTimeout:    cfg.LogTimeout,
	}
	lm.cvFlush = sync.NewCond(&lm.mu)
	lm.cvAppend = sync.NewCond(&lm.mu)
	return lm
}

// PersistentLSN reports the highest LSN known durable, satisfying the
// buffer pool's logFlusher interface.
func (lm *LogManager) PersistentLSN() common.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.persistentLSN
}

// AppendLogRecord serializes rec, assigns it the next LSN, and copies it
// into the log buffer, blocking until space is available if the buffer is
// currently full.
func (lm *LogManager) AppendLogRecord(rec *Record) common.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	data := rec.Serialize()
	for lm.logBufferOffset+len(data) > len(lm.logBuffer) {
		lm.needFlush = true
		lm.cvFlush.Signal()
		lm.cvAppend.Wait()
	}

	rec.LSN = lm.nextLSN
	lm.nextLSN++
	// rec.LSN changed after Serialize ran; patch the already-encoded header
	// in place rather than re-serializing the whole record.
	putLSNIntoHeader(data, rec.LSN)

	lm.logBufferOffset += copy(lm.logBuffer[lm.logBufferOffset:], data)
	return rec.LSN
}

// Flush forces a flush and blocks until it completes.
func (lm *LogManager) Flush() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.needFlush = true
	lm.cvFlush.Signal()
	for lm.needFlush {
		lm.cvAppend.Wait()
	}
}

// RunFlushThread starts the background flush loop in its own goroutine. It
// wakes on logTimeout or whenever needFlush is set, swaps the two buffers
// under the lock, then writes the swapped-out buffer to disk without
// holding the lock.
func (lm *LogManager) RunFlushThread() {
	lm.mu.Lock()
	if lm.running {
		lm.mu.Unlock()
		return
	}
	lm.enabled = true
	lm.running = true
	lm.done = make(chan struct{})
	lm.mu.Unlock()

	go lm.flushLoop()
}

func (lm *LogManager) flushLoop() {
	for {
		lm.mu.Lock()
		if !lm.enabled {
			lm.running = false
			close(lm.done)
			lm.mu.Unlock()
			return
		}

		if !lm.needFlush {
			lm.waitWithTimeout()
		}
		if !lm.enabled && lm.logBufferOffset == 0 {
			lm.running = false
			close(lm.done)
			lm.mu.Unlock()
			return
		}

		if lm.logBufferOffset == 0 {
			lm.needFlush = false
			lm.cvAppend.Broadcast()
			lm.mu.Unlock()
			continue
		}

		lm.logBuffer, lm.flushBuffer = lm.flushBuffer, lm.logBuffer
		lm.flushBufferOffset = lm.logBufferOffset
		lm.logBufferOffset = 0
		flushed := lm.flushBuffer[:lm.flushBufferOffset]
		lastLSN := lm.nextLSN - 1
		writeAt := lm.logFileOffset
		lm.mu.Unlock()

		lm.disk.WriteLog(flushed, writeAt)

		lm.mu.Lock()
		lm.persistentLSN = lastLSN
		lm.logFileOffset += len(flushed)
		lm.flushBufferOffset = 0
		lm.needFlush = false
		lm.cvAppend.Broadcast()
		lm.mu.Unlock()

		slog.Debug("recovery: flushed log buffer", "persistentLSN", lastLSN)
	}
}

// waitWithTimeout waits on cvFlush for either a signal or logTimeout,
// whichever comes first. Caller holds lm.mu.
func (lm *LogManager) waitWithTimeout() {
	timer := time.AfterFunc(lm.logTimeout, func() {
		lm.mu.Lock()
		lm.needFlush = true
		lm.cvFlush.Signal()
		lm.mu.Unlock()
	})
	lm.cvFlush.Wait()
	timer.Stop()
}

// StopFlushThread disables the flush loop, forces one final flush, and
// blocks until the goroutine has exited.
func (lm *LogManager) StopFlushThread() {
	lm.mu.Lock()
	if !lm.running {
		lm.mu.Unlock()
		return
	}
	lm.enabled = false
	lm.needFlush = true
	lm.cvFlush.Signal()
	done := lm.done
	lm.mu.Unlock()

	<-done
}

func putLSNIntoHeader(data []byte, lsn common.LSN) {
	if len(data) < HeaderSize {
		return
	}
	b := uint32(int32(lsn))
	data[4] = byte(b)
	data[5] = byte(b >> 8)
	data[6] = byte(b >> 16)
	data[7] = byte(b >> 24)
}
