// Package config holds the process-wide knobs every other package is
// constructed from, per spec.md §6 ("Process-wide configuration").
package config

import (
	"time"

	"github.com/pinlatch/storage/common"
)

// Config bundles the tunables the buffer pool, log manager, and hash index
// are built from. There is deliberately no file/env binding here: the CLI
// and config-file layer are out of scope for this core (see SPEC_FULL.md,
// AMBIENT STACK / Configuration).
type Config struct {
	// EnableLogging turns on WAL-ordering enforcement in the buffer pool
	// manager. The log manager does not read it; its background flush
	// thread starts only when RunFlushThread is called.
	EnableLogging bool

	// LogTimeout bounds how long the flush thread waits between forced
	// flushes when nothing requests one sooner.
	LogTimeout time.Duration

	// LogBufferSize is the size in bytes of each of the log manager's two
	// buffers (log_buffer and flush_buffer).
	LogBufferSize int

	// PageSize is the fixed size of every page. Present here for callers
	// that want to thread it through explicitly; the on-disk format always
	// uses common.PageSize.
	PageSize int

	// BlockArraySize is the number of (key, value) slots per hash table
	// block page.
	BlockArraySize int

	// PoolSize is the number of frames in the buffer pool.
	PoolSize int
}

// Default returns the configuration used by tests and by any caller that
// does not need to tune the engine.
func Default() Config {
	return Config{
		EnableLogging:  true,
		LogTimeout:     time.Second,
		LogBufferSize:  common.PageSize * 4,
		PageSize:       common.PageSize,
		BlockArraySize: 248,
		PoolSize:       64,
	}
}
