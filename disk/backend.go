package disk

import (
	"io"
	"os"

	"github.com/dsnet/golib/memfile"
	"github.com/ncw/directio"
)

// backend is the minimal file-like surface the disk manager needs: random
// access reads/writes, Close and Truncate. os.File satisfies it directly;
// memfile.File is wrapped by growableMemBackend. The durability barrier is
// the separate, optional syncer interface below.
type backend interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Truncate(size int64) error
}

// syncer is implemented by backends that can force data to stable storage.
// os.File implements it; memfile.File does not, and is treated as always
// durable since it never survives process exit anyway.
type syncer interface {
	Sync() error
}

// osBackend adapts *os.File to backend.
type osBackend struct{ *os.File }

// openFileBackend opens path as a regular file, growing it as needed.
func openFileBackend(path string) (backend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return osBackend{f}, nil
}

// openDirectIOBackend opens path with O_DIRECT so reads/writes bypass the
// page cache, matching C1's "raw page file" contract. Callers must only
// issue common.PageSize-aligned, common.PageSize-sized I/O against it, which
// disk.Manager guarantees.
func openDirectIOBackend(path string) (backend, error) {
	f, err := directio.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	return osBackend{f}, nil
}

// newMemoryBackend returns an in-memory backend over an initially empty
// buffer, grown lazily by WriteAt the way *os.File would be.
func newMemoryBackend() backend {
	return &growableMemBackend{buf: memfile.New(nil)}
}

// growableMemBackend grows the underlying memfile before writes that would
// land past its current length, since memfile.File (unlike os.File) does not
// implicitly extend the file on an out-of-range WriteAt.
type growableMemBackend struct {
	buf  *memfile.File
	size int64
}

func (m *growableMemBackend) ReadAt(p []byte, off int64) (int, error) {
	return m.buf.ReadAt(p, off)
}

func (m *growableMemBackend) WriteAt(p []byte, off int64) (int, error) {
	need := off + int64(len(p))
	if need > m.size {
		if err := m.growTo(need); err != nil {
			return 0, err
		}
	}
	return m.buf.WriteAt(p, off)
}

func (m *growableMemBackend) growTo(size int64) error {
	extra := make([]byte, size-m.size)
	if _, err := m.buf.WriteAt(extra, m.size); err != nil {
		return err
	}
	m.size = size
	return nil
}

func (m *growableMemBackend) Truncate(size int64) error {
	m.size = size
	return nil
}

func (m *growableMemBackend) Close() error { return m.buf.Close() }
