package disk

import (
	"bytes"
	"testing"

	"github.com/pinlatch/storage/common"
)

func TestManager_PageRoundTrip(t *testing.T) {
	m := NewManager("", "", InMemory())
	defer m.Close()

	pid := m.AllocatePage()
	want := bytes.Repeat([]byte{0xAB}, common.PageSize)
	m.WritePage(pid, want)

	got := make([]byte, common.PageSize)
	m.ReadPage(pid, got)

	if !bytes.Equal(got, want) {
		t.Fatalf("page round-trip mismatch")
	}
}

func TestManager_UnwrittenPageReadsZero(t *testing.T) {
	m := NewManager("", "", InMemory())
	defer m.Close()

	pid := m.AllocatePage()
	_ = pid
	far := common.PageID(50)
	buf := make([]byte, common.PageSize)
	m.ReadPage(far, buf)

	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestManager_AllocatePageMonotonic(t *testing.T) {
	m := NewManager("", "", InMemory())
	defer m.Close()

	first := m.AllocatePage()
	second := m.AllocatePage()
	if second != first+1 {
		t.Fatalf("AllocatePage() = %d, %d, want consecutive ids", first, second)
	}
}

func TestManager_LogAppendAndRead(t *testing.T) {
	m := NewManager("", "", InMemory())
	defer m.Close()

	rec1 := []byte("first-record-")
	rec2 := []byte("second-record")
	m.WriteLog(rec1, 0)
	m.WriteLog(rec2, len(rec1))

	buf := make([]byte, len(rec1)+len(rec2))
	n, ok := m.ReadLog(buf, 0)
	if !ok {
		t.Fatalf("ReadLog() ok = false, want true")
	}
	if n != len(buf) {
		t.Fatalf("ReadLog() n = %d, want %d", n, len(buf))
	}
	if !bytes.Equal(buf[:len(rec1)], rec1) || !bytes.Equal(buf[len(rec1):], rec2) {
		t.Fatalf("ReadLog() content mismatch: %q", buf)
	}
}

func TestManager_ReadLogPastEnd(t *testing.T) {
	m := NewManager("", "", InMemory())
	defer m.Close()

	m.WriteLog([]byte("hello"), 0)
	buf := make([]byte, 16)
	_, ok := m.ReadLog(buf, 1000)
	if ok {
		t.Fatalf("ReadLog() past end: ok = true, want false")
	}
}
