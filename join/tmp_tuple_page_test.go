package join

import (
	"bytes"
	"testing"

	"github.com/pinlatch/storage/common"
)

func newTestTmpTuplePage() *TmpTuplePage {
	var buf [common.PageSize]byte
	p := New(&buf)
	p.Init(common.PageID(3))
	return p
}

func TestTmpTuplePage_InsertAndGet(t *testing.T) {
	p := newTestTmpTuplePage()

	tmp1, ok := p.Insert([]byte("first"))
	if !ok {
		t.Fatalf("Insert(first) = false")
	}
	tmp2, ok := p.Insert([]byte("second-row"))
	if !ok {
		t.Fatalf("Insert(second) = false")
	}

	if !bytes.Equal(p.Get(tmp1), []byte("first")) {
		t.Fatalf("Get(tmp1) = %q, want first", p.Get(tmp1))
	}
	if !bytes.Equal(p.Get(tmp2), []byte("second-row")) {
		t.Fatalf("Get(tmp2) = %q, want second-row", p.Get(tmp2))
	}
}

func TestTmpTuplePage_InsertFailsWhenFull(t *testing.T) {
	p := newTestTmpTuplePage()
	huge := make([]byte, common.PageSize)
	if _, ok := p.Insert(huge); ok {
		t.Fatalf("Insert() of an oversized tuple succeeded")
	}
}

func TestTmpTuple_EncodeDecodeRoundTrip(t *testing.T) {
	tmp := TmpTuple{PageID: 42, Offset: 1000}
	got := DecodeTmpTuple(tmp.Encode())
	if got != tmp {
		t.Fatalf("DecodeTmpTuple(Encode()) = %+v, want %+v", got, tmp)
	}
}
