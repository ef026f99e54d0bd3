package table

import (
	"bytes"
	"testing"

	"github.com/pinlatch/storage/common"
)

func newTestPage() *Page {
	var buf [common.PageSize]byte
	p := New(&buf)
	p.Init(common.PageID(7), common.InvalidPageID)
	return p
}

func TestPage_InitLSNInvalid(t *testing.T) {
	p := newTestPage()
	if got := p.GetLSN(); got != common.InvalidLSN {
		t.Fatalf("GetLSN() after Init = %d, want InvalidLSN", got)
	}
}

func TestPage_InsertAndGetTuple(t *testing.T) {
	p := newTestPage()
	data := []byte("hello tuple")

	rid, ok := p.InsertTuple(data)
	if !ok {
		t.Fatalf("InsertTuple() ok = false")
	}
	if rid.PageID != common.PageID(7) {
		t.Fatalf("rid.PageID = %d, want 7", rid.PageID)
	}

	got, ok := p.GetTuple(rid)
	if !ok || !bytes.Equal(got, data) {
		t.Fatalf("GetTuple() = %q, %v, want %q, true", got, ok, data)
	}
}

func TestPage_InsertTuple_InsufficientSpace(t *testing.T) {
	p := newTestPage()
	huge := make([]byte, common.PageSize)
	if _, ok := p.InsertTuple(huge); ok {
		t.Fatalf("InsertTuple() of an oversized tuple succeeded")
	}
}

func TestPage_UpdateTupleInPlace(t *testing.T) {
	p := newTestPage()
	rid, _ := p.InsertTuple([]byte("abcdef"))

	old, ok := p.UpdateTuple(rid, []byte("xyz"))
	if !ok || !bytes.Equal(old, []byte("abcdef")) {
		t.Fatalf("UpdateTuple() = %q, %v, want old data returned", old, ok)
	}
	got, _ := p.GetTuple(rid)
	if !bytes.Equal(got, []byte("xyz")) {
		t.Fatalf("GetTuple() after update = %q, want xyz", got)
	}
}

func TestPage_UpdateTuple_TooLargeFails(t *testing.T) {
	p := newTestPage()
	rid, _ := p.InsertTuple([]byte("abc"))
	if _, ok := p.UpdateTuple(rid, []byte("abcdef")); ok {
		t.Fatalf("UpdateTuple() grew past the slot's size and still succeeded")
	}
}

func TestPage_MarkApplyRollbackDelete(t *testing.T) {
	p := newTestPage()
	rid, _ := p.InsertTuple([]byte("doomed"))

	if !p.MarkDelete(rid) {
		t.Fatalf("MarkDelete() = false")
	}
	if _, ok := p.GetTuple(rid); ok {
		t.Fatalf("GetTuple() after MarkDelete = true, want false (tombstoned)")
	}

	if !p.RollbackDelete(rid) {
		t.Fatalf("RollbackDelete() = false")
	}
	got, ok := p.GetTuple(rid)
	if !ok || !bytes.Equal(got, []byte("doomed")) {
		t.Fatalf("GetTuple() after rollback = %q, %v, want restored tuple", got, ok)
	}

	if !p.MarkDelete(rid) {
		t.Fatalf("MarkDelete() (second) = false")
	}
	if !p.ApplyDelete(rid) {
		t.Fatalf("ApplyDelete() = false")
	}
	if _, ok := p.GetTuple(rid); ok {
		t.Fatalf("GetTuple() after ApplyDelete = true, want false")
	}
}

func TestPage_NextPageIDRoundTrip(t *testing.T) {
	p := newTestPage()
	p.SetNextPageID(common.PageID(42))
	if got := p.GetNextPageID(); got != common.PageID(42) {
		t.Fatalf("GetNextPageID() = %d, want 42", got)
	}
}

func TestPage_OutOfRangeRIDFails(t *testing.T) {
	p := newTestPage()
	if _, ok := p.GetTuple(common.RID{PageID: 7, Slot: 99}); ok {
		t.Fatalf("GetTuple() on an unused slot succeeded")
	}
	if p.MarkDelete(common.RID{PageID: 7, Slot: 99}) {
		t.Fatalf("MarkDelete() on an unused slot succeeded")
	}
}
