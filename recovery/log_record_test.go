package recovery

import (
	"bytes"
	"testing"

	"github.com/pinlatch/storage/common"
)

func TestRecord_SerializeDeserializeInsert(t *testing.T) {
	rec := &Record{
		LSN:     5,
		TxnID:   1,
		PrevLSN: common.InvalidLSN,
		Type:    TypeInsert,
		RID:     common.RID{PageID: 3, Slot: 2},
		Tuple:   []byte("payload"),
	}
	data := rec.Serialize()

	got, ok := DeserializeLogRecord(data)
	if !ok {
		t.Fatalf("DeserializeLogRecord() ok = false")
	}
	if got.LSN != 5 || got.TxnID != 1 || got.Type != TypeInsert {
		t.Fatalf("header mismatch: %+v", got)
	}
	if got.RID != (common.RID{PageID: 3, Slot: 2}) {
		t.Fatalf("RID mismatch: %+v", got.RID)
	}
	if !bytes.Equal(got.Tuple, []byte("payload")) {
		t.Fatalf("tuple mismatch: %q", got.Tuple)
	}
}

func TestRecord_SerializeDeserializeUpdate(t *testing.T) {
	rec := &Record{
		TxnID:    2,
		PrevLSN:  1,
		Type:     TypeUpdate,
		RID:      common.RID{PageID: 9, Slot: 0},
		OldTuple: []byte("old-value"),
		NewTuple: []byte("new"),
	}
	data := rec.Serialize()

	got, ok := DeserializeLogRecord(data)
	if !ok {
		t.Fatalf("DeserializeLogRecord() ok = false")
	}
	if !bytes.Equal(got.OldTuple, []byte("old-value")) || !bytes.Equal(got.NewTuple, []byte("new")) {
		t.Fatalf("update body mismatch: old=%q new=%q", got.OldTuple, got.NewTuple)
	}
}

func TestRecord_SerializeDeserializeNewPage(t *testing.T) {
	rec := &Record{Type: TypeNewPage, PrevPageID: 4, PageID: 5}
	data := rec.Serialize()

	got, ok := DeserializeLogRecord(data)
	if !ok || got.PrevPageID != 4 || got.PageID != 5 {
		t.Fatalf("newpage round trip: %+v, %v", got, ok)
	}
}

func TestRecord_EmptyBodyTypes(t *testing.T) {
	for _, ty := range []RecordType{TypeBegin, TypeCommit, TypeAbort} {
		rec := &Record{TxnID: 1, Type: ty}
		data := rec.Serialize()
		if len(data) != HeaderSize {
			t.Fatalf("type %v serialized to %d bytes, want %d", ty, len(data), HeaderSize)
		}
		got, ok := DeserializeLogRecord(data)
		if !ok || got.Type != ty {
			t.Fatalf("round trip failed for type %v", ty)
		}
	}
}

func TestDeserializeLogRecord_TruncatedIsNotCorruption(t *testing.T) {
	rec := &Record{Type: TypeInsert, RID: common.RID{PageID: 1, Slot: 0}, Tuple: []byte("xyz")}
	data := rec.Serialize()

	if _, ok := DeserializeLogRecord(data[:HeaderSize+2]); ok {
		t.Fatalf("DeserializeLogRecord() on a truncated buffer = true, want false")
	}
	if _, ok := DeserializeLogRecord(nil); ok {
		t.Fatalf("DeserializeLogRecord(nil) = true, want false")
	}
}

func TestDeserializeLogRecord_ZeroSizeRejected(t *testing.T) {
	buf := make([]byte, HeaderSize)
	if _, ok := DeserializeLogRecord(buf); ok {
		t.Fatalf("DeserializeLogRecord() with size=0 = true, want false")
	}
}
