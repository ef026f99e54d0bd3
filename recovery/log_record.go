// Package recovery implements C5 (log manager) and C6 (log recovery): the
// write-ahead log buffer/flush-thread pipeline and the ARIES-style redo/undo
// pass over the on-disk log, replayed against table.Page.
package recovery

import (
	"encoding/binary"

	"github.com/pinlatch/storage/common"
)

// RecordType enumerates the log record kinds spec.md §6 lists.
type RecordType uint32

const (
	TypeBegin RecordType = iota
	TypeCommit
	TypeAbort
	TypeInsert
	TypeMarkDelete
	TypeApplyDelete
	TypeRollbackDelete
	TypeUpdate
	TypeNewPage
)

// HeaderSize is the fixed 20-byte prefix of every record:
// size(4), lsn(4), txn_id(4), prev_lsn(4), type(4).
const HeaderSize = 20

// Record is one WAL entry. Not every field is meaningful for every Type;
// see Serialize/Deserialize for the exact per-type body layout.
type Record struct {
	Size    int32
	LSN     common.LSN
	TxnID   common.TxnID
	PrevLSN common.LSN
	Type    RecordType

	RID common.RID

	// INSERT / MARKDELETE / APPLYDELETE / ROLLBACKDELETE body.
	Tuple []byte

	// UPDATE body.
	OldTuple []byte
	NewTuple []byte

	// NEWPAGE body.
	PrevPageID common.PageID
	PageID     common.PageID
}

// Serialize encodes rec into a freshly sized byte slice, filling rec.Size as
// a side effect (AppendLogRecord needs the final size before it can decide
// whether the record fits in the remaining buffer space).
func (r *Record) Serialize() []byte {
	bodyLen := r.bodyLen()
	buf := make([]byte, HeaderSize+bodyLen)
	r.Size = int32(len(buf))

	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Size))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(int32(r.LSN)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(int32(r.TxnID)))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(int32(r.PrevLSN)))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(r.Type))

	body := buf[HeaderSize:]
	switch r.Type {
	case TypeBegin, TypeCommit, TypeAbort:
		// no body
	case TypeInsert, TypeMarkDelete, TypeApplyDelete, TypeRollbackDelete:
		putRID(body[0:8], r.RID)
		putTuple(body[8:], r.Tuple)
	case TypeUpdate:
		putRID(body[0:8], r.RID)
		n := putTuple(body[8:], r.OldTuple)
		putTuple(body[8+n:], r.NewTuple)
	case TypeNewPage:
		binary.LittleEndian.PutUint32(body[0:4], uint32(int32(r.PrevPageID)))
		binary.LittleEndian.PutUint32(body[4:8], uint32(int32(r.PageID)))
	}
	return buf
}

func (r *Record) bodyLen() int {
	switch r.Type {
	case TypeBegin, TypeCommit, TypeAbort:
		return 0
	case TypeInsert, TypeMarkDelete, TypeApplyDelete, TypeRollbackDelete:
		return 8 + 4 + len(r.Tuple)
	case TypeUpdate:
		return 8 + 4 + len(r.OldTuple) + 4 + len(r.NewTuple)
	case TypeNewPage:
		return 8
	default:
		return 0
	}
}

// DeserializeLogRecord validates that buf holds a complete record (size>0
// and within the available bytes) and decodes it. Returns false for a
// truncated trailing record, which recovery treats as end-of-log rather
// than corruption (spec.md §7 CorruptLogRecord policy).
func DeserializeLogRecord(buf []byte) (*Record, bool) {
	if len(buf) < HeaderSize {
		return nil, false
	}
	size := int32(binary.LittleEndian.Uint32(buf[0:4]))
	if size <= 0 || int(size) > len(buf) {
		return nil, false
	}

	rec := &Record{
		Size:    size,
		LSN:     common.LSN(int32(binary.LittleEndian.Uint32(buf[4:8]))),
		TxnID:   common.TxnID(int32(binary.LittleEndian.Uint32(buf[8:12]))),
		PrevLSN: common.LSN(int32(binary.LittleEndian.Uint32(buf[12:16]))),
		Type:    RecordType(binary.LittleEndian.Uint32(buf[16:20])),
	}

	body := buf[HeaderSize:size]
	switch rec.Type {
	case TypeBegin, TypeCommit, TypeAbort:
	case TypeInsert, TypeMarkDelete, TypeApplyDelete, TypeRollbackDelete:
		if len(body) < 8 {
			return nil, false
		}
		rec.RID = getRID(body[0:8])
		tuple, ok := getTuple(body[8:])
		if !ok {
			return nil, false
		}
		rec.Tuple = tuple
	case TypeUpdate:
		if len(body) < 8 {
			return nil, false
		}
		rec.RID = getRID(body[0:8])
		old, ok := getTuple(body[8:])
		if !ok {
			return nil, false
		}
		nw, ok := getTuple(body[8+4+len(old):])
		if !ok {
			return nil, false
		}
		rec.OldTuple, rec.NewTuple = old, nw
	case TypeNewPage:
		if len(body) < 8 {
			return nil, false
		}
		rec.PrevPageID = common.PageID(int32(binary.LittleEndian.Uint32(body[0:4])))
		rec.PageID = common.PageID(int32(binary.LittleEndian.Uint32(body[4:8])))
	default:
		return nil, false
	}
	return rec, true
}

func putRID(dst []byte, rid common.RID) {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(int32(rid.PageID)))
	binary.LittleEndian.PutUint32(dst[4:8], rid.Slot)
}

func getRID(src []byte) common.RID {
	return common.RID{
		PageID: common.PageID(int32(binary.LittleEndian.Uint32(src[0:4]))),
		Slot:   binary.LittleEndian.Uint32(src[4:8]),
	}
}

// putTuple writes a size-prefixed tuple and returns the number of bytes
// written (4 + len(data)).
func putTuple(dst []byte, data []byte) int {
	binary.LittleEndian.PutUint32(dst[0:4], uint32(len(data)))
	copy(dst[4:4+len(data)], data)
	return 4 + len(data)
}

func getTuple(src []byte) ([]byte, bool) {
	if len(src) < 4 {
		return nil, false
	}
	size := binary.LittleEndian.Uint32(src[0:4])
	if uint32(len(src)-4) < size {
		return nil, false
	}
	data := make([]byte, size)
	copy(data, src[4:4+size])
	return data, true
}
