// Package common holds the identifiers and constants shared by every layer
// of the storage core: page/frame/log addressing and the fixed page size.
package common

// PageID addresses a fixed-size page on disk. InvalidPageID marks "no page".
type PageID int32

// InvalidPageID is the sentinel returned where no page exists.
const InvalidPageID PageID = -1

// FrameID indexes into the buffer pool's in-memory frame array.
type FrameID int32

// InvalidFrameID marks "no frame".
const InvalidFrameID FrameID = -1

// LSN is a monotonically increasing log sequence number.
type LSN int32

// InvalidLSN marks a record with no assigned (or no prior) LSN.
const InvalidLSN LSN = -1

// TxnID identifies a transaction in the active-transaction table.
type TxnID int32

// InvalidTxnID marks "no transaction".
const InvalidTxnID TxnID = -1

// PageSize is the size in bytes of every on-disk page and in-memory frame.
const PageSize = 4096
