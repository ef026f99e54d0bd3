package common

// RID (record identifier) locates a tuple within a table page: the page it
// lives on and its slot index in that page's slot directory.
type RID struct {
	PageID PageID
	Slot   uint32
}

// InvalidRID is the zero-value-distinct sentinel for "no record".
var InvalidRID = RID{PageID: InvalidPageID, Slot: 0}

// SizeOfRID is the on-disk/wire size of an RID: PageID(4) + Slot(4).
const SizeOfRID = 8

// Encode packs the RID into a single uint64, used as a fixed-width hash
// table value so RID can be stored in a generic FixedWord-keyed block page.
func (r RID) Encode() uint64 {
	return uint64(uint32(r.PageID))<<32 | uint64(r.Slot)
}

// DecodeRID is the inverse of RID.Encode.
func DecodeRID(v uint64) RID {
	return RID{
		PageID: PageID(int32(uint32(v >> 32))),
		Slot:   uint32(v),
	}
}
