package hash

import (
	"encoding/binary"
	"hash/maphash"
)

// HashFunc hashes a FixedWord key to a bucket-selecting uint64. Grounded on
// the standard library's hash/maphash: no library in the retrieval pack
// offers a generic integer hash, and maphash is the stdlib's own
// general-purpose non-cryptographic hash, built for exactly this. Exposed
// as a plain function type (rather than requiring maphash specifically) so
// tests can supply a deterministic hash to exercise probe wraparound.
type HashFunc[K FixedWord] func(k K) uint64

// NewHashFunc returns a hasher seeded once at creation and stable for
// every call afterward.
func NewHashFunc[K FixedWord]() HashFunc[K] {
	seed := maphash.MakeSeed()
	return func(k K) uint64 {
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], toWord(k))

		var mh maphash.Hash
		mh.SetSeed(seed)
		mh.Write(buf[:])
		return mh.Sum64()
	}
}
