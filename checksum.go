// Node-integrity checksums.
//
// Every index block can carry a trailing checksum of its used bytes,
// verified on read so a torn or partially-written node is reported as
// corrupt rather than silently misinterpreted. Three algorithms are
// supported, selectable via Config.ChecksumAlgorithm, the same three the
// teacher offers for document hashing.
package isam

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// Checksum algorithm constants.
const (
	AlgNone    = 0
	AlgXXHash3 = 1 // default, fastest
	AlgFNV1a   = 2 // no external dependencies
	AlgBlake2b = 3 // best distribution
)

// checksumSize is the trailer width in bytes for any non-zero algorithm.
const checksumSize = 8

// checksum computes an 8-byte checksum of b using the given algorithm.
// Returns nil for AlgNone.
func checksum(alg int, b []byte) []byte {
	switch alg {
	case AlgXXHash3:
		var out [8]byte
		binary.BigEndian.PutUint64(out[:], xxh3.Hash(b))
		return out[:]
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write(b)
		var out [8]byte
		binary.BigEndian.PutUint64(out[:], h.Sum64())
		return out[:]
	case AlgBlake2b:
		h, _ := blake2b.New(8, nil)
		h.Write(b)
		return h.Sum(nil)
	default:
		return nil
	}
}

// verifyChecksum reports whether trailer matches the checksum of b under alg.
func verifyChecksum(alg int, b, trailer []byte) bool {
	if alg == AlgNone {
		return true
	}
	want := checksum(alg, b)
	if len(want) != len(trailer) {
		return false
	}
	for i := range want {
		if want[i] != trailer[i] {
			return false
		}
	}
	return true
}
