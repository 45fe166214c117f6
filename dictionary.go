// The dictionary node: block 1 of the index file.
//
// Generalizes the teacher's header.go — a fixed-size struct encoded to a
// known byte layout, with a dirty flag at a fixed offset patched in place —
// from a JSON header to a packed binary block. All multi-byte integers are
// stored big-endian regardless of host, per the data model.
package isam

import (
	"encoding/binary"
	"fmt"
)

// dictionaryMagic identifies a valid dictionary node.
const dictionaryMagic = 0x4953414D // "ISAM"

// Dictionary is the in-memory, decoded form of index block 1: table
// metadata and the heads of the free-node and free-data-slot chains.
type Dictionary struct {
	Magic     uint32
	Mode      Mode
	NodeSize  int
	Checksum  int // ChecksumAlgorithm
	KeyCount  int
	MinRowLen int
	MaxRowLen int // equal to MinRowLen for fixed-length tables; larger means variable-length

	KeyDescHead  NodeNum // head of the key-descriptor chain
	FreeDataHead int64   // head of the free-data-slot chain (0 = empty)
	FreeNodeHead NodeNum // head of the free-node chain (0 = empty)

	RowCount  int64
	NodeCount NodeNum

	TxnCounter    int64
	UniqueID      int64
	LockMethod    int
	HasCollation  bool
	CollationNode NodeNum
	Dirty         bool `json:"-"`
}

const dictionaryEncodedSize = 4 + 1 + 4 + 1 + 1 + 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8 + 8 + 1 + 1 + 8

// encode serialises the dictionary to a nodeSize-byte block with a trailing
// checksum, analogous to header.encode's pad-and-terminate.
func (d *Dictionary) encode(nodeSize int) ([]byte, error) {
	if dictionaryEncodedSize+checksumSize > nodeSize {
		return nil, fmt.Errorf("%w: node size too small for dictionary", ErrBadFormat)
	}
	buf := make([]byte, nodeSize)
	b := buf
	binary.BigEndian.PutUint32(b[0:4], dictionaryMagic)
	b[4] = byte(d.Mode)
	binary.BigEndian.PutUint32(b[5:9], uint32(d.NodeSize))
	b[9] = byte(d.Checksum)
	b[10] = byte(d.KeyCount)
	binary.BigEndian.PutUint32(b[11:15], uint32(d.MinRowLen))
	binary.BigEndian.PutUint32(b[15:19], uint32(d.MaxRowLen))
	binary.BigEndian.PutUint64(b[19:27], uint64(d.KeyDescHead))
	binary.BigEndian.PutUint64(b[27:35], uint64(d.FreeDataHead))
	binary.BigEndian.PutUint64(b[35:43], uint64(d.FreeNodeHead))
	binary.BigEndian.PutUint64(b[43:51], uint64(d.RowCount))
	binary.BigEndian.PutUint64(b[51:59], uint64(d.NodeCount))
	binary.BigEndian.PutUint64(b[59:67], uint64(d.TxnCounter))
	binary.BigEndian.PutUint64(b[67:75], uint64(d.UniqueID))
	b[75] = byte(d.LockMethod)
	if d.HasCollation {
		b[76] = 1
	}
	binary.BigEndian.PutUint64(b[77:85], uint64(d.CollationNode))

	sum := checksum(d.Checksum, buf[:dictionaryEncodedSize])
	copy(buf[nodeSize-checksumSize:], sum)
	return buf, nil
}

// decodeDictionary parses block 1, or the first bytes of a longer probe
// buffer. Returns ErrBadFormat if the magic does not match and
// ErrCorruptIndex if the checksum does not.
func decodeDictionary(buf []byte) (*Dictionary, error) {
	if len(buf) < dictionaryEncodedSize {
		return nil, fmt.Errorf("%w: dictionary truncated", ErrBadFormat)
	}
	d := &Dictionary{}
	d.Magic = binary.BigEndian.Uint32(buf[0:4])
	if d.Magic != dictionaryMagic {
		return nil, fmt.Errorf("%w: bad dictionary magic", ErrBadFormat)
	}
	d.Mode = Mode(buf[4])
	d.NodeSize = int(binary.BigEndian.Uint32(buf[5:9]))
	d.Checksum = int(buf[9])
	d.KeyCount = int(buf[10])
	d.MinRowLen = int(binary.BigEndian.Uint32(buf[11:15]))
	d.MaxRowLen = int(binary.BigEndian.Uint32(buf[15:19]))
	d.KeyDescHead = NodeNum(binary.BigEndian.Uint64(buf[19:27]))
	d.FreeDataHead = int64(binary.BigEndian.Uint64(buf[27:35]))
	d.FreeNodeHead = NodeNum(binary.BigEndian.Uint64(buf[35:43]))
	d.RowCount = int64(binary.BigEndian.Uint64(buf[43:51]))
	d.NodeCount = NodeNum(binary.BigEndian.Uint64(buf[51:59]))
	d.TxnCounter = int64(binary.BigEndian.Uint64(buf[59:67]))
	d.UniqueID = int64(binary.BigEndian.Uint64(buf[67:75]))
	d.LockMethod = int(buf[75])
	d.HasCollation = buf[76] != 0
	d.CollationNode = NodeNum(binary.BigEndian.Uint64(buf[77:85]))

	if d.NodeSize > 0 && d.NodeSize <= len(buf) {
		sum := buf[d.NodeSize-checksumSize : d.NodeSize]
		if !verifyChecksum(d.Checksum, buf[:dictionaryEncodedSize], sum) {
			return nil, fmt.Errorf("%w: dictionary checksum mismatch", ErrCorruptIndex)
		}
	}
	return d, nil
}
