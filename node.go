// Tree node encoding: the on-disk representation of interior and leaf
// nodes in a key tree, including leading/trailing/duplicate-run key
// compression and the dummy +infinity sentinel entry.
//
// Tree algorithms (keytree.go) operate on the decoded, logical form — a
// node's entries each carrying a full key — and this file is the only place
// that knows about the compressed, compact on-disk form. This mirrors the
// teacher's separation between record.go (wire format) and the operations
// that consume *Record/*Index values without caring how the bytes were
// packed.
package isam

import (
	"encoding/binary"
	"fmt"
)

// treeEntry is the logical form of one tree entry: a key plus either a row
// reference (leaf) or a child pointer (interior).
type treeEntry struct {
	Key   []byte
	RowID RowID
	DupNo uint32
	Child NodeNum
	Dummy bool
}

// treeNode is the decoded form of one index node devoted to a key tree.
type treeNode struct {
	Num     NodeNum
	Leaf    bool
	Entries []treeEntry
}

const nodeHeaderSize = 5 // 1 byte leaf marker + 4 byte entry count

const (
	flagDupRun = 1 << 0
	flagDummy  = 1 << 1
)

func sameKey(a, b []byte) bool {
	if a == nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// compressKey applies leading- and trailing-byte compression relative to
// prevKey, returning the shared-prefix length and the stored remainder.
func compressKey(d *KeyDescriptor, prevKey, key []byte) (lead int, stored []byte) {
	if d.LeadingCompress && prevKey != nil {
		n := len(key)
		if len(prevKey) < n {
			n = len(prevKey)
		}
		for lead < n && key[lead] == prevKey[lead] {
			lead++
		}
	}
	end := len(key)
	if d.TrailingCompress {
		for end > lead && key[end-1] == ' ' {
			end--
		}
	}
	return lead, key[lead:end]
}

// expandKey reverses compressKey given the full fixed key length.
func expandKey(fullLen, lead int, stored []byte, prevKey []byte) []byte {
	out := make([]byte, fullLen)
	if lead > 0 && prevKey != nil {
		copy(out, prevKey[:lead])
	}
	copy(out[lead:], stored)
	for i := lead + len(stored); i < fullLen; i++ {
		out[i] = ' '
	}
	return out
}

// encodeNode serialises n to a nodeSize-byte block for key descriptor d
// under the given mode and checksum algorithm.
func encodeNode(n *treeNode, d *KeyDescriptor, mode Mode, checksumAlg, nodeSize int) ([]byte, error) {
	buf := make([]byte, nodeSize)
	if n.Leaf {
		buf[0] = 1
	}
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(n.Entries)))

	off := nodeHeaderSize
	var prevKey []byte
	keyLen := d.KeyLen()
	pw := mode.pointerWidth()

	for _, e := range n.Entries {
		if off >= nodeSize-checksumSize {
			return nil, fmt.Errorf("%w: node overflow", ErrNoFreeSpace)
		}
		flags := byte(0)
		if e.Dummy {
			flags |= flagDummy
			buf[off] = flags
			off++
			if !n.Leaf {
				putUint(buf[off:off+pw], uint64(e.Child))
				off += pw
			}
			prevKey = infinityKey(keyLen)
			continue
		}

		if sameKey(prevKey, e.Key) && d.DupCompress {
			flags |= flagDupRun
			buf[off] = flags
			off++
			if n.Leaf {
				binary.BigEndian.PutUint64(buf[off:off+8], uint64(e.RowID))
				off += 8
				binary.BigEndian.PutUint32(buf[off:off+4], e.DupNo)
				off += 4
			} else {
				putUint(buf[off:off+pw], uint64(e.Child))
				off += pw
			}
			prevKey = e.Key
			continue
		}

		lead, stored := compressKey(d, prevKey, e.Key)
		buf[off] = flags
		off++
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(lead))
		off += 2
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(len(stored)))
		off += 2
		copy(buf[off:off+len(stored)], stored)
		off += len(stored)

		if n.Leaf {
			binary.BigEndian.PutUint64(buf[off:off+8], uint64(e.RowID))
			off += 8
			binary.BigEndian.PutUint32(buf[off:off+4], e.DupNo)
			off += 4
		} else {
			putUint(buf[off:off+pw], uint64(e.Child))
			off += pw
		}
		prevKey = e.Key
	}

	if checksumAlg != AlgNone {
		sum := checksum(checksumAlg, buf[:off])
		copy(buf[nodeSize-checksumSize:], sum)
	}
	return buf, nil
}

// decodeNode parses a nodeSize-byte block for key descriptor d.
func decodeNode(buf []byte, num NodeNum, d *KeyDescriptor, mode Mode, checksumAlg int) (*treeNode, error) {
	if len(buf) < nodeHeaderSize {
		return nil, fmt.Errorf("%w: node truncated", ErrCorruptIndex)
	}
	n := &treeNode{Num: num, Leaf: buf[0] == 1}
	count := int(binary.BigEndian.Uint32(buf[1:5]))

	off := nodeHeaderSize
	var prevKey []byte
	keyLen := d.KeyLen()
	pw := mode.pointerWidth()

	for i := 0; i < count; i++ {
		if off >= len(buf) {
			return nil, fmt.Errorf("%w: entry out of bounds", ErrCorruptIndex)
		}
		flags := buf[off]
		off++

		if flags&flagDummy != 0 {
			e := treeEntry{Dummy: true, Key: infinityKey(keyLen)}
			if !n.Leaf {
				e.Child = NodeNum(getUint(buf[off : off+pw]))
				off += pw
			}
			n.Entries = append(n.Entries, e)
			prevKey = e.Key
			continue
		}

		if flags&flagDupRun != 0 {
			e := treeEntry{Key: prevKey}
			if n.Leaf {
				e.RowID = RowID(binary.BigEndian.Uint64(buf[off : off+8]))
				off += 8
				e.DupNo = binary.BigEndian.Uint32(buf[off : off+4])
				off += 4
			} else {
				e.Child = NodeNum(getUint(buf[off : off+pw]))
				off += pw
			}
			n.Entries = append(n.Entries, e)
			continue
		}

		lead := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		storedLen := int(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
		stored := buf[off : off+storedLen]
		off += storedLen

		key := expandKey(keyLen, lead, stored, prevKey)

		e := treeEntry{Key: key}
		if n.Leaf {
			e.RowID = RowID(binary.BigEndian.Uint64(buf[off : off+8]))
			off += 8
			e.DupNo = binary.BigEndian.Uint32(buf[off : off+4])
			off += 4
		} else {
			e.Child = NodeNum(getUint(buf[off : off+pw]))
			off += pw
		}
		n.Entries = append(n.Entries, e)
		prevKey = key
	}

	if checksumAlg != AlgNone {
		sum := buf[len(buf)-checksumSize:]
		if !verifyChecksum(checksumAlg, buf[:off], sum) {
			return nil, fmt.Errorf("%w: node checksum mismatch", ErrCorruptIndex)
		}
	}
	return n, nil
}

// encodedNodeLen returns the byte length encodeNode would produce for n,
// counting every child pointer at 8 bytes (exact in ModeExtended, an upper
// bound in ModeCompat), without allocating the full node buffer — used to
// decide when a node must split.
func encodedNodeLen(n *treeNode, d *KeyDescriptor) int {
	const maxPtr = 8
	payload := maxPtr // child pointer
	if n.Leaf {
		payload = 8 + 4 // row id, dup_no
	}
	off := nodeHeaderSize
	var prevKey []byte
	for _, e := range n.Entries {
		if e.Dummy {
			off++
			if !n.Leaf {
				off += maxPtr
			}
			continue
		}
		if sameKey(prevKey, e.Key) && d.DupCompress {
			off += 1 + payload
			prevKey = e.Key
			continue
		}
		_, stored := compressKey(d, prevKey, e.Key)
		off += 1 + 2 + 2 + len(stored) + payload
		prevKey = e.Key
	}
	return off
}

func putUint(b []byte, v uint64) {
	switch len(b) {
	case 4:
		binary.BigEndian.PutUint32(b, uint32(v))
	case 8:
		binary.BigEndian.PutUint64(b, v)
	}
}

func getUint(b []byte) uint64 {
	switch len(b) {
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	case 8:
		return binary.BigEndian.Uint64(b)
	}
	return 0
}
