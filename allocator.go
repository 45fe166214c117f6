// Free-node allocator and key-descriptor chain.
//
// allocNode/freeNode generalize the free-data-slot chain idiom described in
// the data model to index nodes: pop the chain head if non-empty, else grow
// the file by one block. freeNode zeroes the block and threads it onto the
// chain head, the same "pop head / push head" pattern the dictionary uses
// for the free-data-slot chain in datafile.go.
package isam

import "encoding/binary"

// allocNode pops the free-node chain head if non-empty, else extends the
// file by incrementing the node count. Marks the dictionary dirty.
func (t *Table) allocNode() (NodeNum, error) {
	if t.dict.FreeNodeHead != 0 {
		n := t.dict.FreeNodeHead
		raw, err := readBlock(t.idx, t.config.NodeSize, n)
		if err != nil {
			return 0, err
		}
		t.dict.FreeNodeHead = NodeNum(binary.BigEndian.Uint64(raw[0:8]))
		t.dict.Dirty = true
		return n, nil
	}
	t.dict.NodeCount++
	t.dict.Dirty = true
	return t.dict.NodeCount, nil
}

// freeNode zeroes node n and pushes it onto the free-node chain head.
func (t *Table) freeNode(n NodeNum) error {
	buf := make([]byte, t.config.NodeSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(t.dict.FreeNodeHead))
	if err := writeBlock(t.idx, t.config.NodeSize, n, buf); err != nil {
		return err
	}
	t.dict.FreeNodeHead = n
	t.dict.Dirty = true
	return nil
}

// keyDescChain is the on-disk encoding of the key-descriptor chain: a
// linked list of blocks, each packing one or more key-descriptor records
// plus a pointer to the next block.
const kdChainNextOffset = 0 // 8-byte NodeNum
const kdChainCountOffset = 8
const kdChainRecordsOffset = 9

// loadKeyDescChain reads every key descriptor reachable from the
// dictionary's chain head and populates t.keys.
func (t *Table) loadKeyDescChain() error {
	t.keys = nil
	node := t.dict.KeyDescHead
	for node != 0 {
		raw, err := readBlock(t.idx, t.config.NodeSize, node)
		if err != nil {
			return err
		}
		count := int(raw[kdChainCountOffset])
		off := kdChainRecordsOffset
		for i := 0; i < count; i++ {
			kd, n, err := decodeKeyDescriptor(raw[off:])
			if err != nil {
				return err
			}
			t.keys = append(t.keys, kd)
			off += n
		}
		node = NodeNum(binary.BigEndian.Uint64(raw[kdChainNextOffset:8]))
	}
	if t.dict.HasCollation {
		if err := t.loadCollation(); err != nil {
			return err
		}
	}
	return nil
}

// writeKeyDescChain rewrites the entire key-descriptor chain from t.keys,
// reusing existing chain blocks where possible and allocating new ones on
// overflow, then freeing any now-unused trailing blocks.
func (t *Table) writeKeyDescChain() error {
	var oldBlocks []NodeNum
	for n := t.dict.KeyDescHead; n != 0; {
		raw, err := readBlock(t.idx, t.config.NodeSize, n)
		if err != nil {
			return err
		}
		oldBlocks = append(oldBlocks, n)
		n = NodeNum(binary.BigEndian.Uint64(raw[kdChainNextOffset:8]))
	}

	type blockPlan struct {
		records [][]byte
	}
	var plans []blockPlan
	cur := blockPlan{}
	curSize := kdChainRecordsOffset
	for _, kd := range t.keys {
		enc := encodeKeyDescriptor(kd)
		if curSize+len(enc) > t.config.NodeSize-checksumSize && len(cur.records) > 0 {
			plans = append(plans, cur)
			cur = blockPlan{}
			curSize = kdChainRecordsOffset
		}
		cur.records = append(cur.records, enc)
		curSize += len(enc)
	}
	plans = append(plans, cur)

	blockNums := make([]NodeNum, len(plans))
	for i := range plans {
		if i < len(oldBlocks) {
			blockNums[i] = oldBlocks[i]
		} else {
			n, err := t.allocNode()
			if err != nil {
				return err
			}
			blockNums[i] = n
		}
	}
	for i := len(plans); i < len(oldBlocks); i++ {
		if err := t.freeNode(oldBlocks[i]); err != nil {
			return err
		}
	}

	for i, plan := range plans {
		buf := make([]byte, t.config.NodeSize)
		var next NodeNum
		if i+1 < len(blockNums) {
			next = blockNums[i+1]
		}
		binary.BigEndian.PutUint64(buf[0:8], uint64(next))
		buf[kdChainCountOffset] = byte(len(plan.records))
		off := kdChainRecordsOffset
		for _, rec := range plan.records {
			copy(buf[off:], rec)
			off += len(rec)
		}
		if err := writeBlock(t.idx, t.config.NodeSize, blockNums[i], buf); err != nil {
			return err
		}
	}

	t.dict.KeyDescHead = blockNums[0]
	t.dict.KeyCount = len(t.keys)
	t.dict.Dirty = true
	return nil
}

// encodeKeyDescriptor serialises one key descriptor: flags, part count,
// parts, root node.
func encodeKeyDescriptor(kd *KeyDescriptor) []byte {
	buf := make([]byte, 2+1+len(kd.Parts)*7+8)
	flags := byte(0)
	if kd.AllowDuplicates {
		flags |= 1
	}
	if kd.NullSuppress {
		flags |= 2
	}
	if kd.LeadingCompress {
		flags |= 4
	}
	if kd.TrailingCompress {
		flags |= 8
	}
	if kd.DupCompress {
		flags |= 16
	}
	buf[0] = flags
	buf[1] = byte(len(kd.Parts))
	off := 2
	for _, p := range kd.Parts {
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(p.Start))
		binary.BigEndian.PutUint16(buf[off+2:off+4], uint16(p.Length))
		buf[off+4] = byte(p.Type)
		if p.Descending {
			buf[off+5] = 1
		}
		off += 7
	}
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(kd.RootNode))
	off += 8
	return buf[:off]
}

func decodeKeyDescriptor(buf []byte) (*KeyDescriptor, int, error) {
	if len(buf) < 3 {
		return nil, 0, ErrBadFormat
	}
	flags := buf[0]
	count := int(buf[1])
	kd := &KeyDescriptor{
		AllowDuplicates:  flags&1 != 0,
		NullSuppress:     flags&2 != 0,
		LeadingCompress:  flags&4 != 0,
		TrailingCompress: flags&8 != 0,
		DupCompress:      flags&16 != 0,
	}
	off := 2
	for i := 0; i < count; i++ {
		if off+7 > len(buf) {
			return nil, 0, ErrBadFormat
		}
		p := KeyPart{
			Start:  int(binary.BigEndian.Uint16(buf[off : off+2])),
			Length: int(binary.BigEndian.Uint16(buf[off+2 : off+4])),
			Type:   PartType(buf[off+4]),
		}
		p.Descending = buf[off+5] != 0
		kd.Parts = append(kd.Parts, p)
		off += 7
	}
	if off+8 > len(buf) {
		return nil, 0, ErrBadFormat
	}
	kd.RootNode = NodeNum(binary.BigEndian.Uint64(buf[off : off+8]))
	off += 8
	return kd, off, nil
}

// readNode loads and decodes the node for key index ki.
func (t *Table) readNode(ki int, num NodeNum) (*treeNode, error) {
	raw, err := readBlock(t.idx, t.config.NodeSize, num)
	if err != nil {
		return nil, err
	}
	return decodeNode(raw, num, t.keys[ki], t.dict.Mode, t.config.ChecksumAlgorithm)
}

// writeNode encodes and writes n for key index ki. It does not split:
// callers split n first when its encoded form would overflow the node.
func (t *Table) writeNode(ki int, n *treeNode) error {
	buf, err := encodeNode(n, t.keys[ki], t.dict.Mode, t.config.ChecksumAlgorithm, t.config.NodeSize)
	if err != nil {
		return err
	}
	return writeBlock(t.idx, t.config.NodeSize, n.Num, buf)
}
