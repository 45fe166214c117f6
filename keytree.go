// Key-tree engine: search, insertion with split, deletion with
// redistribution/merge, and the bulk rebuild used by addindex/Recollate.
//
// Every node's rightmost entry is a dummy with key infinityKey(keyLen), so
// compareKeys naturally treats it as +infinity without a special case: a
// descent's "first entry whose key >= target" always terminates at or
// before the dummy. This is the same trick the teacher's scan helpers use —
// push the boundary condition into the comparison instead of branching
// around it.
package isam

import "fmt"

// treePos is a located cursor position: the path of node numbers from root
// to leaf (leaf last) and the entry index within the leaf.
type treePos struct {
	path []NodeNum
	idxs []int // child index taken at each interior level, len(path)-1 entries
	leaf *treeNode
	idx  int
}

func (t *Table) findChildIndex(n *treeNode, key []byte) int {
	for i, e := range n.Entries {
		if compareKeys(key, e.Key, t.collation) <= 0 {
			return i
		}
	}
	return len(n.Entries) - 1
}

// descend walks from the root to the leaf that would contain key.
func (t *Table) descend(ki int, key []byte) (*treePos, error) {
	root := t.keys[ki].RootNode
	pos := &treePos{}
	num := root
	for {
		n, err := t.readNode(ki, num)
		if err != nil {
			return nil, err
		}
		pos.path = append(pos.path, num)
		if n.Leaf {
			pos.leaf = n
			break
		}
		idx := t.findChildIndex(n, key)
		pos.idxs = append(pos.idxs, idx)
		num = n.Entries[idx].Child
	}
	return pos, nil
}

// leafFind returns the index of the first leaf entry whose key is >= key
// (or > key when strict is true). Always terminates at the dummy if no
// smaller entry qualifies.
func (t *Table) leafFind(leaf *treeNode, key []byte, strict bool) int {
	for i, e := range leaf.Entries {
		c := compareKeys(key, e.Key, t.collation)
		if strict {
			if c < 0 {
				return i
			}
		} else if c <= 0 {
			return i
		}
	}
	return len(leaf.Entries) - 1
}

// firstLeaf / lastLeaf follow leftmost / rightmost child pointers to the
// extreme leaf of key index ki.
func (t *Table) firstLeaf(ki int) (*treePos, error) {
	pos := &treePos{}
	num := t.keys[ki].RootNode
	for {
		n, err := t.readNode(ki, num)
		if err != nil {
			return nil, err
		}
		pos.path = append(pos.path, num)
		if n.Leaf {
			pos.leaf = n
			pos.idx = 0
			return pos, nil
		}
		pos.idxs = append(pos.idxs, 0)
		num = n.Entries[0].Child
	}
}

func (t *Table) lastLeaf(ki int) (*treePos, error) {
	pos := &treePos{}
	num := t.keys[ki].RootNode
	for {
		n, err := t.readNode(ki, num)
		if err != nil {
			return nil, err
		}
		pos.path = append(pos.path, num)
		if n.Leaf {
			pos.leaf = n
			// last non-dummy entry, or the dummy itself if the leaf is empty
			pos.idx = len(n.Entries) - 1
			for i := len(n.Entries) - 2; i >= 0; i-- {
				if !n.Entries[i].Dummy {
					pos.idx = i
					break
				}
			}
			return pos, nil
		}
		idx := len(n.Entries) - 1
		pos.idxs = append(pos.idxs, idx)
		num = n.Entries[idx].Child
	}
}

// find locates a cursor position for the given motion (Equal, Greater,
// GreaterOrEqual, First, Last) against key index ki.
func (t *Table) find(ki int, key []byte, motion ReadMode) (*treePos, bool, error) {
	kd := t.keys[ki]
	if kd.IsNull() {
		return nil, false, nil
	}
	switch motion {
	case First:
		pos, err := t.firstLeaf(ki)
		if err != nil {
			return nil, false, err
		}
		return pos, !pos.leaf.Entries[pos.idx].Dummy, nil
	case Last:
		pos, err := t.lastLeaf(ki)
		if err != nil {
			return nil, false, err
		}
		return pos, !pos.leaf.Entries[pos.idx].Dummy, nil
	case Equal:
		pos, err := t.descend(ki, key)
		if err != nil {
			return nil, false, err
		}
		pos.idx = t.leafFind(pos.leaf, key, false)
		e := pos.leaf.Entries[pos.idx]
		return pos, !e.Dummy && sameKey(e.Key, key), nil
	case Greater:
		pos, err := t.descend(ki, key)
		if err != nil {
			return nil, false, err
		}
		pos.idx = t.leafFind(pos.leaf, key, true)
		return pos, !pos.leaf.Entries[pos.idx].Dummy, nil
	case GreaterOrEqual:
		pos, err := t.descend(ki, key)
		if err != nil {
			return nil, false, err
		}
		pos.idx = t.leafFind(pos.leaf, key, false)
		return pos, !pos.leaf.Entries[pos.idx].Dummy, nil
	default:
		return nil, false, ErrBadArg
	}
}

// insert splices (key, rowID) into key index ki, assigning dup_no as
// max(existing dup_no for an equal key) + 1, or 0. Returns ErrKeyExists if
// the key already exists and duplicates are not allowed.
func (t *Table) insert(ki int, key []byte, rowID RowID) (uint32, error) {
	kd := t.keys[ki]
	if kd.IsNull() {
		return 0, nil
	}
	pos, err := t.descend(ki, key)
	if err != nil {
		return 0, err
	}
	leaf := pos.leaf
	idx := t.leafFind(leaf, key, false)

	var dupNo uint32
	if idx < len(leaf.Entries) && !leaf.Entries[idx].Dummy && sameKey(leaf.Entries[idx].Key, key) {
		if !kd.AllowDuplicates {
			return 0, ErrKeyExists
		}
		// advance past the run of equal keys to find max dup_no and the
		// correct insertion point (after the run, preserving (key, dup_no)
		// ascending order).
		maxDup := leaf.Entries[idx].DupNo
		j := idx + 1
		for j < len(leaf.Entries) && !leaf.Entries[j].Dummy && sameKey(leaf.Entries[j].Key, key) {
			if leaf.Entries[j].DupNo > maxDup {
				maxDup = leaf.Entries[j].DupNo
			}
			j++
		}
		dupNo = maxDup + 1
		idx = j
	}

	entry := treeEntry{Key: append([]byte(nil), key...), RowID: rowID, DupNo: dupNo}
	leaf.Entries = append(leaf.Entries, treeEntry{})
	copy(leaf.Entries[idx+1:], leaf.Entries[idx:])
	leaf.Entries[idx] = entry

	depth := len(pos.path)
	if err := t.splitPropagate(ki, pos, depth-1, leaf); err != nil {
		return 0, err
	}
	t.dict.Dirty = true
	return dupNo, nil
}

// splitPropagate writes n (the already-modified node at pos.path[nodeLevel])
// and, if it overflows the node size, splits it into two siblings and
// splices a new separator into the parent at nodeLevel-1, recursing upward.
// nodeLevel 0 is the root: a root split allocates a fresh root.
func (t *Table) splitPropagate(ki int, pos *treePos, nodeLevel int, n *treeNode) error {
	if encodedNodeLen(n, t.keys[ki]) <= t.config.NodeSize-checksumSize {
		return t.writeNode(ki, n)
	}

	real := n.Entries[:len(n.Entries)-1]
	dummy := n.Entries[len(n.Entries)-1]
	mid := len(real) / 2
	if mid == 0 {
		mid = 1 // a node with a single real entry still fits; this should
		// not be reachable in practice since a single entry never overflows
		// a node sized to hold many, but guards against an infinite split.
	}
	leftReal := real[:mid]
	rightReal := real[mid:]

	// The separator promoted to the parent is the key of the last entry
	// kept on the left — the largest key reachable through left. In an
	// interior node that same entry then becomes left's own local dummy: its
	// key becomes +infinity (nothing to its right remains in this node) but
	// its child is unchanged, since interior dummy entries carry a real
	// routing pointer. In a leaf it stays a real entry and a fresh dummy is
	// appended after it.
	separatorKey := append([]byte(nil), leftReal[len(leftReal)-1].Key...)

	newNum, err := t.allocNode()
	if err != nil {
		return err
	}

	left := &treeNode{Num: n.Num, Leaf: n.Leaf}
	if n.Leaf {
		left.Entries = append(append([]treeEntry{}, leftReal...), treeEntry{Dummy: true, Key: infinityKey(len(dummy.Key))})
	} else {
		lastChild := leftReal[len(leftReal)-1].Child
		left.Entries = append(append([]treeEntry{}, leftReal[:len(leftReal)-1]...),
			treeEntry{Dummy: true, Key: infinityKey(len(dummy.Key)), Child: lastChild})
	}

	right := &treeNode{Num: newNum, Leaf: n.Leaf}
	right.Entries = append(append([]treeEntry{}, rightReal...), dummy)

	if err := t.writeNode(ki, left); err != nil {
		return err
	}
	if err := t.writeNode(ki, right); err != nil {
		return err
	}

	if nodeLevel == 0 {
		rootNum, err := t.allocNode()
		if err != nil {
			return err
		}
		newRoot := &treeNode{Num: rootNum, Leaf: false}
		newRoot.Entries = []treeEntry{
			{Key: separatorKey, Child: left.Num},
			{Dummy: true, Key: infinityKey(len(separatorKey)), Child: right.Num},
		}
		t.keys[ki].RootNode = rootNum
		return t.writeNode(ki, newRoot)
	}

	parentLevel := nodeLevel - 1
	parent, err := t.readNode(ki, pos.path[parentLevel])
	if err != nil {
		return err
	}
	childIdx := pos.idxs[parentLevel]
	newEntry := treeEntry{Key: separatorKey, Child: left.Num}
	parent.Entries = append(parent.Entries, treeEntry{})
	copy(parent.Entries[childIdx+1:], parent.Entries[childIdx:])
	parent.Entries[childIdx] = newEntry
	parent.Entries[childIdx+1].Child = right.Num

	return t.splitPropagate(ki, pos, parentLevel, parent)
}

// leftLastKey returns the key that should separate left from its right
// sibling: the last real (non-dummy) entry's key.
func leftLastKey(n *treeNode) []byte {
	for i := len(n.Entries) - 1; i >= 0; i-- {
		if !n.Entries[i].Dummy {
			return n.Entries[i].Key
		}
	}
	return n.Entries[len(n.Entries)-1].Key
}

// minFill is the lower occupancy bound (in bytes) below which a leaf
// attempts redistribution or merge on deletion.
func (t *Table) minFill() int {
	return t.config.NodeSize / 4
}

// delete removes the (key, rowID) leaf entry for key index ki. dupNo
// disambiguates among equal keys; pass the exact dup_no the caller holds
// for the row being removed.
func (t *Table) delete(ki int, key []byte, rowID RowID, dupNo uint32) error {
	kd := t.keys[ki]
	if kd.IsNull() {
		return nil
	}
	pos, err := t.descend(ki, key)
	if err != nil {
		return err
	}
	leaf := pos.leaf
	found := -1
	for i, e := range leaf.Entries {
		if e.Dummy {
			break
		}
		if sameKey(e.Key, key) && e.DupNo == dupNo && e.RowID == rowID {
			found = i
			break
		}
	}
	if found < 0 {
		return fmt.Errorf("%w: key not found for delete", ErrNoRecord)
	}
	leaf.Entries = append(leaf.Entries[:found], leaf.Entries[found+1:]...)

	if err := t.writeNode(ki, leaf); err != nil {
		return err
	}
	t.dict.Dirty = true

	if len(pos.path) == 1 {
		return nil // leaf is the root; no underflow handling needed
	}
	if encodedNodeLen(leaf, kd) >= t.minFill() {
		return nil
	}
	return t.repairUnderflow(ki, pos, len(pos.path)-1, leaf)
}

// repairUnderflow attempts to redistribute with a sibling, else merges with
// one, recursing upward on parent underflow and collapsing the root when it
// is left with a single child.
func (t *Table) repairUnderflow(ki int, pos *treePos, level int, node *treeNode) error {
	if level == 0 {
		if !node.Leaf && len(node.Entries) == 1 {
			t.keys[ki].RootNode = node.Entries[0].Child
			return t.freeNode(node.Num)
		}
		return nil
	}
	parentLevel := level - 1
	parent, err := t.readNode(ki, pos.path[parentLevel])
	if err != nil {
		return err
	}
	childIdx := pos.idxs[parentLevel]

	if childIdx+1 < len(parent.Entries) {
		rightSib, err := t.readNode(ki, parent.Entries[childIdx+1].Child)
		if err != nil {
			return err
		}
		if encodedNodeLen(rightSib, t.keys[ki]) > t.minFill()*2 {
			return t.borrowFromRight(ki, pos, parentLevel, parent, childIdx, node, rightSib)
		}
	}
	if childIdx > 0 {
		leftSib, err := t.readNode(ki, parent.Entries[childIdx-1].Child)
		if err != nil {
			return err
		}
		if encodedNodeLen(leftSib, t.keys[ki]) > t.minFill()*2 {
			return t.borrowFromLeft(ki, pos, parentLevel, parent, childIdx, node, leftSib)
		}
		return t.mergeWithLeft(ki, pos, parentLevel, parent, childIdx, node, leftSib)
	}
	if childIdx+1 < len(parent.Entries) {
		rightSib, err := t.readNode(ki, parent.Entries[childIdx+1].Child)
		if err != nil {
			return err
		}
		return t.mergeWithRight(ki, pos, parentLevel, parent, childIdx, node, rightSib)
	}
	return nil // only child; nothing to merge with
}

// borrowFromRight moves rightSib's first entry to node. For a leaf this is
// a plain key/rowid splice. For an interior node, the moved entry's real
// Child cannot simply become a normal mid-entry next to node's own dummy:
// node's dummy already carries node's own rightmost routing child, and
// that child still covers real keys. So the old dummy is promoted to a
// real entry keyed at the old parent separator (its child is unchanged),
// and a new dummy is built around the borrowed entry's child instead —
// the same promotion/demotion splitPropagate uses when a split creates a
// new local dummy.
func (t *Table) borrowFromRight(ki int, pos *treePos, parentLevel int, parent *treeNode, childIdx int, node, rightSib *treeNode) error {
	moved := rightSib.Entries[0]
	rightSib.Entries = rightSib.Entries[1:]
	if node.Leaf {
		node.Entries = append(node.Entries[:len(node.Entries)-1], moved, node.Entries[len(node.Entries)-1])
		parent.Entries[childIdx].Key = append([]byte(nil), leftLastKey(node)...)
	} else {
		oldDummy := node.Entries[len(node.Entries)-1]
		promoted := treeEntry{Key: append([]byte(nil), parent.Entries[childIdx].Key...), Child: oldDummy.Child}
		newDummy := treeEntry{Dummy: true, Key: infinityKey(len(oldDummy.Key)), Child: moved.Child}
		node.Entries = append(node.Entries[:len(node.Entries)-1], promoted, newDummy)
		parent.Entries[childIdx].Key = append([]byte(nil), moved.Key...)
	}
	if err := t.writeNode(ki, node); err != nil {
		return err
	}
	if err := t.writeNode(ki, rightSib); err != nil {
		return err
	}
	return t.writeParentAfterRebalance(ki, pos, parentLevel, parent)
}

// borrowFromLeft is borrowFromRight's mirror: leftSib's last real entry
// (the one just before its own dummy) moves to the front of node. For an
// interior node, leftSib's dummy is demoted — its child becomes the child
// of the entry that used to precede it — and the moved entry is rebuilt
// around leftSib's old dummy child, keyed at the old parent separator, so
// it still routes the range that child previously covered.
func (t *Table) borrowFromLeft(ki int, pos *treePos, parentLevel int, parent *treeNode, childIdx int, node, leftSib *treeNode) error {
	n := len(leftSib.Entries)
	if node.Leaf {
		moved := leftSib.Entries[n-2] // last real entry (n-1 is left's own dummy)
		leftSib.Entries = append(leftSib.Entries[:n-2], leftSib.Entries[n-1])
		node.Entries = append([]treeEntry{moved}, node.Entries...)
		parent.Entries[childIdx-1].Key = append([]byte(nil), leftLastKey(leftSib)...)
	} else {
		oldLastReal := leftSib.Entries[n-2]
		oldDummy := leftSib.Entries[n-1]
		moved := treeEntry{Key: append([]byte(nil), parent.Entries[childIdx-1].Key...), Child: oldDummy.Child}
		newDummy := treeEntry{Dummy: true, Key: infinityKey(len(oldDummy.Key)), Child: oldLastReal.Child}
		leftSib.Entries = append(leftSib.Entries[:n-2], newDummy)
		node.Entries = append([]treeEntry{moved}, node.Entries...)
		parent.Entries[childIdx-1].Key = append([]byte(nil), oldLastReal.Key...)
	}
	if err := t.writeNode(ki, node); err != nil {
		return err
	}
	if err := t.writeNode(ki, leftSib); err != nil {
		return err
	}
	return t.writeParentAfterRebalance(ki, pos, parentLevel, parent)
}

// mergeWithLeft absorbs node's entries into leftSib, which keeps its node
// number. For an interior node, leftSib's dummy cannot simply be dropped:
// its child still routes the range between leftSib's last real key and
// the old parent separator. That dummy is promoted to a real entry keyed
// at the old separator before node's entries are appended, mirroring
// splitPropagate's dummy-promotion on the other side of a split.
func (t *Table) mergeWithLeft(ki int, pos *treePos, parentLevel int, parent *treeNode, childIdx int, node, leftSib *treeNode) error {
	if node.Leaf {
		leftReal := leftSib.Entries[:len(leftSib.Entries)-1]
		leftSib.Entries = append(leftReal, node.Entries...)
	} else {
		oldDummy := leftSib.Entries[len(leftSib.Entries)-1]
		promoted := treeEntry{Key: append([]byte(nil), parent.Entries[childIdx-1].Key...), Child: oldDummy.Child}
		leftReal := leftSib.Entries[:len(leftSib.Entries)-1]
		leftSib.Entries = append(append(leftReal, promoted), node.Entries...)
	}
	if err := t.writeNode(ki, leftSib); err != nil {
		return err
	}
	if err := t.freeNode(node.Num); err != nil {
		return err
	}
	// The entry at childIdx still carries the correct upper-bound key for
	// the merged content; only its child changes, from node (now freed) to
	// leftSib. The entry at childIdx-1, leftSib's old separator, is dropped.
	parent.Entries[childIdx].Child = leftSib.Num
	parent.Entries = append(parent.Entries[:childIdx-1], parent.Entries[childIdx:]...)
	return t.repairParent(ki, pos, parentLevel, parent)
}

// mergeWithRight absorbs rightSib's entries into node, which keeps its own
// node number. node's dummy is promoted the same way mergeWithLeft
// promotes leftSib's: its child still routes real keys up to the old
// parent separator, so it becomes a real entry instead of being dropped.
func (t *Table) mergeWithRight(ki int, pos *treePos, parentLevel int, parent *treeNode, childIdx int, node, rightSib *treeNode) error {
	if node.Leaf {
		nodeReal := node.Entries[:len(node.Entries)-1]
		node.Entries = append(nodeReal, rightSib.Entries...)
	} else {
		oldDummy := node.Entries[len(node.Entries)-1]
		promoted := treeEntry{Key: append([]byte(nil), parent.Entries[childIdx].Key...), Child: oldDummy.Child}
		nodeReal := node.Entries[:len(node.Entries)-1]
		node.Entries = append(append(nodeReal, promoted), rightSib.Entries...)
	}
	if err := t.writeNode(ki, node); err != nil {
		return err
	}
	if err := t.freeNode(rightSib.Num); err != nil {
		return err
	}
	// node keeps its own Num and now holds rightSib's content too; drop
	// rightSib's separator entry at childIdx+1.
	parent.Entries = append(parent.Entries[:childIdx+1], parent.Entries[childIdx+2:]...)
	return t.repairParent(ki, pos, parentLevel, parent)
}

func (t *Table) writeParentAfterRebalance(ki int, pos *treePos, parentLevel int, parent *treeNode) error {
	if err := t.writeNode(ki, parent); err != nil {
		return err
	}
	t.dict.Dirty = true
	return nil
}

// repairParent writes the (now possibly underflowing) parent and recurses.
func (t *Table) repairParent(ki int, pos *treePos, parentLevel int, parent *treeNode) error {
	if err := t.writeNode(ki, parent); err != nil {
		return err
	}
	t.dict.Dirty = true
	if parentLevel == 0 {
		return t.repairUnderflow(ki, pos, 0, parent)
	}
	if encodedNodeLen(parent, t.keys[ki]) >= t.minFill() {
		return nil
	}
	return t.repairUnderflow(ki, pos, parentLevel, parent)
}

// rebuildIndex discards the existing tree for key index ki and bulk-loads
// entries (already in ascending (key, dup_no) order) into a fresh leaf
// chain, used by addindex and Recollate.
func (t *Table) rebuildIndex(ki int, entries []treeEntry) error {
	kd := t.keys[ki]
	newRoot, err := t.allocNode()
	if err != nil {
		return err
	}
	keyLen := kd.KeyLen()
	leaf := &treeNode{Num: newRoot, Leaf: true, Entries: []treeEntry{{Dummy: true, Key: infinityKey(keyLen)}}}
	for _, e := range entries {
		leaf.Entries = append(leaf.Entries[:len(leaf.Entries)-1], e, leaf.Entries[len(leaf.Entries)-1])
	}
	kd.RootNode = newRoot
	pos := &treePos{path: []NodeNum{newRoot}, leaf: leaf}
	return t.splitPropagate(ki, pos, 0, leaf)
}
