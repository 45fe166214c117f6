// Collation table management and full-table recollation.
//
// A collation table remaps the 256 possible byte values before comparison
// (compareKeys in keycodec.go), letting a table order keys by something
// other than raw byte value (e.g. case-insensitive or locale ordering).
// Recollate generalizes the teacher's Rehash — walk every record, recompute
// a derived value, patch it in place — to walking every key tree and
// reinserting every entry under the new ordering, since unlike a hash
// algorithm swap a collation change can move entries to different nodes
// entirely.
package isam

import "fmt"

// loadCollation reads the 256-byte collation table from its dedicated node
// into t.collation.
func (t *Table) loadCollation() error {
	raw, err := readBlock(t.idx, t.config.NodeSize, t.dict.CollationNode)
	if err != nil {
		return err
	}
	if len(raw) < 256 {
		return fmt.Errorf("%w: collation table truncated", ErrBadCollation)
	}
	var table [256]byte
	copy(table[:], raw[:256])
	t.collation = &table
	return nil
}

func (t *Table) writeCollation() error {
	if t.dict.CollationNode == 0 {
		n, err := t.allocNode()
		if err != nil {
			return err
		}
		t.dict.CollationNode = n
	}
	buf := make([]byte, t.config.NodeSize)
	copy(buf, t.collation[:])
	return writeBlock(t.idx, t.config.NodeSize, t.dict.CollationNode, buf)
}

// Recollate installs a new 256-byte collation table and rebuilds every key
// tree under it. Requires the FILE_OPEN region held exclusively, matching
// addindex/delindex's exclusivity requirement.
func (t *Table) Recollate(table [256]byte) error {
	if err := t.ilock.Lock(regionFileOpen(), LockExclusive, true); err != nil {
		return err
	}
	defer t.ilock.Unlock(regionFileOpen())

	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()

	t.collation = &table
	t.dict.HasCollation = true
	if err := t.writeCollation(); err != nil {
		return err
	}
	t.dict.Dirty = true

	for ki, kd := range t.keys {
		if kd.IsNull() {
			continue
		}
		entries, err := t.collectLeafEntries(ki)
		if err != nil {
			return err
		}
		sortTreeEntries(entries, t.collation)
		assignDupNos(entries)
		if err := t.rebuildIndex(ki, entries); err != nil {
			return err
		}
	}
	return nil
}

// collectLeafEntries returns every non-dummy leaf entry for key index ki in
// on-disk order. Used by Recollate; AddIndex builds its entries by scanning
// the data file instead.
func (t *Table) collectLeafEntries(ki int) ([]treeEntry, error) {
	var out []treeEntry
	var walk func(num NodeNum) error
	walk = func(num NodeNum) error {
		n, err := t.readNode(ki, num)
		if err != nil {
			return err
		}
		for _, e := range n.Entries {
			if e.Dummy {
				continue
			}
			if n.Leaf {
				out = append(out, e)
			} else if err := walk(e.Child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.keys[ki].RootNode); err != nil {
		return nil, err
	}
	return out, nil
}
