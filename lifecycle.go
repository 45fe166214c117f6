// Table lifecycle beyond build/open/close: erase, rename, and dynamic index
// management.
//
// addindex and delindex require the FILE_OPEN region held exclusively —
// the same exclusivity the teacher's CompactOptions rewrite demands before
// touching the whole file, generalized here to a metadata-only add/drop
// instead of a full rewrite since only the index file's key-descriptor
// chain and tree nodes change.
package isam

import (
	"fmt"
	"os"
)

// Erase deletes both files of a closed table. The caller must not hold an
// open handle to name.
func Erase(dir, name string) error {
	idxPath, datPath := paths(dir, name)
	if _, err := os.Stat(idxPath); err != nil {
		return ErrBadFile
	}
	if err := os.Remove(idxPath); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	if err := os.Remove(datPath); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	return nil
}

// Rename moves both files of a closed table to a new name. Fails with
// ErrExists if the destination is already in use.
func Rename(dir, oldName, newName string) error {
	oldIdx, oldDat := paths(dir, oldName)
	newIdx, newDat := paths(dir, newName)
	if _, err := os.Stat(newIdx); err == nil {
		return ErrExists
	}
	if err := os.Rename(oldIdx, newIdx); err != nil {
		return fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	if err := os.Rename(oldDat, newDat); err != nil {
		os.Rename(newIdx, oldIdx)
		return fmt.Errorf("%w: %v", ErrBadFile, err)
	}
	return nil
}

// AddIndex allocates a new root node, appends kd to the key-descriptor
// chain, and rebuilds it by scanning every live row.
func (t *Table) AddIndex(kd *KeyDescriptor) (int, error) {
	if err := t.ilock.Lock(regionFileOpen(), LockExclusive, true); err != nil {
		return 0, err
	}
	defer t.ilock.Unlock(regionFileOpen())

	if err := t.enter(LockExclusive, true); err != nil {
		return 0, err
	}
	defer t.exit()

	if len(t.keys) >= MaxSubs {
		return 0, ErrBadKey
	}
	if err := kd.validate(t.dict.MinRowLen); err != nil {
		return 0, err
	}

	ki := len(t.keys)
	t.keys = append(t.keys, kd)

	// Scan the data file directly rather than through Rows(): Rows takes
	// and releases PRIMARY itself, which would let another handle mutate
	// the table in the gap between that release and AddIndex's own
	// deferred exit, diverging the freshly built index from the rows it
	// was built from. scanLiveRows does the same walk without touching
	// the lock AddIndex is already holding for its whole duration.
	var entries []treeEntry
	var scanErr error
	t.scanLiveRows(func(row Row, err error) bool {
		if err != nil {
			scanErr = err
			return false
		}
		entries = append(entries, treeEntry{Key: makeKey(kd, row.Data), RowID: row.ID})
		return true
	})
	if scanErr != nil {
		return 0, scanErr
	}
	sortTreeEntries(entries, t.collation)
	assignDupNos(entries)

	if err := t.rebuildIndex(ki, entries); err != nil {
		return 0, err
	}
	if err := t.writeKeyDescChain(); err != nil {
		return 0, err
	}
	t.dict.Dirty = true
	return ki, nil
}

// DropIndex walks index ki's tree returning every node to the free list,
// then removes its key-descriptor record and shifts the remaining
// descriptors up. Index 0 (the primary key) cannot be dropped.
func (t *Table) DropIndex(ki int) error {
	if ki == 0 {
		return ErrIsPrimaryKey
	}
	if err := t.ilock.Lock(regionFileOpen(), LockExclusive, true); err != nil {
		return err
	}
	defer t.ilock.Unlock(regionFileOpen())

	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()

	if ki < 0 || ki >= len(t.keys) {
		return ErrBadArg
	}

	if err := t.freeSubtree(ki, t.keys[ki].RootNode); err != nil {
		return err
	}
	t.keys = append(t.keys[:ki], t.keys[ki+1:]...)
	if err := t.writeKeyDescChain(); err != nil {
		return err
	}
	t.dict.Dirty = true
	return nil
}

func (t *Table) freeSubtree(ki int, num NodeNum) error {
	n, err := t.readNode(ki, num)
	if err != nil {
		return err
	}
	if !n.Leaf {
		for _, e := range n.Entries {
			if err := t.freeSubtree(ki, e.Child); err != nil {
				return err
			}
		}
	}
	return t.freeNode(num)
}

// sortTreeEntries orders entries by (key, row id) ascending, the order a
// fresh bulk load expects before dup_no assignment.
func sortTreeEntries(entries []treeEntry, collation *[256]byte) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j-1], entries[j]
			c := compareKeys(a.Key, b.Key, collation)
			if c < 0 || (c == 0 && a.RowID <= b.RowID) {
				break
			}
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
}

// assignDupNos sets ascending dup_no within each run of equal keys.
func assignDupNos(entries []treeEntry) {
	var dup uint32
	for i := range entries {
		if i > 0 && sameKey(entries[i].Key, entries[i-1].Key) {
			dup++
		} else {
			dup = 0
		}
		entries[i].DupNo = dup
	}
}
