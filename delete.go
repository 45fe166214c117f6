// Row deletion.
//
// Delete locates a row by row id, removes it from every index, tombstones
// the data slot, and frees it. The slot is freed at once, inside a
// transaction too; a rollback re-inserts the row at the same row id through
// the undo closure recorded with the session.
package isam

import "fmt"

// DeleteByID removes the row at id from every index and tombstones its
// data slot.
func (t *Table) DeleteByID(id RowID, ts int64) error {
	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()
	return t.deleteByID(id, ts, true)
}

// deleteByID performs the delete; free controls whether the data slot is
// freed. DeleteByID always passes true, inside a transaction as well, and
// the undo closure re-inserts the row on rollback.
func (t *Table) deleteByID(id RowID, ts int64, free bool) error {
	row, deleted, err := t.readRow(id)
	if err != nil {
		return err
	}
	if deleted {
		return ErrNoRecord
	}
	row = append([]byte(nil), row...)

	type removed struct {
		ki    int
		key   []byte
		dupNo uint32
	}
	var done []removed

	for ki, kd := range t.keys {
		if kd.IsNull() {
			continue
		}
		key := makeKey(kd, row)
		dupNo, err := t.findDupNo(ki, key, id)
		if err != nil {
			return err
		}
		if err := t.delete(ki, key, id, dupNo); err != nil {
			return err
		}
		done = append(done, removed{ki: ki, key: key, dupNo: dupNo})
	}

	if free {
		if err := t.freeRow(id); err != nil {
			return err
		}
	}

	if t.session != nil {
		payload := encodeDeletePayload(id, row)
		if err := t.session.append(opDelete, ts, payload); err != nil {
			return err
		}
		t.session.markDirty()
		rid, rowCopy := id, row
		t.session.recordUndo(func() error {
			_, err := t.reinsertAt(rid, rowCopy)
			return err
		})
	}
	return nil
}

// findDupNo locates the dup_no of the leaf entry for (key, id) in key index
// ki, needed because deletion must name the exact duplicate being removed.
func (t *Table) findDupNo(ki int, key []byte, id RowID) (uint32, error) {
	pos, err := t.descend(ki, key)
	if err != nil {
		return 0, err
	}
	for _, e := range pos.leaf.Entries {
		if e.Dummy {
			break
		}
		if sameKey(e.Key, key) && e.RowID == id {
			return e.DupNo, nil
		}
	}
	return 0, fmt.Errorf("%w: row not found in index", ErrNoRecord)
}

// reinsertAt restores row at id after a rollback, reusing the same row id
// and rebuilding every index entry for it. id's slot must still be free.
func (t *Table) reinsertAt(id RowID, row []byte) (RowID, error) {
	if err := t.forceAllocate(id); err != nil {
		return 0, err
	}
	for ki, kd := range t.keys {
		if kd.IsNull() {
			continue
		}
		if _, err := t.insert(ki, makeKey(kd, row), id); err != nil {
			return 0, err
		}
	}
	if err := t.writeRow(id, row); err != nil {
		return 0, err
	}
	return id, nil
}

// encodeDeletePayload packs the row id and a compressed before-image of the
// deleted row. Recovery replays the delete by row id; rollback restores the
// row from the undo closure's in-memory copy, not from this image.
func encodeDeletePayload(id RowID, row []byte) []byte {
	image := []byte(compress(row))
	buf := make([]byte, 8+len(image))
	putUint(buf[:8], uint64(id))
	copy(buf[8:], image)
	return buf
}

func decodeDeletePayload(payload []byte) (RowID, []byte, error) {
	if len(payload) < 8 {
		return 0, nil, fmt.Errorf("%w: short delete record", ErrBadLog)
	}
	row, err := decompress(string(payload[8:]))
	if err != nil {
		return 0, nil, err
	}
	return RowID(getUint(payload[:8])), row, nil
}
