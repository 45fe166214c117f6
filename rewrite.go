// Row update.
//
// RewriteByID replaces a row's bytes in place: for every key whose derived
// value changed, the old entry is deleted and the new one inserted; the row
// bytes are patched last. The UPDATE log record carries both images;
// recovery replays the new one, and rollback restores the old one from the
// undo closure's in-memory copy.
package isam

import "fmt"

// RewriteByID replaces the row at id with newRow.
func (t *Table) RewriteByID(id RowID, newRow []byte, ts int64) error {
	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()

	if err := t.validateRowLen(newRow); err != nil {
		return err
	}

	oldRow, deleted, err := t.readRow(id)
	if err != nil {
		return err
	}
	if deleted {
		return ErrNoRecord
	}
	oldRow = append([]byte(nil), oldRow...)

	type swapped struct {
		ki           int
		oldKey       []byte
		oldDup       uint32
		insertedKey  []byte
		insertedDup  uint32
		didInsertNew bool
	}
	var done []swapped
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			d := done[i]
			if d.didInsertNew {
				t.delete(d.ki, d.insertedKey, id, d.insertedDup)
			}
			t.insert(d.ki, d.oldKey, id)
		}
	}

	for ki, kd := range t.keys {
		if kd.IsNull() {
			continue
		}
		oldKey := makeKey(kd, oldRow)
		newKey := makeKey(kd, newRow)
		if sameKey(oldKey, newKey) {
			continue
		}
		dupNo, err := t.findDupNo(ki, oldKey, id)
		if err != nil {
			rollback()
			return err
		}
		if err := t.delete(ki, oldKey, id, dupNo); err != nil {
			rollback()
			return err
		}
		newDup, err := t.insert(ki, newKey, id)
		if err != nil {
			done = append(done, swapped{ki: ki, oldKey: oldKey, oldDup: dupNo})
			rollback()
			return err
		}
		done = append(done, swapped{ki: ki, oldKey: oldKey, oldDup: dupNo, insertedKey: newKey, insertedDup: newDup, didInsertNew: true})
	}

	if err := t.writeRow(id, newRow); err != nil {
		rollback()
		return err
	}

	if t.session != nil {
		payload := encodeUpdatePayload(id, oldRow, newRow)
		if err := t.session.append(opUpdate, ts, payload); err != nil {
			return err
		}
		t.session.markDirty()
		rid, before := id, oldRow
		t.session.recordUndo(func() error {
			return t.RewriteByID(rid, before, ts)
		})
	}
	return nil
}

// encodeUpdatePayload packs row id, the compressed before-image's length,
// the before-image itself, and the new row as written (uncompressed, since
// it is the table's current content rather than a rollback-only image).
func encodeUpdatePayload(id RowID, oldRow, newRow []byte) []byte {
	before := []byte(compress(oldRow))
	buf := make([]byte, 8+4+len(before)+len(newRow))
	putUint(buf[:8], uint64(id))
	putUint32(buf[8:12], uint32(len(before)))
	copy(buf[12:], before)
	copy(buf[12+len(before):], newRow)
	return buf
}

func decodeUpdatePayload(payload []byte) (id RowID, oldRow, newRow []byte, err error) {
	if len(payload) < 12 {
		return 0, nil, nil, fmt.Errorf("%w: short update record", ErrBadLog)
	}
	id = RowID(getUint(payload[:8]))
	beforeLen := int(getUint32(payload[8:12]))
	if 12+beforeLen > len(payload) {
		return 0, nil, nil, fmt.Errorf("%w: truncated update record", ErrBadLog)
	}
	oldRow, err = decompress(string(payload[12 : 12+beforeLen]))
	if err != nil {
		return 0, nil, nil, err
	}
	newRow = payload[12+beforeLen:]
	return id, oldRow, newRow, nil
}

func putUint32(b []byte, v uint32) { putUint(b, uint64(v)) }
func getUint32(b []byte) uint32    { return uint32(getUint(b)) }
