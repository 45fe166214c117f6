// Positional and keyed row access.
//
// Start positions the active-key cursor without fetching a row (used for a
// partial-key seek); Read positions and then fetches, optionally taking a
// row lock at the located row id.
package isam

// Start positions the cursor for key index ki using mode's motion, built
// from a possibly-partial key prefix (partialKey fills the remainder per
// the seek rule: 0x00 padding for Equal/GreaterOrEqual, 0xFF for Greater
// with a short prefix).
func (t *Table) Start(ki int, prefix []byte, mode ReadMode) error {
	if err := t.enter(LockShared, mode.wantsWait()); err != nil {
		return err
	}
	defer t.exit()

	kd := t.keys[ki]
	motion := mode.motion()
	var key []byte
	if motion != First && motion != Last {
		key = partialKey(kd, prefix, motion == Greater)
	}

	pos, found, err := t.find(ki, key, motion)
	if err != nil {
		return err
	}
	t.cursor.reset(ki)
	if pos == nil {
		return ErrEndOfFile
	}
	if !found && motion != Greater && motion != GreaterOrEqual {
		t.cursor.settle(0, true)
		return ErrEndOfFile
	}
	e := pos.leaf.Entries[pos.idx]
	t.cursor.settle(e.RowID, true)
	return nil
}

// Read positions the active-key cursor per mode and fetches the located
// row. find supports First, Last, Equal, Greater and GreaterOrEqual; Next,
// Prev and Current are not supported and return ErrBadArg. With SkipLock, a
// row whose lock cannot be acquired is not read: Read returns ErrLocked and
// leaves the cursor on that row, without advancing to the next entry.
func (t *Table) Read(ki int, key []byte, buf []byte, mode ReadMode) (RowID, int, error) {
	if err := t.enter(LockShared, mode.wantsWait()); err != nil {
		return 0, 0, err
	}
	defer t.exit()

	motion := mode.motion()
	pos, found, err := t.find(ki, key, motion)
	if err != nil {
		return 0, 0, err
	}
	if pos == nil || (!found && motion != Greater && motion != GreaterOrEqual) {
		return 0, 0, ErrEndOfFile
	}

	e := pos.leaf.Entries[pos.idx]
	id := e.RowID

	if mode.wantsLock() || mode.wantsSkipLock() {
		lockErr := t.acquireRowLock(id, LockShared, mode.wantsWait())
		if lockErr != nil {
			if mode.wantsSkipLock() {
				t.cursor.settle(id, false)
				return 0, 0, ErrLocked
			}
			return 0, 0, lockErr
		}
	}

	row, deleted, err := t.readRow(id)
	if err != nil {
		return 0, 0, err
	}
	if deleted {
		return 0, 0, ErrNoRecord
	}
	n := copy(buf, row)
	t.cursor.settle(id, motion == Equal || motion == First || motion == Last)
	return id, n, nil
}
