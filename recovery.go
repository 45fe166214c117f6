// Crash recovery: forward log replay.
//
// Recover scans the log once, classifies each transaction as durable or
// not by probing ahead for its terminator, and re-applies durable
// operations using the forced-allocate primitives so a row id logged
// before the crash lands back on the same id rather than wherever the
// natural allocator would put it next — the idempotence property that
// lets Recover run twice over the same log with the same result.
package isam

import (
	"fmt"
	"os"
)

// Trace, if non-nil, receives one line per replayed or skipped record —
// useful for tests and operational logging, never required for
// correctness.
type Trace func(string)

// Recover replays logPath against the table named, rooted at dir, opening
// it once and closing it on return. One log is written by one table's
// Session, so — unlike BUILD/OPEN, which this trimmed log format does not
// record — there is never an ambiguity about which table a mutation record
// belongs to.
func Recover(dir, name, logPath string, cfg Config, trace Trace) error {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLogRead, err)
	}

	tbl, err := Open(dir, name, true, cfg)
	if err != nil {
		return err
	}
	defer tbl.Close()

	type txn struct {
		durable bool
	}
	begins := make(map[int]*txn) // by index of the BEGIN record
	live := make(map[int]*txn)   // by pid: the transaction its latest BEGIN opened

	trc := func(msg string) {
		if trace != nil {
			trace(msg)
		}
	}

	offset := 0
	var records []*logRecord
	for offset < len(data) {
		rec, n, err := readLogRecord(data[offset:])
		if err != nil {
			return err
		}
		records = append(records, rec)
		offset += n
	}

	// Pass 1: classify every BEGIN by scanning forward for its terminator.
	for i, rec := range records {
		if rec.Op != opBegin {
			continue
		}
		t := &txn{}
		begins[i] = t
		for j := i + 1; j < len(records); j++ {
			if records[j].PID != rec.PID {
				continue
			}
			if records[j].Op == opCommit {
				t.durable = true
			}
			if records[j].Op == opCommit || records[j].Op == opRollback {
				break
			}
		}
	}

	for i, rec := range records {
		if rec.Op == opBegin {
			live[rec.PID] = begins[i]
		}
		if t, ok := live[rec.PID]; ok && rec.Op != opBegin && rec.Op != opCommit && rec.Op != opRollback {
			if !t.durable {
				trc(fmt.Sprintf("skip record %d: pid %d transaction not durable", i, rec.PID))
				continue
			}
		}

		switch rec.Op {
		case opInsert:
			id, row, err := decodeInsertPayload(rec.Payload)
			if err != nil {
				return err
			}
			if err := tbl.replayInsert(id, row); err != nil {
				return err
			}
			trc(fmt.Sprintf("record %d: replayed insert row %d", i, id))
		case opDelete:
			id, _, err := decodeDeletePayload(rec.Payload)
			if err != nil {
				return err
			}
			if err := tbl.replayDelete(id); err != nil {
				trc(fmt.Sprintf("record %d: delete row %d: %v", i, id, err))
			} else {
				trc(fmt.Sprintf("record %d: replayed delete row %d", i, id))
			}
		case opUpdate:
			id, _, newRow, err := decodeUpdatePayload(rec.Payload)
			if err != nil {
				return err
			}
			if err := tbl.replayUpdate(id, newRow); err != nil {
				trc(fmt.Sprintf("record %d: update row %d: %v", i, id, err))
			} else {
				trc(fmt.Sprintf("record %d: replayed update row %d", i, id))
			}
		}
	}

	return nil
}

// replayInsert force-allocates id and re-derives every index entry, used
// instead of Write so the row lands on the logged id rather than a freshly
// allocated one. A slot already live at id was filled by an earlier run (or
// reached the data file before the crash) and is left as it is.
func (t *Table) replayInsert(id RowID, row []byte) error {
	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()
	if int64(id) <= t.dict.RowCount {
		if _, deleted, err := t.readRow(id); err == nil && !deleted {
			return nil
		}
	}
	_, err := t.reinsertAt(id, row)
	return err
}

func (t *Table) replayDelete(id RowID) error {
	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()
	return t.deleteByID(id, 0, true)
}

func (t *Table) replayUpdate(id RowID, newRow []byte) error {
	if err := t.enter(LockExclusive, true); err != nil {
		return err
	}
	defer t.exit()
	if err := t.deleteByID(id, 0, true); err != nil {
		return err
	}
	_, err := t.reinsertAt(id, newRow)
	return err
}
