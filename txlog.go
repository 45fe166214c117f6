// Write-ahead log and the per-process transaction session.
//
// Generalizes the teacher's append-then-patch write discipline (write.go:
// append new bytes, then patch a fixed-offset pointer field to splice them
// in) to a durable log: every mutation appends a fixed-header record before
// touching the index/data files, and begin/commit/rollback bracket a run of
// such records the way the teacher's db.go state machine brackets a run of
// in-process readers/writers.
package isam

import (
	"encoding/binary"
	"fmt"
	"os"
)

// txnState is the process-wide transaction state described by the data
// model: none, begin, need-flush, commit, rollback, recover.
type txnState int

const (
	txnNone txnState = iota
	txnBegin
	txnNeedFlush
	txnCommit
	txnRollback
	txnRecover
)

// Log operation codes.
type opCode uint16

const (
	opBuild opCode = iota + 1
	opOpen
	opClose
	opErase
	opRename
	opInsert
	opUpdate
	opDelete
	opCreIndex
	opDelIndex
	opCluster
	opSetUnique
	opUniqueID
	opBegin
	opCommit
	opRollback
)

const logHeaderSize = 4 + 2 + 4 + 8 // length, opcode, pid, timestamp
const logTrailerSize = 4

// Session is a process-wide transaction context shared by every table
// handle attached to it with UseSession. One Session wraps one log file.
type Session struct {
	state txnState
	pid   int
	log   *os.File
	path  string

	// undo is the LIFO list of in-memory inverse actions recorded since the
	// last BEGIN, invoked in reverse order by Rollback.
	undo []func() error
}

// OpenSession opens or creates the log file at path and returns a Session
// in state none.
func OpenSession(path string, pid int) (*Session, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLogOpen, err)
	}
	return &Session{pid: pid, log: f, path: path}, nil
}

func (s *Session) Close() error {
	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	return err
}

// append writes one log record at the end of the log. Its timestamp is
// supplied by the caller rather than computed internally: the engine never
// reads the wall clock itself, so every append takes an explicit timestamp.
func (s *Session) append(op opCode, ts int64, payload []byte) error {
	if s.log == nil {
		return ErrNoLogging
	}
	total := logHeaderSize + len(payload) + logTrailerSize
	buf := make([]byte, total)
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint16(buf[4:6], uint16(op))
	binary.BigEndian.PutUint32(buf[6:10], uint32(s.pid))
	binary.BigEndian.PutUint64(buf[10:18], uint64(ts))
	copy(buf[logHeaderSize:], payload)
	binary.BigEndian.PutUint32(buf[total-4:total], uint32(total))

	if _, err := s.log.Seek(0, 2); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	if _, err := s.log.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	return nil
}

// Begin writes a BEGIN record and enters state begin. Fails with ErrNoBegin
// if a transaction is already open.
func (s *Session) Begin(ts int64) error {
	if s.state == txnBegin || s.state == txnNeedFlush {
		return ErrNoBegin
	}
	if err := s.append(opBegin, ts, nil); err != nil {
		return err
	}
	s.state = txnBegin
	s.undo = nil
	return nil
}

// markDirty records that a mutation has been logged since BEGIN, moving the
// session to need-flush.
func (s *Session) markDirty() {
	if s.state == txnBegin {
		s.state = txnNeedFlush
	}
}

// recordUndo registers fn to be invoked, in LIFO order, on Rollback.
func (s *Session) recordUndo(fn func() error) {
	s.undo = append(s.undo, fn)
}

// Commit writes a COMMIT record, flushes the log to stable storage, and
// releases every row lock held by each table passed in.
func (s *Session) Commit(ts int64, tables ...*Table) error {
	if s.state != txnBegin && s.state != txnNeedFlush {
		return ErrNoTransaction
	}
	if err := s.append(opCommit, ts, nil); err != nil {
		return err
	}
	if err := s.log.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrLogWrite, err)
	}
	for _, t := range tables {
		t.rowLocks.releaseAll(t)
	}
	s.state = txnNone
	s.undo = nil
	return nil
}

// Rollback writes a ROLLBACK record and invokes every recorded undo action
// in reverse order, then releases row locks.
func (s *Session) Rollback(ts int64, tables ...*Table) error {
	if s.state != txnBegin && s.state != txnNeedFlush {
		return ErrNoTransaction
	}
	if err := s.append(opRollback, ts, nil); err != nil {
		return err
	}
	var firstErr error
	for i := len(s.undo) - 1; i >= 0; i-- {
		if err := s.undo[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, t := range tables {
		t.rowLocks.releaseAll(t)
	}
	s.state = txnNone
	s.undo = nil
	return firstErr
}

// logRecord is the decoded form of one record read back during a log scan
// (used by recovery.go).
type logRecord struct {
	Op      opCode
	PID     int
	TS      int64
	Payload []byte
}

// readLogRecord decodes one record starting at the beginning of buf and
// returns its total on-disk length.
func readLogRecord(buf []byte) (*logRecord, int, error) {
	if len(buf) < logHeaderSize+logTrailerSize {
		return nil, 0, fmt.Errorf("%w: short record", ErrBadLog)
	}
	total := int(binary.BigEndian.Uint32(buf[0:4]))
	if total < logHeaderSize+logTrailerSize || total > len(buf) {
		return nil, 0, fmt.Errorf("%w: bad record length", ErrBadLog)
	}
	r := &logRecord{
		Op:      opCode(binary.BigEndian.Uint16(buf[4:6])),
		PID:     int(binary.BigEndian.Uint32(buf[6:10])),
		TS:      int64(binary.BigEndian.Uint64(buf[10:18])),
		Payload: buf[logHeaderSize : total-logTrailerSize],
	}
	return r, total, nil
}
