package isam

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSessionBeginTwiceFails(t *testing.T) {
	s, err := OpenSession(filepath.Join(t.TempDir(), "a.log"), 1)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Begin(1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin(2); err != ErrNoBegin {
		t.Fatalf("expected ErrNoBegin, got %v", err)
	}
}

func TestSessionCommitWithoutBeginFails(t *testing.T) {
	s, err := OpenSession(filepath.Join(t.TempDir(), "a.log"), 1)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Commit(1); err != ErrNoTransaction {
		t.Fatalf("expected ErrNoTransaction, got %v", err)
	}
}

func TestReadLogRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.log")
	s, err := OpenSession(path, 42)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Begin(100); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.append(opInsert, 101, []byte("payload")); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	rec, n, err := readLogRecord(raw)
	if err != nil {
		t.Fatalf("readLogRecord (BEGIN): %v", err)
	}
	if rec.Op != opBegin || rec.PID != 42 || rec.TS != 100 {
		t.Fatalf("unexpected BEGIN record: %+v", rec)
	}

	rec2, _, err := readLogRecord(raw[n:])
	if err != nil {
		t.Fatalf("readLogRecord (INSERT): %v", err)
	}
	if rec2.Op != opInsert || rec2.TS != 101 || string(rec2.Payload) != "payload" {
		t.Fatalf("unexpected INSERT record: %+v", rec2)
	}
}

func TestRollbackInvokesUndoInReverseOrder(t *testing.T) {
	s, err := OpenSession(filepath.Join(t.TempDir(), "a.log"), 1)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Begin(1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	var order []int
	s.recordUndo(func() error { order = append(order, 1); return nil })
	s.recordUndo(func() error { order = append(order, 2); return nil })
	s.recordUndo(func() error { order = append(order, 3); return nil })

	if err := s.Rollback(2); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Fatalf("expected reverse undo order, got %v", order)
	}
}
