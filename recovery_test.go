package isam

import (
	"path/filepath"
	"testing"
)

func TestRecoverReplaysDurableInserts(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Build(dir, "orders", 32, 32, testPrimary(), Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logPath := filepath.Join(dir, "orders.log")
	sess, err := OpenSession(logPath, 1)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := sess.Begin(1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sess.append(opInsert, 1, encodeInsertPayload(1, rowWithID(1))); err != nil {
		t.Fatalf("append insert 1: %v", err)
	}
	if err := sess.append(opInsert, 1, encodeInsertPayload(2, rowWithID(2))); err != nil {
		t.Fatalf("append insert 2: %v", err)
	}
	if err := sess.Commit(1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close session: %v", err)
	}

	if err := Recover(dir, "orders", logPath, Config{}, nil); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	tbl2, err := Open(dir, "orders", false, Config{})
	if err != nil {
		t.Fatalf("Open after recover: %v", err)
	}
	t.Cleanup(func() { tbl2.Close() })

	count := 0
	for row, err := range tbl2.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		_ = row
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 recovered rows, got %d", count)
	}
}

func TestRecoverSkipsUncommittedTransaction(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Build(dir, "pending", 32, 32, testPrimary(), Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := tbl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	logPath := filepath.Join(dir, "pending.log")
	sess, err := OpenSession(logPath, 2)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if err := sess.Begin(1); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := sess.append(opInsert, 1, encodeInsertPayload(1, rowWithID(1))); err != nil {
		t.Fatalf("append insert: %v", err)
	}
	// No Commit: the transaction never reached its terminator, so Recover
	// must treat it as not durable and skip its mutation.
	if err := sess.Close(); err != nil {
		t.Fatalf("Close session: %v", err)
	}

	if err := Recover(dir, "pending", logPath, Config{}, nil); err != nil {
		t.Fatalf("Recover: %v", err)
	}

	tbl2, err := Open(dir, "pending", false, Config{})
	if err != nil {
		t.Fatalf("Open after recover: %v", err)
	}
	t.Cleanup(func() { tbl2.Close() })

	for row, err := range tbl2.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		t.Fatalf("expected no rows from an uncommitted transaction, got row %d", row.ID)
	}
}
