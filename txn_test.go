package isam

import (
	"path/filepath"
	"testing"
)

func TestTxnCommitPersistsWrite(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Build(dir, "acct", 32, 32, testPrimary(), Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })

	sess, err := OpenSession(filepath.Join(dir, "acct.log"), 1)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	tbl.UseSession(sess)

	if err := tbl.BeginTxn(1); err != nil {
		t.Fatalf("BeginTxn: %v", err)
	}
	if _, err := tbl.Write(rowWithID(1), 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.CommitTxn(1); err != nil {
		t.Fatalf("CommitTxn: %v", err)
	}

	count := 0
	for row, err := range tbl.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		_ = row
		count++
	}
	if count != 1 {
		t.Fatalf("expected 1 row after commit, got %d", count)
	}
}

func TestTxnRollbackUndoesWrite(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Build(dir, "acct2", 32, 32, testPrimary(), Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })

	sess, err := OpenSession(filepath.Join(dir, "acct2.log"), 1)
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	tbl.UseSession(sess)

	if err := tbl.BeginTxn(1); err != nil {
		t.Fatalf("BeginTxn: %v", err)
	}
	if _, err := tbl.Write(rowWithID(1), 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.RollbackTxn(1); err != nil {
		t.Fatalf("RollbackTxn: %v", err)
	}

	for row, err := range tbl.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		t.Fatalf("expected no rows after rollback, got row %d", row.ID)
	}
}

func TestBeginTxnWithoutSessionFails(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	if err := tbl.BeginTxn(1); err != ErrNoLogging {
		t.Fatalf("expected ErrNoLogging, got %v", err)
	}
}
