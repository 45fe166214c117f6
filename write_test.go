package isam

import (
	"encoding/binary"
	"testing"
)

func mustOpenTable(t *testing.T, cfg Config) *Table {
	t.Helper()
	dir := t.TempDir()
	tbl, err := Build(dir, "rows", 32, 32, testPrimary(), cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func rowWithID(id uint64) []byte {
	row := make([]byte, 32)
	binary.BigEndian.PutUint64(row[:8], id)
	binary.BigEndian.PutUint64(row[8:16], id)
	copy(row[16:], "payload-data")
	return row
}

func TestWriteAndReadByID(t *testing.T) {
	tbl := mustOpenTable(t, Config{})

	id, err := tbl.Write(rowWithID(1), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	row, deleted, err := tbl.readRow(id)
	if err != nil {
		t.Fatalf("readRow: %v", err)
	}
	if deleted {
		t.Fatal("row reported deleted immediately after write")
	}
	if string(row[16:28]) != "payload-data" {
		t.Fatalf("unexpected row payload: %q", row[16:28])
	}
}

func TestWriteRejectsWrongLength(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	if _, err := tbl.Write(make([]byte, 5), 0); err == nil {
		t.Fatal("expected error writing a short row")
	}
}

func TestDeleteThenReadFails(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	id, err := tbl.Write(rowWithID(2), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := tbl.DeleteByID(id, 0); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if _, _, err := tbl.Read(0, rowWithID(2)[:8], make([]byte, 32), Equal); err == nil {
		t.Fatal("expected error reading a deleted row by key")
	}
}

func TestRewriteUpdatesPayload(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	id, err := tbl.Write(rowWithID(3), 0)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	newRow := rowWithID(3)
	copy(newRow[16:], "updated-data")
	if err := tbl.RewriteByID(id, newRow, 0); err != nil {
		t.Fatalf("RewriteByID: %v", err)
	}
	row, _, err := tbl.readRow(id)
	if err != nil {
		t.Fatalf("readRow: %v", err)
	}
	if string(row[16:28]) != "updated-data" {
		t.Fatalf("unexpected row payload after rewrite: %q", row[16:28])
	}
}

func TestManyInsertsTriggerSplits(t *testing.T) {
	tbl := mustOpenTable(t, Config{NodeSize: 256})
	const n = 500
	ids := make([]RowID, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := tbl.Write(rowWithID(i), 0)
		if err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
		ids = append(ids, id)
	}

	count := 0
	for row, err := range tbl.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		_ = row
		count++
	}
	if count != n {
		t.Fatalf("expected %d live rows, got %d", n, count)
	}
}
