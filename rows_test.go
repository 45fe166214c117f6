package isam

import "testing"

func TestRowsSkipsTombstonedSlots(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	var ids []RowID
	for _, id := range []uint64{1, 2, 3} {
		rid, err := tbl.Write(rowWithID(id), 0)
		if err != nil {
			t.Fatalf("Write(%d): %v", id, err)
		}
		ids = append(ids, rid)
	}
	if err := tbl.DeleteByID(ids[1], 0); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}

	var seen []RowID
	for row, err := range tbl.Rows() {
		if err != nil {
			t.Fatalf("Rows: %v", err)
		}
		seen = append(seen, row.ID)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 live rows, got %d", len(seen))
	}
	for _, id := range seen {
		if id == ids[1] {
			t.Fatal("expected deleted row to be skipped")
		}
	}
}

func TestRowsStopsOnEarlyBreak(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	for _, id := range []uint64{1, 2, 3, 4} {
		if _, err := tbl.Write(rowWithID(id), 0); err != nil {
			t.Fatalf("Write(%d): %v", id, err)
		}
	}

	count := 0
	for range tbl.Rows() {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Fatalf("expected iteration to stop at 2, got %d", count)
	}
}
