package isam

import "testing"

func TestRecollateReordersLookups(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	for i := uint64(0); i < 20; i++ {
		if _, err := tbl.Write(rowWithID(i), 0); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}

	var reversed [256]byte
	for i := range reversed {
		reversed[i] = byte(255 - i)
	}
	if err := tbl.Recollate(reversed); err != nil {
		t.Fatalf("Recollate: %v", err)
	}

	// Every row must still be findable by its primary key after a full
	// recollation, just under the new ordering.
	for i := uint64(0); i < 20; i++ {
		key := rowWithID(i)[:8]
		id, _, err := tbl.Read(0, key, make([]byte, 32), Equal)
		if err != nil {
			t.Fatalf("Read(%d) after recollate: %v", i, err)
		}
		if id == 0 {
			t.Fatalf("Read(%d) after recollate returned no row", i)
		}
	}
}
