package isam

import "testing"

func TestDictionaryEncodeDecodeRoundTrip(t *testing.T) {
	d := &Dictionary{
		Magic:         dictionaryMagic,
		Mode:          ModeExtended,
		NodeSize:      4096,
		Checksum:      AlgXXHash3,
		KeyCount:      2,
		MinRowLen:     32,
		MaxRowLen:     64,
		KeyDescHead:   1,
		FreeNodeHead:  7,
		RowCount:      1000,
		NodeCount:     42,
		TxnCounter:    5,
		UniqueID:      9,
		HasCollation:  true,
		CollationNode: 3,
	}
	buf, err := d.encode(4096)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeDictionary(buf)
	if err != nil {
		t.Fatalf("decodeDictionary: %v", err)
	}
	if got.Mode != d.Mode || got.NodeSize != d.NodeSize || got.KeyCount != d.KeyCount ||
		got.MinRowLen != d.MinRowLen || got.MaxRowLen != d.MaxRowLen ||
		got.KeyDescHead != d.KeyDescHead || got.FreeNodeHead != d.FreeNodeHead ||
		got.RowCount != d.RowCount || got.NodeCount != d.NodeCount ||
		got.TxnCounter != d.TxnCounter || got.UniqueID != d.UniqueID ||
		got.HasCollation != d.HasCollation || got.CollationNode != d.CollationNode {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, d)
	}
}

func TestDecodeDictionaryRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 4096)
	if _, err := decodeDictionary(buf); err == nil {
		t.Fatal("expected error decoding an all-zero block")
	}
}
