package isam

import (
	"errors"
	"testing"
)

func TestNodeEncodeDecodeRoundTrip(t *testing.T) {
	kd := &KeyDescriptor{
		Parts:            []KeyPart{{Start: 0, Length: 8, Type: Char}},
		LeadingCompress:  true,
		TrailingCompress: true,
		DupCompress:      true,
	}
	keyLen := kd.KeyLen()

	n := &treeNode{
		Num:  5,
		Leaf: true,
		Entries: []treeEntry{
			{Key: []byte("aaaaaaaa"), RowID: 1, DupNo: 0},
			{Key: []byte("aaaaaaab"), RowID: 2, DupNo: 0},
			{Key: []byte("aaaaaaab"), RowID: 3, DupNo: 1},
			{Dummy: true, Key: infinityKey(keyLen)},
		},
	}

	buf, err := encodeNode(n, kd, ModeExtended, AlgXXHash3, 4096)
	if err != nil {
		t.Fatalf("encodeNode: %v", err)
	}
	got, err := decodeNode(buf, 5, kd, ModeExtended, AlgXXHash3)
	if err != nil {
		t.Fatalf("decodeNode: %v", err)
	}
	if len(got.Entries) != len(n.Entries) {
		t.Fatalf("expected %d entries, got %d", len(n.Entries), len(got.Entries))
	}
	for i, e := range n.Entries {
		ge := got.Entries[i]
		if e.Dummy != ge.Dummy || e.RowID != ge.RowID || e.DupNo != ge.DupNo {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, ge, e)
		}
		if !e.Dummy && string(ge.Key) != string(e.Key) {
			t.Fatalf("entry %d key mismatch: got %q, want %q", i, ge.Key, e.Key)
		}
	}
}

func TestNodeChecksumDetectsCorruption(t *testing.T) {
	kd := &KeyDescriptor{Parts: []KeyPart{{Start: 0, Length: 4, Type: Char}}}
	n := &treeNode{
		Num:  1,
		Leaf: true,
		Entries: []treeEntry{
			{Key: []byte("abcd"), RowID: 1},
			{Dummy: true, Key: infinityKey(4)},
		},
	}
	buf, err := encodeNode(n, kd, ModeCompat, AlgFNV1a, 256)
	if err != nil {
		t.Fatalf("encodeNode: %v", err)
	}
	buf[10] ^= 0xFF
	if _, err := decodeNode(buf, 1, kd, ModeCompat, AlgFNV1a); !errors.Is(err, ErrCorruptIndex) {
		t.Fatalf("expected checksum mismatch after corruption, got %v", err)
	}
}
