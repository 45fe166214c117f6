package isam

import (
	"encoding/binary"
	"testing"
)

func TestEncodePartPreservesSignedOrdering(t *testing.T) {
	part := KeyPart{Start: 0, Length: 8, Type: Int64}
	values := []int64{-100, -1, 0, 1, 100}
	var prev []byte
	for _, v := range values {
		raw := make([]byte, 8)
		binary.BigEndian.PutUint64(raw, uint64(v))
		enc := encodePart(part, raw)
		if prev != nil && compareKeys(prev, enc, nil) >= 0 {
			t.Fatalf("encoding of %d did not sort after previous value", v)
		}
		prev = enc
	}
}

func TestEncodePartDescendingReversesOrder(t *testing.T) {
	part := KeyPart{Start: 0, Length: 4, Type: Int32, Descending: true}
	lo := make([]byte, 4)
	hi := make([]byte, 4)
	binary.BigEndian.PutUint32(lo, 1)
	binary.BigEndian.PutUint32(hi, 2)
	encLo := encodePart(part, lo)
	encHi := encodePart(part, hi)
	if compareKeys(encLo, encHi, nil) <= 0 {
		t.Fatal("descending part should sort the larger raw value first")
	}
}

func TestCompareKeysWithCollation(t *testing.T) {
	var upperFirst [256]byte
	for i := range upperFirst {
		upperFirst[i] = byte(i)
	}
	// Swap so 'a' sorts before 'B' despite 'a' > 'B' in ASCII.
	upperFirst['a'], upperFirst['B'] = upperFirst['B'], upperFirst['a']

	if compareKeys([]byte("a"), []byte("B"), nil) <= 0 {
		t.Fatal("expected 'a' > 'B' under default byte ordering")
	}
	if compareKeys([]byte("a"), []byte("B"), &upperFirst) >= 0 {
		t.Fatal("expected 'a' < 'B' under the swapped collation table")
	}
}

func TestPartialKeyPadding(t *testing.T) {
	kd := &KeyDescriptor{Parts: []KeyPart{{Start: 0, Length: 4, Type: Char}}}
	low := partialKey(kd, []byte("ab"), false)
	if string(low) != "ab\x00\x00" {
		t.Fatalf("expected zero padding, got %q", low)
	}
	high := partialKey(kd, []byte("ab"), true)
	if high[2] != 0xFF || high[3] != 0xFF {
		t.Fatalf("expected 0xFF padding, got %v", high)
	}
}

func TestKeyDescriptorValidateRejectsOutOfRange(t *testing.T) {
	kd := &KeyDescriptor{Parts: []KeyPart{{Start: 0, Length: 16, Type: Char}}}
	if err := kd.validate(8); err != ErrBadKey {
		t.Fatalf("expected ErrBadKey for a part exceeding the row length, got %v", err)
	}
}
