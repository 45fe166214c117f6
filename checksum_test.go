package isam

import "testing"

func TestChecksumRoundTrip(t *testing.T) {
	data := []byte("a node's worth of bytes, more or less")
	for _, alg := range []int{AlgXXHash3, AlgFNV1a, AlgBlake2b} {
		sum := checksum(alg, data)
		if !verifyChecksum(alg, data, sum) {
			t.Fatalf("alg %d: checksum did not verify itself", alg)
		}
		if verifyChecksum(alg, append(append([]byte(nil), data...), 'x'), sum) {
			t.Fatalf("alg %d: checksum verified against altered data", alg)
		}
	}
}

func TestChecksumNoneAlwaysVerifies(t *testing.T) {
	if checksum(AlgNone, []byte("whatever")) != nil {
		t.Fatal("AlgNone should produce no checksum")
	}
	if !verifyChecksum(AlgNone, []byte("whatever"), nil) {
		t.Fatal("AlgNone should always verify")
	}
}
