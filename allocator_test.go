package isam

import "testing"

func TestKeyDescriptorEncodeDecodeRoundTrip(t *testing.T) {
	kd := &KeyDescriptor{
		Parts: []KeyPart{
			{Start: 0, Length: 8, Type: Char},
			{Start: 8, Length: 4, Type: Int32, Descending: true},
		},
		AllowDuplicates:  true,
		LeadingCompress:  true,
		TrailingCompress: true,
		DupCompress:      true,
		RootNode:         7,
	}
	buf := encodeKeyDescriptor(kd)
	got, n, err := decodeKeyDescriptor(buf)
	if err != nil {
		t.Fatalf("decodeKeyDescriptor: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(buf), n)
	}
	if got.AllowDuplicates != kd.AllowDuplicates || got.LeadingCompress != kd.LeadingCompress ||
		got.TrailingCompress != kd.TrailingCompress || got.DupCompress != kd.DupCompress ||
		got.RootNode != kd.RootNode || len(got.Parts) != len(kd.Parts) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, kd)
	}
	for i, p := range kd.Parts {
		if got.Parts[i] != p {
			t.Fatalf("part %d mismatch: got %+v, want %+v", i, got.Parts[i], p)
		}
	}
}

func TestAllocNodeReusesFreedNode(t *testing.T) {
	tbl := mustOpenTable(t, Config{})

	before := tbl.dict.NodeCount
	n, err := tbl.allocNode()
	if err != nil {
		t.Fatalf("allocNode: %v", err)
	}
	if n != before+1 {
		t.Fatalf("expected new node %d, got %d", before+1, n)
	}

	if err := tbl.freeNode(n); err != nil {
		t.Fatalf("freeNode: %v", err)
	}
	if tbl.dict.FreeNodeHead != n {
		t.Fatalf("expected free chain head %d, got %d", n, tbl.dict.FreeNodeHead)
	}

	grownNodeCount := tbl.dict.NodeCount
	reused, err := tbl.allocNode()
	if err != nil {
		t.Fatalf("allocNode (reuse): %v", err)
	}
	if reused != n {
		t.Fatalf("expected allocNode to reuse freed node %d, got %d", n, reused)
	}
	if tbl.dict.NodeCount != grownNodeCount {
		t.Fatal("expected node count to stay put when reusing a freed node")
	}
}
