package isam

import "testing"

func TestClusterAndAuditAreNoOps(t *testing.T) {
	tbl := mustOpenTable(t, Config{})
	if err := tbl.Cluster(0); err != nil {
		t.Fatalf("Cluster: %v", err)
	}
	if err := tbl.Cluster(99); err != ErrBadArg {
		t.Fatalf("expected ErrBadArg for a bad key index, got %v", err)
	}
	if err := tbl.Audit(true); err != nil {
		t.Fatalf("Audit: %v", err)
	}
}
