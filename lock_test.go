package isam

import (
	"os"
	"testing"
)

func TestRegionLockRelockAfterUnlock(t *testing.T) {
	dir := t.TempDir()
	f, err := os.OpenFile(dir+"/lockfile", os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	rl := &regionLock{f: f}
	if err := rl.Lock(regionPrimary(), LockExclusive, true); err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	if err := rl.Unlock(regionPrimary()); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	// Re-acquiring after unlock must succeed: the region is free again.
	if err := rl.Lock(regionPrimary(), LockShared, true); err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if err := rl.Unlock(regionPrimary()); err != nil {
		t.Fatalf("Unlock 2: %v", err)
	}
}

func TestRegionsDoNotOverlap(t *testing.T) {
	regions := []region{
		regionFileOpen(),
		regionPrimary(),
		regionRow(1),
		regionRow(2),
	}
	for i := range regions {
		for j := range regions {
			if i == j {
				continue
			}
			a, b := regions[i], regions[j]
			if a.offset < b.offset+b.length && b.offset < a.offset+a.length {
				t.Fatalf("regions %d and %d overlap: %+v, %+v", i, j, a, b)
			}
		}
	}
}
