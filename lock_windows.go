//go:build windows

// LockFileEx/UnlockFileEx byte-range implementation for Windows.
// Both methods are called with l.mu held by the exported Lock/Unlock.
package isam

import (
	"golang.org/x/sys/windows"
)

func (l *regionLock) lock(r region, mode LockMode, wait bool) error {
	var flags uint32
	if mode == LockExclusive {
		flags |= windows.LOCKFILE_EXCLUSIVE_LOCK
	}
	if !wait {
		flags |= windows.LOCKFILE_FAIL_IMMEDIATELY
	}

	h := windows.Handle(l.f.Fd())
	lo, hi := splitRange(r.length)
	ov := windows.Overlapped{Offset: uint32(r.offset), OffsetHigh: uint32(r.offset >> 32)}

	if err := windows.LockFileEx(h, flags, 0, lo, hi, &ov); err != nil {
		if !wait {
			return ErrLocked
		}
		return err
	}
	return nil
}

func (l *regionLock) unlock(r region) error {
	h := windows.Handle(l.f.Fd())
	lo, hi := splitRange(r.length)
	ov := windows.Overlapped{Offset: uint32(r.offset), OffsetHigh: uint32(r.offset >> 32)}
	return windows.UnlockFileEx(h, 0, lo, hi, &ov)
}

func splitRange(length int64) (lo, hi uint32) {
	return uint32(length), uint32(length >> 32)
}
