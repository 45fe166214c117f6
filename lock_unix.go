//go:build unix || linux || darwin

// fcntl(2) byte-range lock implementation for Unix platforms.
// Both methods are called with l.mu held by the exported Lock/Unlock.
package isam

import (
	"golang.org/x/sys/unix"
)

func (l *regionLock) lock(r region, mode LockMode, wait bool) error {
	typ := int16(unix.F_RDLCK)
	if mode == LockExclusive {
		typ = unix.F_WRLCK
	}
	flk := unix.Flock_t{
		Type:   typ,
		Whence: 0,
		Start:  r.offset,
		Len:    r.length,
	}
	cmd := unix.F_SETLK
	if wait {
		cmd = unix.F_SETLKW
	}
	if err := unix.FcntlFlock(l.f.Fd(), cmd, &flk); err != nil {
		if !wait {
			return ErrLocked
		}
		return err
	}
	return nil
}

func (l *regionLock) unlock(r region) error {
	flk := unix.Flock_t{
		Type:   unix.F_UNLCK,
		Whence: 0,
		Start:  r.offset,
		Len:    r.length,
	}
	return unix.FcntlFlock(l.f.Fd(), unix.F_SETLK, &flk)
}
