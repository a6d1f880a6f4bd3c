//go:build unix || linux || darwin || freebsd || openbsd || netbsd

package flock

import (
	"os"

	"golang.org/x/sys/unix"
)

func sysLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == unix.EWOULDBLOCK {
		return ErrLocked
	}
	return err
}

func sysUnlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
