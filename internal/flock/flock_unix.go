//go:build unix

package flock

import (
	stderrors "errors"

	"golang.org/x/sys/unix"
)

// tryLock takes an exclusive flock on fd without blocking. It returns
// errHeld when another open file description holds the lock.
func tryLock(fd uintptr) error {
	for {
		err := unix.Flock(int(fd), unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return nil
		case stderrors.Is(err, unix.EINTR):
			continue
		case stderrors.Is(err, unix.EWOULDBLOCK):
			return errHeld
		default:
			return err
		}
	}
}

func unlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
