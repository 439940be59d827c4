//go:build windows

package flock

import (
	stderrors "errors"

	"golang.org/x/sys/windows"
)

// The whole file is locked through a one byte range at offset zero.
const (
	lockReserved  = 0
	lockBytesLow  = 1
	lockBytesHigh = 0
)

// tryLock takes an exclusive LockFileEx lock on fd without blocking. It
// returns errHeld when another handle holds the lock.
func tryLock(fd uintptr) error {
	err := windows.LockFileEx(
		windows.Handle(fd),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		lockReserved,
		lockBytesLow,
		lockBytesHigh,
		&windows.Overlapped{},
	)
	if stderrors.Is(err, windows.ERROR_LOCK_VIOLATION) {
		return errHeld
	}
	return err
}

func unlock(fd uintptr) error {
	return windows.UnlockFileEx(windows.Handle(fd), lockReserved, lockBytesLow, lockBytesHigh, &windows.Overlapped{})
}
