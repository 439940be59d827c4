// Package flock provides cross-platform file locking.
//
// Acquire takes a non-blocking exclusive lock (flock on unix, LockFileEx on
// windows) to guard an agent occurrence: at most one process may run a given
// occurrence id against a store. Holder probes the lock without taking it.
//
// Usage:
//
//	lock, err := flock.Acquire(locksDir, "occ-a")
//	if errors.Is(err, errors.ErrOccurrenceLocked) {
//	    // another process runs occ-a
//	}
//	defer lock.Release()
//
// Import rules:
//   - CAN import: internal/errors
//   - MUST NOT import: any other internal package
package flock
