package flock

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mrz1836/cortex/internal/errors"
)

// errHeld reports that another descriptor holds the lock.
var errHeld = stderrors.New("lock held elsewhere")

// Lock is a held occurrence lock. The zero value is not usable.
type Lock struct {
	path string
	file *os.File
}

// Acquire takes the exclusive lock for name inside dir, creating dir when
// needed. The lock file records the holder's pid. It returns
// ErrOccurrenceLocked when another process holds the lock.
func Acquire(dir, name string) (*Lock, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("lock name %w", errors.ErrEmptyValue)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create lock directory")
	}

	path := filepath.Join(dir, lockFileName(name))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600) // #nosec G304 -- path is built from the cortex home
	if err != nil {
		return nil, errors.Wrap(err, "failed to open lock file")
	}

	if err := tryLock(f.Fd()); err != nil {
		holder := readHolder(f)
		_ = f.Close()
		if !stderrors.Is(err, errHeld) {
			return nil, errors.Wrap(err, "failed to lock")
		}
		if holder != "" {
			return nil, fmt.Errorf("%w: %s (pid %s)", errors.ErrOccurrenceLocked, name, holder)
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrOccurrenceLocked, name)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{path: path, file: f}, nil
}

// Holder reports whether another process holds the lock for name and, when
// it recorded one, that holder's pid. A missing lock file means no holder.
func Holder(dir, name string) (held bool, pid string, err error) {
	path := filepath.Join(dir, lockFileName(name))
	f, err := os.OpenFile(path, os.O_RDONLY, 0) // #nosec G304 -- path is built from the cortex home
	if os.IsNotExist(err) {
		return false, "", nil
	}
	if err != nil {
		return false, "", errors.Wrap(err, "failed to open lock file")
	}
	defer func() { _ = f.Close() }()

	switch err := tryLock(f.Fd()); {
	case stderrors.Is(err, errHeld):
		return true, readHolder(f), nil
	case err != nil:
		return false, "", errors.Wrap(err, "failed to probe lock")
	}
	_ = unlock(f.Fd())
	return false, "", nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil

	unlockErr := unlock(f.Fd())
	closeErr := f.Close()
	if unlockErr != nil {
		return errors.Wrap(unlockErr, "failed to release lock")
	}
	return closeErr
}

// lockFileName maps an occurrence id onto a safe file name.
func lockFileName(name string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
	return safe + ".lock"
}

func readHolder(f *os.File) string {
	buf := make([]byte, 32)
	n, _ := f.ReadAt(buf, 0)
	return strings.TrimSpace(string(buf[:n]))
}
