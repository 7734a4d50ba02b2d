// Package fslock provides an advisory, process-exclusive lock over a data
// directory, guarding against two OS processes opening the same store.
//
// The engine's concurrency model (single-writer Actor) only protects
// against concurrent goroutines within one process; spec.md documents that
// cross-process concurrent opens are unsupported. This lock turns that
// unsupported case into a detected, reported error instead of silent
// index/log corruption.
package fslock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"kvs/internal/kverrors"
)

// Lock is a held advisory lock on a single file.
type Lock struct {
	file *os.File
}

// Acquire takes an exclusive, non-blocking advisory lock on path (created
// if missing). It returns kverrors.ErrLocked if another process already
// holds the lock.
func Acquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file %q: %w: %w", path, kverrors.ErrIO, err)
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = file.Close()

		if err == unix.EWOULDBLOCK { //nolint:errorlint // unix errno sentinel comparison
			return nil, fmt.Errorf("lock %q: %w", path, kverrors.ErrLocked)
		}

		return nil, fmt.Errorf("flock %q: %w: %w", path, kverrors.ErrIO, err)
	}

	return &Lock{file: file}, nil
}

// Release drops the lock and closes the underlying file descriptor.
func (l *Lock) Release() error {
	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()

	if err != nil {
		return fmt.Errorf("unlock: %w: %w", kverrors.ErrIO, err)
	}

	if closeErr != nil {
		return fmt.Errorf("close lock file: %w: %w", kverrors.ErrIO, closeErr)
	}

	return nil
}
