// Package walog implements the append-only log writer: a byte sink with a
// configurable durability policy and an in-process running byte counter.
package walog

import (
	"fmt"
	"os"

	"kvs/internal/kverrors"
	"kvs/pkg/fs"
)

// Durability enumerates when an append is acknowledged as committed.
type Durability struct {
	kind durabilityKind
	n    int
}

type durabilityKind int

const (
	kindFlush durabilityKind = iota
	kindFsyncAlways
	kindFsyncEveryN
)

// DurabilityFlush pushes buffered bytes to the OS after each append but
// never forces them to stable storage.
func DurabilityFlush() Durability { return Durability{kind: kindFlush} }

// DurabilityFsyncAlways forces the file and its metadata to stable storage
// after every append.
func DurabilityFsyncAlways() Durability { return Durability{kind: kindFsyncAlways} }

// DurabilityFsyncEveryN forces the file every n-th successful append. Any
// remainder is forced on Close. Panics if n < 1.
func DurabilityFsyncEveryN(n int) Durability {
	if n < 1 {
		panic("walog: FsyncEveryN requires n >= 1")
	}

	return Durability{kind: kindFsyncEveryN, n: n}
}

// String renders the policy for diagnostics and config round-tripping.
func (d Durability) String() string {
	switch d.kind {
	case kindFlush:
		return "flush"
	case kindFsyncAlways:
		return "fsync-always"
	case kindFsyncEveryN:
		return fmt.Sprintf("fsync-every-n:%d", d.n)
	default:
		return "unknown"
	}
}

// Log is an append-only byte sink with an accurate running byte counter.
//
// A Log is not safe for concurrent use; the Actor is its sole owner.
type Log struct {
	fsys       fs.FS
	file       fs.File
	path       string
	durability Durability
	counter    int64
	sinceSync  int
}

// Open creates the log file if missing and opens it for appending.
func Open(fsys fs.FS, path string, durability Durability) (*Log, error) {
	file, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log %q: %w: %w", path, kverrors.ErrIO, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat log %q: %w: %w", path, kverrors.ErrIO, err)
	}

	return &Log{
		fsys:       fsys,
		file:       file,
		path:       path,
		durability: durability,
		counter:    info.Size(),
	}, nil
}

// Path returns the file path backing this log.
func (l *Log) Path() string { return l.path }

// ByteCounter returns the number of bytes handed to the OS write call so
// far. It is maintained in-process, not derived from a stat() call.
func (l *Log) ByteCounter() int64 { return l.counter }

// Append writes b atomically relative to the durability policy.
//
// On a failed or short write the byte counter is left unchanged: no partial
// accounting. Once the write succeeds, the counter advances by exactly
// len(b), even if the sync that follows fails and an error is returned.
func (l *Log) Append(b []byte) (int, error) {
	n, err := l.file.Write(b)
	if err != nil {
		return 0, fmt.Errorf("append to log %q: %w: %w", l.path, kverrors.ErrIO, err)
	}

	if n != len(b) {
		return 0, fmt.Errorf("short write to log %q: wrote %d of %d: %w", l.path, n, len(b), kverrors.ErrIO)
	}

	l.counter += int64(n)

	switch l.durability.kind {
	case kindFlush:
		// Buffered bytes already handed to the OS by Write; nothing further
		// required for this policy.
	case kindFsyncAlways:
		if err := l.file.Sync(); err != nil {
			return n, fmt.Errorf("sync log %q: %w: %w", l.path, kverrors.ErrIO, err)
		}
	case kindFsyncEveryN:
		l.sinceSync++
		if l.sinceSync >= l.durability.n {
			if err := l.file.Sync(); err != nil {
				return n, fmt.Errorf("sync log %q: %w: %w", l.path, kverrors.ErrIO, err)
			}

			l.sinceSync = 0
		}
	}

	return n, nil
}

// Sync unconditionally forces the log to stable storage.
func (l *Log) Sync() error {
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log %q: %w: %w", l.path, kverrors.ErrIO, err)
	}

	return nil
}

// Close flushes any remainder required by the durability policy, then
// closes the underlying file.
func (l *Log) Close() error {
	if l.durability.kind == kindFsyncEveryN && l.sinceSync > 0 {
		if err := l.file.Sync(); err != nil {
			_ = l.file.Close()
			return fmt.Errorf("final sync log %q: %w: %w", l.path, kverrors.ErrIO, err)
		}

		l.sinceSync = 0
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log %q: %w: %w", l.path, kverrors.ErrIO, err)
	}

	return nil
}

// File exposes the underlying file handle.
func (l *Log) File() fs.File { return l.file }

// ResetCounter sets the byte counter directly. The Store calls it after a
// successful snapshot rotates the log; after recovery, Open already starts
// the counter at the (possibly truncated) file's size.
func (l *Log) ResetCounter(n int64) { l.counter = n }
