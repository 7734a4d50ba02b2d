// Package store implements the in-memory index and write path on top of
// the log, manifest, recovery, and snapshot components: the public
// surface the Actor drives.
package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"kvs/internal/engine/record"
	"kvs/internal/engine/recovery"
	"kvs/internal/engine/snapshot"
	"kvs/internal/engine/walog"
	"kvs/internal/fslock"
	"kvs/internal/kverrors"
	"kvs/pkg/fs"
)

// Config configures a Store.
type Config struct {
	// DataDir holds the log, snapshot, manifest, and lock files.
	DataDir string

	// LogFileName is the default log file name used on cold start, when
	// there is no manifest to read a path from. Default: "data.log".
	LogFileName string

	// Durability selects the log writer's fsync policy.
	Durability walog.Durability

	// MaxLogSize triggers a synchronous auto-snapshot once the log's
	// byte counter reaches this many bytes. Zero disables auto-snapshot.
	MaxLogSize int64
}

// Store owns the in-memory index, the log, and the snapshot/manifest
// state. It is not safe for concurrent use: callers serialize access to it
// (the Actor, in production; a single test goroutine, in unit tests).
type Store struct {
	fsys fs.FS

	dataDir      string
	manifestPath string
	lock         *fslock.Lock

	log          *walog.Log
	index        map[string][]byte
	gen          uint64
	snapshotPath string

	durability walog.Durability
	maxLogSize int64
}

// Open recovers durable state (snapshot + log replay with torn-tail
// truncation) and returns a Store ready to serve requests.
func Open(fsys fs.FS, cfg Config) (*Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data dir is empty: %w", kverrors.ErrInvalidInput)
	}

	logFileName := cfg.LogFileName
	if logFileName == "" {
		logFileName = "data.log"
	}

	if err := fsys.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("create data dir %q: %w: %w", cfg.DataDir, kverrors.ErrIO, err)
	}

	lock, err := fslock.Acquire(filepath.Join(cfg.DataDir, ".lock"))
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(cfg.DataDir, "MANIFEST")
	defaultLogPath := filepath.Join(cfg.DataDir, logFileName)

	res, err := recovery.Run(fsys, manifestPath, defaultLogPath)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	log, err := walog.Open(fsys, res.LogPath, cfg.Durability)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	return &Store{
		fsys:         fsys,
		dataDir:      cfg.DataDir,
		manifestPath: manifestPath,
		lock:         lock,
		log:          log,
		index:        res.Index,
		gen:          res.Gen,
		snapshotPath: res.SnapshotPath,
		durability:   cfg.Durability,
		maxLogSize:   cfg.MaxLogSize,
	}, nil
}

// Set writes key -> value, appending a Put record before acknowledging.
// On I/O failure the index is left unchanged.
func (s *Store) Set(key, value []byte) error {
	if err := record.ValidateKey(key); err != nil {
		return err
	}

	if err := record.ValidateValue(value); err != nil {
		return err
	}

	_, err := s.log.Append(record.EncodePut(key, value))
	if err != nil {
		return err
	}

	s.index[string(key)] = append([]byte(nil), value...)

	return s.maybeAutoSnapshot()
}

// Get returns the current value for key, if present.
func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if err := record.ValidateKey(key); err != nil {
		return nil, false, err
	}

	value, ok := s.index[string(key)]
	if !ok {
		return nil, false, nil
	}

	return append([]byte(nil), value...), true, nil
}

// Del removes key. It reports whether key was present. A Del record is
// appended to the log only when the key was present; replay's Del is a
// remove-if-present, so both append policies preserve the recovery
// invariant documented in spec.md.
func (s *Store) Del(key []byte) (bool, error) {
	if err := record.ValidateKey(key); err != nil {
		return false, err
	}

	_, present := s.index[string(key)]
	if !present {
		return false, nil
	}

	_, err := s.log.Append(record.EncodeDel(key))
	if err != nil {
		return false, err
	}

	delete(s.index, string(key))

	// The delete itself already committed; an auto-snapshot error here is
	// reported but does not retract the "present" result.
	return true, s.maybeAutoSnapshot()
}

// Scan returns every key sharing prefix, sorted lexicographically. An
// empty prefix returns every key. Deterministic ordering is an
// implementation choice for testability; spec.md does not require
// unordered output, only does not mandate sorted output.
func (s *Store) Scan(prefix []byte) []string {
	keys := make([]string, 0, len(s.index))

	p := string(prefix)

	for key := range s.index {
		if strings.HasPrefix(key, p) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	return keys
}

// Snapshot materializes the index into a new snapshot file, rotates the
// log, and atomically swaps the manifest. It returns the new generation.
func (s *Store) Snapshot() (uint64, error) {
	res, err := snapshot.Run(s.fsys, s.dataDir, s.manifestPath, s.gen, s.snapshotPath, s.log.Path(), s.index)
	if err != nil {
		return 0, err
	}

	if err := s.log.Close(); err != nil {
		return 0, err
	}

	newLog, err := walog.Open(s.fsys, res.LogPath, s.durability)
	if err != nil {
		return 0, err
	}

	s.log = newLog
	s.log.ResetCounter(0)
	s.gen = res.Gen
	s.snapshotPath = res.SnapshotPath

	return res.Gen, nil
}

// SetMaxLogSize changes the auto-snapshot threshold for subsequent writes.
// Zero disables auto-snapshot. Safe to call only from the goroutine that
// owns the Store (the Actor, in production).
func (s *Store) SetMaxLogSize(n int64) {
	s.maxLogSize = n
}

// maybeAutoSnapshot checks the in-process byte counter (never a stat()
// call) and triggers a synchronous snapshot once it reaches MaxLogSize.
func (s *Store) maybeAutoSnapshot() error {
	if s.maxLogSize <= 0 {
		return nil
	}

	if s.log.ByteCounter() < s.maxLogSize {
		return nil
	}

	_, err := s.Snapshot()

	return err
}

// Close flushes the log's durability remainder and releases the
// cross-process lock.
func (s *Store) Close() error {
	logErr := s.log.Close()
	lockErr := s.lock.Release()

	if logErr != nil {
		return logErr
	}

	return lockErr
}

// Gen returns the current snapshot generation (0 before the first
// snapshot).
func (s *Store) Gen() uint64 { return s.gen }

// LogPath returns the path of the currently active log file.
func (s *Store) LogPath() string { return s.log.Path() }

// ManifestPath returns the path of the manifest file.
func (s *Store) ManifestPath() string { return s.manifestPath }
