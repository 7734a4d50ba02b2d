// Package recovery implements crash recovery: load the snapshot (if any),
// replay the log, and truncate a torn tail.
package recovery

import (
	"bufio"
	"fmt"
	"os"
	"syscall"

	"kvs/internal/engine/manifest"
	"kvs/internal/engine/record"
	"kvs/internal/kverrors"
	"kvs/pkg/fs"
)

// Result is the outcome of a recovery pass: the reconstructed index, the
// generation and paths recovered state is built on, and whether the log
// tail was torn and truncated.
type Result struct {
	Index        map[string][]byte
	Gen          uint64
	SnapshotPath string
	LogPath      string
	Truncated    bool
	TruncatedAt  int64
}

// Run loads the manifest at manifestPath (cold start if absent/malformed),
// replays snapshot + log, and truncates a torn log tail in place.
//
// defaultLogPath is used when there is no manifest to read a log path from.
func Run(fsys fs.FS, manifestPath, defaultLogPath string) (Result, error) {
	m, ok, err := manifest.Read(fsys, manifestPath)
	if err != nil {
		return Result{}, err
	}

	index := make(map[string][]byte)

	logPath := defaultLogPath
	snapshotPath := ""
	gen := uint64(0)

	if ok {
		gen = m.Gen
		snapshotPath = m.SnapshotPath
		logPath = m.LogPath

		if snapshotPath != "" {
			exists, err := fsys.Exists(snapshotPath)
			if err != nil {
				return Result{}, fmt.Errorf("stat snapshot %q: %w: %w", snapshotPath, kverrors.ErrIO, err)
			}

			// A manifest naming a missing snapshot is treated the same as
			// cold start for the snapshot half: start the index empty and
			// rely entirely on the log. See spec's open question on a
			// manifest referencing a missing file.
			if exists {
				if err := loadSnapshot(fsys, snapshotPath, index); err != nil {
					return Result{}, err
				}
			}
		}
	}

	truncated, truncatedAt, err := replayLog(fsys, logPath, index)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Index:        index,
		Gen:          gen,
		SnapshotPath: snapshotPath,
		LogPath:      logPath,
		Truncated:    truncated,
		TruncatedAt:  truncatedAt,
	}, nil
}

// loadSnapshot reads Put records to end-of-file. Any decode failure inside
// a snapshot is fatal: snapshots are published atomically via rename, so
// they are either wholly present or wholly absent — a truncated read here
// always means real corruption, never a torn write.
func loadSnapshot(fsys fs.FS, path string, index map[string][]byte) error {
	file, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open snapshot %q: %w: %w", path, kverrors.ErrIO, err)
	}
	defer func() { _ = file.Close() }()

	r := bufio.NewReader(file)

	for {
		rec, outcome, err := record.DecodeOne(r)
		if err != nil {
			return fmt.Errorf("decode snapshot %q: %w", path, err)
		}

		switch outcome {
		case record.OutcomeEOF:
			return nil
		case record.OutcomeTorn:
			return fmt.Errorf("snapshot %q ends mid-record: %w", path, kverrors.ErrCorrupt)
		case record.OutcomeOK:
			if rec.Tag != record.TagPut {
				return fmt.Errorf("snapshot %q contains a tombstone: %w", path, kverrors.ErrCorrupt)
			}

			index[string(rec.Key)] = rec.Value
		}
	}
}

// replayLog opens the log (creating it if missing), folds Put/Del records
// into index, and truncates a torn tail in place. It returns whether a
// truncation happened and the offset it truncated to.
func replayLog(fsys fs.FS, path string, index map[string][]byte) (bool, int64, error) {
	file, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, 0, fmt.Errorf("open log %q: %w: %w", path, kverrors.ErrIO, err)
	}
	defer func() { _ = file.Close() }()

	r := bufio.NewReader(file)

	var offset int64

	for {
		rec, outcome, err := record.DecodeOne(r)
		if err != nil {
			return false, 0, fmt.Errorf("decode log %q at offset %d: %w", path, offset, err)
		}

		switch outcome {
		case record.OutcomeEOF:
			return false, 0, nil
		case record.OutcomeTorn:
			if err := truncateAt(file, offset); err != nil {
				return false, 0, err
			}

			return true, offset, nil
		case record.OutcomeOK:
			switch rec.Tag {
			case record.TagPut:
				index[string(rec.Key)] = rec.Value
				offset += int64(record.EncodedSize(rec.Key, rec.Value))
			case record.TagDel:
				delete(index, string(rec.Key))
				offset += int64(record.EncodedDelSize(rec.Key))
			}
		}
	}
}

// truncateAt shrinks file to offset bytes and fsyncs so a re-open sees the
// clean boundary, matching the teacher's WAL recovery convention of
// truncating through the raw file descriptor rather than rewriting the
// file via a temp copy.
func truncateAt(file fs.File, offset int64) error {
	fd := file.Fd()

	err := syscall.Ftruncate(int(fd), offset)
	if err != nil {
		return fmt.Errorf("truncate log at offset %d: %w: %w", offset, kverrors.ErrIO, err)
	}

	err = file.Sync()
	if err != nil {
		return fmt.Errorf("sync truncated log: %w: %w", kverrors.ErrIO, err)
	}

	return nil
}
