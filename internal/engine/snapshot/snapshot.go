// Package snapshot implements the snapshot engine: materializing the live
// index into a new snapshot file and rotating the log, committed by an
// atomic manifest swap.
package snapshot

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"kvs/internal/engine/manifest"
	"kvs/internal/engine/record"
	"kvs/internal/kverrors"
	"kvs/pkg/fs"
)

// Result describes the newly committed state after a successful snapshot.
type Result struct {
	Gen          uint64
	SnapshotPath string
	LogPath      string
}

// Run executes the snapshot procedure documented in the engine design:
// write a new snapshot, publish it via rename, create a fresh log, swap
// the manifest, then best-effort unlink the superseded files.
//
// prevGen/prevSnapshotPath/prevLogPath describe the state being superseded;
// prevSnapshotPath may be empty if this is the first snapshot. dataDir is
// where new snapshot/log files are created.
func Run(fsys fs.FS, dataDir, manifestPath string, prevGen uint64, prevSnapshotPath, prevLogPath string, index map[string][]byte) (Result, error) {
	gen := prevGen + 1

	snapshotPath := filepath.Join(dataDir, fmt.Sprintf("snapshot-%04d.snap", gen))

	if err := writeSnapshotFile(fsys, snapshotPath, index); err != nil {
		return Result{}, err
	}

	// The generation number alone would normally be enough to name the new
	// log file, but a crash during a previous, never-committed attempt at
	// this same generation can leave debris at that exact path. A uuid
	// suffix makes the new log name collision-free regardless of history.
	logPath := filepath.Join(dataDir, fmt.Sprintf("data-%04d-%s.log", gen, uuid.NewString()))

	logFile, err := fsys.OpenFile(logPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		_ = fsys.Remove(snapshotPath)
		return Result{}, fmt.Errorf("create log %q: %w: %w", logPath, kverrors.ErrIO, err)
	}

	if err := logFile.Close(); err != nil {
		_ = fsys.Remove(snapshotPath)
		_ = fsys.Remove(logPath)
		return Result{}, fmt.Errorf("close new log %q: %w: %w", logPath, kverrors.ErrIO, err)
	}

	err = manifest.Write(manifestPath, manifest.Manifest{
		Gen:          gen,
		SnapshotPath: snapshotPath,
		LogPath:      logPath,
	})
	if err != nil {
		// Manifest rename never happened: the committed state is still the
		// previous generation. Clean up what we staged and surface the error.
		_ = fsys.Remove(snapshotPath)
		_ = fsys.Remove(logPath)

		return Result{}, fmt.Errorf("publish manifest for generation %d: %w", gen, err)
	}

	// The rename above is the commit point. Everything from here on is
	// best-effort cleanup: a failure here does not undo the new state.
	if prevLogPath != "" && prevLogPath != logPath {
		_ = fsys.Remove(prevLogPath)
	}

	if prevSnapshotPath != "" && prevSnapshotPath != snapshotPath {
		_ = fsys.Remove(prevSnapshotPath)
	}

	return Result{Gen: gen, SnapshotPath: snapshotPath, LogPath: logPath}, nil
}

// writeSnapshotFile encodes every live entry as a Put record and publishes
// the result via temp-file + fsync + rename.
func writeSnapshotFile(fsys fs.FS, path string, index map[string][]byte) error {
	var buf bytes.Buffer

	for key, value := range index {
		buf.Write(record.EncodePut([]byte(key), value))
	}

	writer := fs.NewAtomicWriter(fsys)

	err := writer.Write(path, bytes.NewReader(buf.Bytes()), fs.AtomicWriteOptions{
		SyncDir: true,
		Perm:    0o644,
	})
	if err != nil {
		return fmt.Errorf("write snapshot %q: %w: %w", path, kverrors.ErrIO, err)
	}

	return nil
}
