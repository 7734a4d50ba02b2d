// Package manifest implements the atomic pointer to the (snapshot, log)
// pair that defines the current durable state of the store.
//
// The manifest is a single text line:
//
//	<gen>:<snapshot_path>:<log_path>
//
// published via a temp-file-then-rename, whose rename is the one crash-
// consistency primitive the whole engine relies on.
package manifest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"

	"kvs/pkg/fs"
)

// Manifest is the parsed contents of the manifest file.
type Manifest struct {
	Gen          uint64
	SnapshotPath string // empty if no snapshot yet
	LogPath      string
}

// Read loads the manifest at path. A missing, unreadable, or malformed
// manifest is reported as (Manifest{}, false, nil) — cold start — never as
// a partially parsed value.
func Read(fsys fs.FS, path string) (Manifest, bool, error) {
	exists, err := fsys.Exists(path)
	if err != nil {
		return Manifest{}, false, fmt.Errorf("stat manifest %q: %w", path, err)
	}

	if !exists {
		return Manifest{}, false, nil
	}

	raw, err := fsys.ReadFile(path)
	if err != nil {
		return Manifest{}, false, nil //nolint:nilerr // unreadable manifest is cold start, not a fatal error
	}

	m, ok := parse(raw)
	if !ok {
		return Manifest{}, false, nil
	}

	return m, true, nil
}

func parse(raw []byte) (Manifest, bool) {
	line := strings.TrimRight(string(bytes.TrimSpace(raw)), "\n")

	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return Manifest{}, false
	}

	gen, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Manifest{}, false
	}

	logPath := parts[2]
	if logPath == "" {
		return Manifest{}, false
	}

	return Manifest{Gen: gen, SnapshotPath: parts[1], LogPath: logPath}, true
}

// Encode renders m in the on-disk text format.
func (m Manifest) Encode() []byte {
	return fmt.Appendf(nil, "%d:%s:%s\n", m.Gen, m.SnapshotPath, m.LogPath)
}

// Write publishes m to path via temp-file-then-rename. The rename is the
// commit point: either the old manifest is observed, or the new one is —
// never a partial write.
//
// Uses github.com/natefinch/atomic directly rather than the engine's
// injectable pkg/fs.AtomicWriter: manifest-atomicity tests (crash before vs.
// after the rename) construct the two possible on-disk layouts directly and
// assert on Recovery's behavior, so they never need to intercept the rename
// syscall itself. See DESIGN.md.
func Write(path string, m Manifest) error {
	err := atomic.WriteFile(path, bytes.NewReader(m.Encode()))
	if err != nil {
		return fmt.Errorf("write manifest %q: %w", path, err)
	}

	return nil
}
