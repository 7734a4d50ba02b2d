package recovery_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"kvs/internal/engine/manifest"
	"kvs/internal/engine/recovery"
	"kvs/internal/engine/record"
	"kvs/pkg/fs"
)

func TestRun_ColdStart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	res, err := recovery.Run(fs.NewReal(), filepath.Join(dir, "MANIFEST"), filepath.Join(dir, "data.log"))
	require.NoError(t, err)
	require.Empty(t, res.Index)
	require.Equal(t, uint64(0), res.Gen)
	require.False(t, res.Truncated)

	_, err = os.Stat(filepath.Join(dir, "data.log"))
	require.NoError(t, err, "log created at default path on cold start")
}

func TestRun_SnapshotPlusLogWithTornTail(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	snapPath := filepath.Join(dir, "snapshot-0003.snap")
	logPath := filepath.Join(dir, "data.log")
	manifestPath := filepath.Join(dir, "MANIFEST")

	require.NoError(t, os.WriteFile(snapPath, append(
		record.EncodePut([]byte("a"), []byte("1")),
		record.EncodePut([]byte("b"), []byte("2"))...,
	), 0o644))

	goodPut := record.EncodePut([]byte("c"), []byte("3"))
	goodDel := record.EncodeDel([]byte("a"))
	garbage := []byte{0xAB, 0xCD, 0xEF, 0x01}

	logBytes := append(append(goodPut, goodDel...), garbage...)
	require.NoError(t, os.WriteFile(logPath, logBytes, 0o644))

	require.NoError(t, manifest.Write(manifestPath, manifest.Manifest{
		Gen:          3,
		SnapshotPath: snapPath,
		LogPath:      logPath,
	}))

	res, err := recovery.Run(fs.NewReal(), manifestPath, filepath.Join(dir, "unused.log"))
	require.NoError(t, err)

	if diff := cmp.Diff(map[string][]byte{
		"b": []byte("2"),
		"c": []byte("3"),
	}, res.Index); diff != "" {
		t.Fatalf("index mismatch after torn-tail recovery (-want +got):\n%s", diff)
	}

	require.True(t, res.Truncated)
	require.Equal(t, int64(len(goodPut)+len(goodDel)), res.TruncatedAt)

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	require.Equal(t, res.TruncatedAt, info.Size())
}

func TestRun_CorruptSnapshotIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	snapPath := filepath.Join(dir, "snapshot-0001.snap")
	logPath := filepath.Join(dir, "data.log")
	manifestPath := filepath.Join(dir, "MANIFEST")

	require.NoError(t, os.WriteFile(snapPath, []byte{byte(record.TagPut), 0xff, 0xff, 0xff, 0x7f}, 0o644))
	require.NoError(t, os.WriteFile(logPath, nil, 0o644))
	require.NoError(t, manifest.Write(manifestPath, manifest.Manifest{Gen: 1, SnapshotPath: snapPath, LogPath: logPath}))

	_, err := recovery.Run(fs.NewReal(), manifestPath, logPath)
	require.Error(t, err)
}

func TestRun_ManifestReferencingMissingSnapshotIsColdStartForIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	logPath := filepath.Join(dir, "data.log")
	manifestPath := filepath.Join(dir, "MANIFEST")

	require.NoError(t, os.WriteFile(logPath, record.EncodePut([]byte("k"), []byte("v")), 0o644))
	require.NoError(t, manifest.Write(manifestPath, manifest.Manifest{
		Gen:          5,
		SnapshotPath: filepath.Join(dir, "snapshot-0005.snap"), // does not exist
		LogPath:      logPath,
	}))

	res, err := recovery.Run(fs.NewReal(), manifestPath, logPath)
	require.NoError(t, err)

	if diff := cmp.Diff(map[string][]byte{"k": []byte("v")}, res.Index); diff != "" {
		t.Fatalf("index mismatch (-want +got):\n%s", diff)
	}
}
