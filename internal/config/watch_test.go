package config_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kvs/internal/config"
)

func TestWatchFile_EmitsUpdateOnWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".kvs.json")
	writeFile(t, path, `{"data_dir": "initial"}`)

	w, err := config.WatchFile(path, config.Config{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	writeFile(t, path, `{"data_dir": "updated"}`)

	select {
	case cfg := <-w.Updates():
		require.Equal(t, "updated", cfg.DataDir)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config update")
	}
}

func TestWatchFile_IgnoresTransientParseErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".kvs.json")
	writeFile(t, path, `{"data_dir": "initial"}`)

	w, err := config.WatchFile(path, config.Config{})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	writeFile(t, path, `{not valid json`)
	writeFile(t, path, `{"data_dir": "recovered"}`)

	select {
	case cfg := <-w.Updates():
		require.Equal(t, "recovered", cfg.DataDir)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config update")
	}
}

func TestWatchFile_MissingPathIsError(t *testing.T) {
	t.Parallel()

	_, err := config.WatchFile(filepath.Join(t.TempDir(), "nope.json"), config.Config{})
	require.Error(t, err)
}

func TestWatchFile_CloseStopsWatching(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".kvs.json")
	writeFile(t, path, `{"data_dir": "initial"}`)

	w, err := config.WatchFile(path, config.Config{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, ok := <-w.Updates()
	require.False(t, ok)
}
