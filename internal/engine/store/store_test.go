package store_test

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"kvs/internal/engine/store"
	"kvs/internal/engine/walog"
	"kvs/pkg/fs"
)

func openStore(t *testing.T, cfg store.Config) *store.Store {
	t.Helper()

	if cfg.DataDir == "" {
		cfg.DataDir = t.TempDir()
	}

	s, err := store.Open(fs.NewReal(), cfg)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestSetGet_RoundTrips(t *testing.T) {
	t.Parallel()

	s := openStore(t, store.Config{})

	require.NoError(t, s.Set([]byte("name"), []byte("Alice")))

	val, ok, err := s.Get([]byte("name"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("Alice"), val)
}

func TestDel_TombstoneSemantics(t *testing.T) {
	t.Parallel()

	s := openStore(t, store.Config{})

	require.NoError(t, s.Set([]byte("name"), []byte("Alice")))

	present, err := s.Del([]byte("name"))
	require.NoError(t, err)
	require.True(t, present)

	_, ok, err := s.Get([]byte("name"))
	require.NoError(t, err)
	require.False(t, ok)

	present, err = s.Del([]byte("name"))
	require.NoError(t, err)
	require.False(t, present)
}

func TestSet_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	s := openStore(t, store.Config{})

	require.Error(t, s.Set(nil, []byte("v")))
	require.Error(t, s.Set(make([]byte, 1025), []byte("v")))
	require.Error(t, s.Set([]byte("k"), make([]byte, 1<<20+1)))
}

func TestScan_ReturnsSortedKeysByPrefix(t *testing.T) {
	t.Parallel()

	s := openStore(t, store.Config{})

	require.NoError(t, s.Set([]byte("user:bob"), []byte("y")))
	require.NoError(t, s.Set([]byte("user:alice"), []byte("x")))
	require.NoError(t, s.Set([]byte("other"), []byte("z")))

	if diff := cmp.Diff([]string{"user:alice", "user:bob"}, s.Scan([]byte("user:"))); diff != "" {
		t.Fatalf("prefix scan mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"other", "user:alice", "user:bob"}, s.Scan(nil)); diff != "" {
		t.Fatalf("full scan mismatch (-want +got):\n%s", diff)
	}
}

func TestDurability_Reopen_SurvivesRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s := openStore(t, store.Config{DataDir: dir, Durability: walog.DurabilityFsyncAlways()})
	require.NoError(t, s.Set([]byte("k"), []byte("v")))
	require.NoError(t, s.Close())

	reopened := openStore(t, store.Config{DataDir: dir, Durability: walog.DurabilityFsyncAlways()})

	val, ok, err := reopened.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), val)
}

func TestSnapshot_ReopenYieldsSameIndexAsWithoutSnapshot(t *testing.T) {
	t.Parallel()

	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")

	sA := openStore(t, store.Config{DataDir: dirA})
	sB := openStore(t, store.Config{DataDir: dirB})

	ops := func(s *store.Store) {
		require.NoError(t, s.Set([]byte("a"), []byte("1")))
		require.NoError(t, s.Set([]byte("b"), []byte("2")))
		present, err := s.Del([]byte("a"))
		require.NoError(t, err)
		require.True(t, present)
		require.NoError(t, s.Set([]byte("c"), []byte("3")))
	}

	ops(sA)
	ops(sB)

	_, err := sA.Snapshot()
	require.NoError(t, err)

	require.NoError(t, sA.Close())
	require.NoError(t, sB.Close())

	reopenedA := openStore(t, store.Config{DataDir: dirA})
	reopenedB := openStore(t, store.Config{DataDir: dirB})

	if diff := cmp.Diff(reopenedB.Scan(nil), reopenedA.Scan(nil)); diff != "" {
		t.Fatalf("index mismatch between snapshot and no-snapshot reopen (-withSnapshot +withoutSnapshot):\n%s", diff)
	}

	for _, key := range []string{"b", "c"} {
		va, _, _ := reopenedA.Get([]byte(key))
		vb, _, _ := reopenedB.Get([]byte(key))

		if diff := cmp.Diff(vb, va); diff != "" {
			t.Fatalf("value mismatch for key %q (-withSnapshot +withoutSnapshot):\n%s", key, diff)
		}
	}
}

func TestAutoSnapshot_TriggersAtThreshold(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	s := openStore(t, store.Config{DataDir: dir, MaxLogSize: 40})

	for i := range 10 {
		require.NoError(t, s.Set([]byte{byte('a' + i)}, []byte("x")))
	}

	require.Positive(t, s.Gen(), "auto-snapshot should have fired at least once")
}

func TestSnapshot_ExplicitGenerationIncrements(t *testing.T) {
	t.Parallel()

	s := openStore(t, store.Config{})

	require.NoError(t, s.Set([]byte("k"), []byte("v")))

	gen1, err := s.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(1), gen1)

	gen2, err := s.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(2), gen2)
}
