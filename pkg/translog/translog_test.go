package translog

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedFreeSpace(free uint64) FreeSpacer {
	return func(dir string) (uint64, error) { return free, nil }
}

func newTestTranslog(t *testing.T) *Translog {
	t.Helper()
	dir := t.TempDir()
	tl, err := Open(Config{DataPaths: []string{dir}, FreeSpace: fixedFreeSpace(100)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tl.Close(false) })
	return tl
}

func filesInDir(t *testing.T, dir string) map[string]bool {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := map[string]bool{}
	for _, e := range entries {
		out[e.Name()] = true
	}
	return out
}

// TestReadRoundTrip is spec.md §8 property 6: every Location returned by
// Add, read back before rotation, deserializes to the same operation.
func TestReadRoundTrip(t *testing.T) {
	tl := newTestTranslog(t)

	ops := []Operation{
		IndexOp("doc-1", []byte(`{"a":1}`), 1),
		DeleteOp("doc-2", 2),
		IndexOp("doc-3", []byte(`{"a":3}`), 1),
	}
	var locs []Location
	for _, op := range ops {
		loc, err := tl.Add(op)
		require.NoError(t, err)
		locs = append(locs, loc)
	}

	for i, loc := range locs {
		got, err := tl.Read(loc)
		require.NoError(t, err)
		require.Equal(t, ops[i], got)
	}
}

// TestRotationScenario is spec.md §8 scenario S6: append to current (id
// 1), open a transient (id 2), append more (landing in both), then
// promote the transient; the old current is deleted, locations from it
// become unreadable, and a fresh snapshot sees only the post-swap ops.
func TestRotationScenario(t *testing.T) {
	dir := t.TempDir()
	tl, err := Open(Config{DataPaths: []string{dir}, FreeSpace: fixedFreeSpace(100)})
	require.NoError(t, err)

	var preSwapLocs []Location
	for i := 0; i < 10; i++ {
		loc, err := tl.Add(IndexOp("pre", []byte("x"), int64(i)))
		require.NoError(t, err)
		preSwapLocs = append(preSwapLocs, loc)
	}
	require.Equal(t, int64(1), tl.CurrentID())

	require.NoError(t, tl.NewTransientTranslog(2))
	tid, ok := tl.TransientID()
	require.True(t, ok)
	require.Equal(t, int64(2), tid)

	for i := 0; i < 5; i++ {
		_, err := tl.Add(IndexOp("post", []byte("y"), int64(i)))
		require.NoError(t, err)
	}

	require.NoError(t, tl.MakeTransientCurrent())
	require.Equal(t, int64(2), tl.CurrentID())
	_, ok = tl.TransientID()
	require.False(t, ok)

	// Old current (id 1) was deleted on disk.
	files := filesInDir(t, dir)
	require.False(t, files[fileName(1)], "translog-1 should have been deleted")
	require.True(t, files[fileName(2)])

	// Locations obtained before the swap are no longer readable.
	for _, loc := range preSwapLocs {
		_, err := tl.Read(loc)
		require.Error(t, err)
	}

	// A fresh snapshot sees exactly the 5 post-swap ops, in order.
	snap, err := tl.Snapshot()
	require.NoError(t, err)
	defer snap.Close()

	count := 0
	for {
		op, err := snap.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, "post", op.UID)
		require.Equal(t, int64(count), op.Version)
		count++
	}
	require.Equal(t, 5, count)
}

// TestFileSetInvariant is spec.md §8 property 5: after any sequence of
// structural operations, the on-disk set equals {current} ∪ {transient}.
func TestFileSetInvariant(t *testing.T) {
	dir := t.TempDir()
	tl, err := Open(Config{DataPaths: []string{dir}, FreeSpace: fixedFreeSpace(100)})
	require.NoError(t, err)

	require.NoError(t, tl.NewTranslog(5))
	require.NoError(t, tl.NewTransientTranslog(6))
	require.NoError(t, tl.RevertTransient())
	require.NoError(t, tl.NewTransientTranslog(7))
	require.NoError(t, tl.MakeTransientCurrent())

	n, err := tl.ClearUnreferenced()
	require.NoError(t, err)
	require.Equal(t, 0, n, "no orphans should remain once clear runs right after a clean transition sequence")

	want := map[string]bool{fileName(tl.CurrentID()): true}
	require.Equal(t, want, filesInDir(t, dir))
}

// TestClearUnreferencedDeletesOrphans covers an orphan file left behind
// by a process that crashed mid-rotation.
func TestClearUnreferencedDeletesOrphans(t *testing.T) {
	dir := t.TempDir()
	tl, err := Open(Config{DataPaths: []string{dir}, FreeSpace: fixedFreeSpace(100)})
	require.NoError(t, err)

	// Simulate an orphan: a file nobody references.
	orphan := filepath.Join(dir, fileName(999))
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0o644))

	n, err := tl.ClearUnreferenced()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, statErr := os.Stat(orphan)
	require.True(t, os.IsNotExist(statErr))
}

func TestLeastFreeSpacePlacement(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	free := map[string]uint64{dirA: 500, dirB: 10}
	tl, err := Open(Config{
		DataPaths: []string{dirA, dirB},
		FreeSpace: func(dir string) (uint64, error) { return free[dir], nil },
	})
	require.NoError(t, err)

	_, statB := os.Stat(filepath.Join(dirB, fileName(tl.CurrentID())))
	require.NoError(t, statB, "new file should land in the directory with the least free space")
}
