package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/translog"
)

func newTestShard(t *testing.T) *Shard {
	t.Helper()
	dir := t.TempDir()
	tl, err := translog.Open(translog.Config{
		DataPaths: []string{dir},
		FreeSpace: func(string) (uint64, error) { return 100, nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tl.Close(false) })

	id := cluster.ShardID{Index: "docs", Shard: 0}
	r := cluster.ShardRouting{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Started}
	return NewShard(r, tl, nil)
}

func TestIndexPrimaryAssignsIncreasingVersions(t *testing.T) {
	sh := newTestShard(t)

	r1, err := sh.IndexPrimary("doc-1", []byte("v1"))
	require.NoError(t, err)
	require.Equal(t, int64(1), r1.Version)
	require.True(t, r1.Created)

	r2, err := sh.IndexPrimary("doc-1", []byte("v2"))
	require.NoError(t, err)
	require.Equal(t, int64(2), r2.Version)
	require.False(t, r2.Created)

	src, version, ok := sh.Get("doc-1")
	require.True(t, ok)
	require.Equal(t, int64(2), version)
	require.Equal(t, []byte("v2"), src)
}

func TestIndexReplicaStaleVersionIsNoOp(t *testing.T) {
	sh := newTestShard(t)

	require.NoError(t, sh.IndexReplica("doc-1", []byte("v2"), 2))
	require.NoError(t, sh.IndexReplica("doc-1", []byte("v1-late"), 1))

	_, version, ok := sh.Get("doc-1")
	require.True(t, ok)
	require.Equal(t, int64(2), version, "a stale replay must not roll the document back")
}

func TestDeletePrimaryThenGetMisses(t *testing.T) {
	sh := newTestShard(t)

	_, err := sh.IndexPrimary("doc-1", []byte("v1"))
	require.NoError(t, err)

	result, err := sh.DeletePrimary("doc-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Version)

	_, _, ok := sh.Get("doc-1")
	require.False(t, ok)
}

func TestFailShardClosesAcquisition(t *testing.T) {
	sh := newTestShard(t)

	var reason string
	sh.onFail = func(r string, cause error) { reason = r }
	sh.FailShard("disk full", nil)
	require.Equal(t, "disk full", reason)

	_, err := sh.acquire()
	require.Error(t, err)
}
