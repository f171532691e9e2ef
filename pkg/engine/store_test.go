package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
)

func TestStoreAcquireReleaseRoundTrip(t *testing.T) {
	store := NewStore()
	sh := newTestShard(t)
	store.Put(sh)

	local, ref, err := store.Acquire(sh.ShardID())
	require.NoError(t, err)
	require.Same(t, sh, local)
	ref.Release()

	_, _, err = store.Acquire(cluster.ShardID{Index: "missing", Shard: 0})
	require.Error(t, err)
}

func TestStoreRemove(t *testing.T) {
	store := NewStore()
	sh := newTestShard(t)
	store.Put(sh)
	store.Remove(sh.ShardID())

	_, _, err := store.Acquire(sh.ShardID())
	require.Error(t, err)
}
