package shardstatestore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
)

func TestSaveAndLoadVersion(t *testing.T) {
	s := openTemp(t)

	v, err := s.LoadVersion()
	require.NoError(t, err)
	require.Zero(t, v)

	require.NoError(t, s.SaveVersion(42))

	v, err = s.LoadVersion()
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)
}

func TestSaveAndLoadIndexMetadata(t *testing.T) {
	s := openTemp(t)

	md := cluster.IndexMetadata{
		UUID:        "uuid-1",
		NumShards:   3,
		NumReplicas: 1,
		Settings:    map[string]string{"refresh_interval": "1s"},
	}
	require.NoError(t, s.SaveIndexMetadata("docs", md))

	all, err := s.LoadAllIndexMetadata()
	require.NoError(t, err)
	require.Equal(t, md, all["docs"])

	require.NoError(t, s.DeleteIndexMetadata("docs"))
	all, err = s.LoadAllIndexMetadata()
	require.NoError(t, err)
	require.NotContains(t, all, "docs")
}

func TestSaveAndLoadRoutingTable(t *testing.T) {
	s := openTemp(t)

	id := cluster.ShardID{Index: "docs", Shard: 0}
	copies := []cluster.ShardRouting{
		{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Started, AllocationID: cluster.NewAllocationID()},
		{ShardID: id, NodeID: "node-2", Primary: false, State: cluster.Started, AllocationID: cluster.NewAllocationID()},
	}
	require.NoError(t, s.SaveShardCopies(id, copies))

	table, err := s.LoadRoutingTable()
	require.NoError(t, err)
	require.Equal(t, copies, table["docs"][0])
}

func TestSaveAndLoadClusterStateRoundTrip(t *testing.T) {
	s := openTemp(t)

	id := cluster.ShardID{Index: "docs", Shard: 0}
	state := &cluster.ClusterState{
		Version: 7,
		Metadata: map[string]cluster.IndexMetadata{
			"docs": {UUID: "uuid-1", NumShards: 1, NumReplicas: 1},
		},
		RoutingTable: map[string]map[int][]cluster.ShardRouting{
			"docs": {
				0: {{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Started}},
			},
		},
	}
	require.NoError(t, s.SaveClusterState(state))

	loaded, err := s.LoadClusterState()
	require.NoError(t, err)
	require.Equal(t, uint64(7), loaded.Version)
	require.Equal(t, state.Metadata, loaded.Metadata)
	require.Equal(t, state.RoutingTable, loaded.RoutingTable)
}

func openTemp(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
