package clusterharness

import (
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/shardstate"
)

func TestApplyCreateIndexBuildsUnassignedRouting(t *testing.T) {
	base := cluster.NewClusterState()

	next, err := applyCommand(base, Command{
		Op:        opCreateIndex,
		IndexName: "docs",
		IndexMetadata: cluster.IndexMetadata{
			UUID: "uuid-1", NumShards: 2, NumReplicas: 1,
		},
	})
	require.NoError(t, err)

	require.Equal(t, uint64(1), next.Version)
	require.Equal(t, uint64(0), base.Version, "base must not be mutated")
	require.Len(t, next.RoutingTable["docs"], 2)
	for shard := 0; shard < 2; shard++ {
		copies := next.RoutingTable["docs"][shard]
		require.Len(t, copies, 2)
		require.True(t, copies[0].Primary)
		require.False(t, copies[1].Primary)
		for _, c := range copies {
			require.Equal(t, cluster.Unassigned, c.State)
			require.NotEmpty(t, c.AllocationID)
		}
	}
}

func TestApplyDeleteIndexRemovesMetadataAndRouting(t *testing.T) {
	base, err := applyCommand(cluster.NewClusterState(), Command{
		Op: opCreateIndex, IndexName: "docs",
		IndexMetadata: cluster.IndexMetadata{NumShards: 1, NumReplicas: 0},
	})
	require.NoError(t, err)

	next, err := applyCommand(base, Command{Op: opDeleteIndex, IndexName: "docs"})
	require.NoError(t, err)

	_, hasMeta := next.Metadata["docs"]
	require.False(t, hasMeta)
	_, hasRouting := next.RoutingTable["docs"]
	require.False(t, hasRouting)
	require.Contains(t, base.RoutingTable, "docs", "base must not be mutated")
}

func TestApplySetAndClearIndexBlock(t *testing.T) {
	base, err := applyCommand(cluster.NewClusterState(), Command{
		Op: opCreateIndex, IndexName: "docs",
		IndexMetadata: cluster.IndexMetadata{NumShards: 1, NumReplicas: 0},
	})
	require.NoError(t, err)

	withBlock, err := applyCommand(base, Command{
		Op: opSetBlock, IndexName: "docs",
		Block: cluster.Block{ID: "read_only", Retryable: false},
	})
	require.NoError(t, err)
	require.Len(t, withBlock.Metadata["docs"].Blocks, 1)

	cleared, err := applyCommand(withBlock, Command{
		Op: opClearBlock, IndexName: "docs",
		Block: cluster.Block{ID: "read_only"},
	})
	require.NoError(t, err)
	require.Empty(t, cleared.Metadata["docs"].Blocks)
}

func TestApplyNodeLeaveUnassignsItsCopies(t *testing.T) {
	id := cluster.ShardID{Index: "docs", Shard: 0}
	base := cluster.NewClusterState()
	base.Nodes["node-1"] = cluster.NodeInfo{ID: "node-1"}
	base.RoutingTable["docs"] = map[int][]cluster.ShardRouting{
		0: {
			{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Started},
			{ShardID: id, NodeID: "node-2", Primary: false, State: cluster.Started},
		},
	}

	next, err := applyCommand(base, Command{Op: opNodeLeave, NodeID: "node-1"})
	require.NoError(t, err)

	_, stillThere := next.Nodes["node-1"]
	require.False(t, stillThere)

	copies := next.RoutingTable["docs"][0]
	require.Equal(t, cluster.Unassigned, copies[0].State)
	require.NotNil(t, copies[0].UnassignedInfo)
	require.Equal(t, cluster.ReasonNodeLeft, copies[0].UnassignedInfo.Reason)
	require.Equal(t, cluster.Started, copies[1].State, "other node's copy is untouched")

	require.Equal(t, cluster.Started, base.RoutingTable["docs"][0][0].State, "base must not be mutated")
}

func TestApplyReportsDelegatesToShardstate(t *testing.T) {
	id := cluster.ShardID{Index: "docs", Shard: 0}
	alloc := cluster.NewAllocationID()
	base := cluster.NewClusterState()
	base.RoutingTable["docs"] = map[int][]cluster.ShardRouting{
		0: {{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Initializing, AllocationID: alloc}},
	}

	next, err := applyCommand(base, Command{
		Op: opApplyReports,
		Reports: []*shardstate.Report{
			{ShardID: id, AllocationID: alloc, NodeID: "node-1", Kind: shardstate.Started},
		},
	})
	require.NoError(t, err)
	require.Equal(t, cluster.Started, next.RoutingTable["docs"][0][0].State)
}

func TestFSMApplyPublishesToSubscribers(t *testing.T) {
	fsm := NewFSM()
	changes, unsubscribe := fsm.Subscribe()
	defer unsubscribe()

	data, err := encodeCommand(Command{
		Op: opCreateIndex, IndexName: "docs",
		IndexMetadata: cluster.IndexMetadata{NumShards: 1, NumReplicas: 0},
	})
	require.NoError(t, err)

	result := fsm.Apply(&raft.Log{Data: data})
	state, ok := result.(*cluster.ClusterState)
	require.True(t, ok)
	require.Equal(t, uint64(1), state.Version)

	select {
	case got := <-changes:
		require.Equal(t, state, got)
	default:
		t.Fatal("expected a published change")
	}
	require.Equal(t, state, fsm.Current())
}
