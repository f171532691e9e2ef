package shardstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
)

func TestDrainOrdersStartedAheadOfFailed(t *testing.T) {
	r := NewReporter(10)
	id := cluster.ShardID{Index: "docs", Shard: 0}

	r.ShardFailed(id, "a-1", "uuid-1", "disk error")
	require.NoError(t, r.ShardStarted(id, "a-2", "uuid-1", "node-1"))

	batch := r.Drain(10)
	require.Len(t, batch, 2)
	require.Equal(t, Started, batch[0].Kind, "started reports queue ahead of failed ones")
	require.Equal(t, Failed, batch[1].Kind)
}

func TestDrainDeduplicatesSameAllocationAndKind(t *testing.T) {
	r := NewReporter(10)
	id := cluster.ShardID{Index: "docs", Shard: 0}

	require.NoError(t, r.ShardStarted(id, "a-1", "uuid-1", "node-1"))
	require.NoError(t, r.ShardStarted(id, "a-1", "uuid-1", "node-1"))
	r.ShardFailed(id, "a-1", "uuid-1", "crashed")

	batch := r.Drain(10)
	// The two duplicate Started reports for a-1 collapse into one; the
	// later Failed report for the same allocation is a distinct kind and
	// survives as its own entry.
	require.Len(t, batch, 2)
	require.Equal(t, Started, batch[0].Kind)
	require.Equal(t, Failed, batch[1].Kind)
}

func TestSubmitFailsAtCapacity(t *testing.T) {
	r := NewReporter(1)
	id := cluster.ShardID{Index: "docs", Shard: 0}
	require.NoError(t, r.ShardStarted(id, "a-1", "uuid-1", "node-1"))
	err := r.ShardStarted(id, "a-2", "uuid-1", "node-1")
	require.Error(t, err)
}

func TestApplyFoldsStartedAndFailedReports(t *testing.T) {
	id := cluster.ShardID{Index: "docs", Shard: 0}
	base := &cluster.ClusterState{
		Version: 1,
		RoutingTable: map[string]map[int][]cluster.ShardRouting{
			"docs": {0: {
				{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Started, AllocationID: "a-primary"},
				{ShardID: id, AllocationID: "a-replica", State: cluster.Initializing, NodeID: "node-2"},
			}},
		},
	}

	reports := []*Report{
		{ShardID: id, AllocationID: "a-replica", Kind: Started, NodeID: "node-2"},
	}
	next := Apply(base, reports)

	require.Equal(t, uint64(2), next.Version)
	copies := next.ShardCopies(id)
	require.Len(t, copies, 2)
	require.Equal(t, cluster.Started, copies[1].State)
	require.Nil(t, copies[1].UnassignedInfo)

	// base is untouched.
	require.Equal(t, cluster.Initializing, base.RoutingTable["docs"][0][1].State)

	failReports := []*Report{
		{ShardID: id, AllocationID: "a-replica", Kind: Failed, Reason: "node lost"},
	}
	failed := Apply(next, failReports)
	copies = failed.ShardCopies(id)
	require.Equal(t, cluster.Unassigned, copies[1].State)
	require.Equal(t, "", copies[1].NodeID)
	require.NotNil(t, copies[1].UnassignedInfo)
	require.Equal(t, cluster.ReasonNodeLeft, copies[1].UnassignedInfo.Reason)
	require.Equal(t, "node lost", copies[1].UnassignedInfo.Details)
}

// TestApplyDiscardsStaleIndexUUID covers spec.md §4.2: an entry whose
// IndexUUID no longer matches current metadata (the index was deleted
// and recreated in between) is silently dropped rather than applied.
func TestApplyDiscardsStaleIndexUUID(t *testing.T) {
	id := cluster.ShardID{Index: "docs", Shard: 0}
	base := &cluster.ClusterState{
		Version: 1,
		Metadata: map[string]cluster.IndexMetadata{
			"docs": {UUID: "uuid-current"},
		},
		RoutingTable: map[string]map[int][]cluster.ShardRouting{
			"docs": {0: {
				{ShardID: id, AllocationID: "a-replica", State: cluster.Initializing, NodeID: "node-2"},
			}},
		},
	}

	reports := []*Report{
		{ShardID: id, AllocationID: "a-replica", IndexUUID: "uuid-stale", Kind: Started, NodeID: "node-2"},
	}
	next := Apply(base, reports)
	copies := next.ShardCopies(id)
	require.Equal(t, cluster.Initializing, copies[0].State, "stale-UUID report must not apply")

	reports = []*Report{
		{ShardID: id, AllocationID: "a-replica", IndexUUID: "uuid-current", Kind: Started, NodeID: "node-2"},
	}
	next = Apply(base, reports)
	copies = next.ShardCopies(id)
	require.Equal(t, cluster.Started, copies[0].State, "matching-UUID report must apply")
}
