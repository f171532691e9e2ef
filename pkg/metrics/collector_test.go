package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
)

type fakePub struct{ state *cluster.ClusterState }

func (p fakePub) Current() *cluster.ClusterState { return p.state }
func (p fakePub) Subscribe() (<-chan *cluster.ClusterState, func()) {
	return make(chan *cluster.ClusterState), func() {}
}
func (p fakePub) Closing() bool { return false }

type fakeQueue struct{ n int }

func (q fakeQueue) Len() int { return q.n }

func TestCollectorSamplesClusterState(t *testing.T) {
	id := cluster.ShardID{Index: "docs", Shard: 0}
	state := &cluster.ClusterState{
		Version: 7,
		RoutingTable: map[string]map[int][]cluster.ShardRouting{
			"docs": {0: {
				{ShardID: id, State: cluster.Started, Primary: true},
				{ShardID: id, State: cluster.Unassigned, UnassignedInfo: cluster.NewUnassignedInfo(cluster.ReasonNodeLeft, "lost")},
			}},
		},
	}

	c := NewCollector(fakePub{state: state}, fakeQueue{n: 3})
	c.collect()

	require.Equal(t, float64(7), testutil.ToFloat64(ClusterStateVersion))
	require.Equal(t, float64(1), testutil.ToFloat64(ShardsTotal.WithLabelValues(string(cluster.Started))))
	require.Equal(t, float64(1), testutil.ToFloat64(ShardsTotal.WithLabelValues(string(cluster.Unassigned))))
	require.Equal(t, float64(1), testutil.ToFloat64(UnassignedShardsTotal.WithLabelValues("node_left")))
	require.Equal(t, float64(3), testutil.ToFloat64(ShardStateQueueDepth))
}
