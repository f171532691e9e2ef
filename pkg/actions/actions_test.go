package actions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/engine"
	"github.com/cuemby/meridian/pkg/replication"
	"github.com/cuemby/meridian/pkg/translog"
)

type singleNodePublisher struct {
	state *cluster.ClusterState
}

func (p *singleNodePublisher) Current() *cluster.ClusterState { return p.state }
func (p *singleNodePublisher) Subscribe() (<-chan *cluster.ClusterState, func()) {
	ch := make(chan *cluster.ClusterState)
	return ch, func() {}
}
func (p *singleNodePublisher) Closing() bool { return false }

func newSingleNodeCoordinator(t *testing.T) (*replication.Coordinator, *engine.Store) {
	t.Helper()
	id := cluster.ShardID{Index: "docs", Shard: 0}
	dir := t.TempDir()
	tl, err := translog.Open(translog.Config{
		DataPaths: []string{dir},
		FreeSpace: func(string) (uint64, error) { return 100, nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tl.Close(false) })

	routing := cluster.ShardRouting{ShardID: id, NodeID: "node-1", Primary: true, State: cluster.Started}
	store := engine.NewStore()
	store.Put(engine.NewShard(routing, tl, nil))

	state := &cluster.ClusterState{
		Version: 1,
		Nodes:   map[string]cluster.NodeInfo{"node-1": {ID: "node-1"}},
		Metadata: map[string]cluster.IndexMetadata{
			"docs": {UUID: "uuid-1", NumShards: 1, NumReplicas: 0},
		},
		RoutingTable: map[string]map[int][]cluster.ShardRouting{
			"docs": {0: {routing}},
		},
	}

	coord := &replication.Coordinator{
		NodeID:  "node-1",
		Cluster: &singleNodePublisher{state: state},
		Local:   store,
	}
	return coord, store
}

func TestIndexThenDeleteEndToEnd(t *testing.T) {
	coord, store := newSingleNodeCoordinator(t)
	indexAction := NewIndexAction(store)
	deleteAction := NewDeleteAction(store)

	resp, err := coord.Execute(context.Background(), indexAction, replication.WriteRequest{
		TargetIndex: "docs",
		RoutingKey:  "doc-1",
		Body:        IndexRequest{UID: "doc-1", Source: []byte(`{"a":1}`)},
		Consistency: cluster.ConsistencyOne,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	ir := resp.Payload.(IndexResponse)
	require.Equal(t, int64(1), ir.Version)
	require.True(t, ir.Created)
	require.Equal(t, 1, resp.Shards.Total)
	require.Equal(t, 1, resp.Shards.Successful)

	sh, ok := store.Shard(cluster.ShardID{Index: "docs", Shard: 0})
	require.True(t, ok)
	src, version, ok := sh.Get("doc-1")
	require.True(t, ok)
	require.Equal(t, int64(1), version)
	require.Equal(t, []byte(`{"a":1}`), src)

	delResp, err := coord.Execute(context.Background(), deleteAction, replication.WriteRequest{
		TargetIndex: "docs",
		RoutingKey:  "doc-1",
		Body:        DeleteRequest{UID: "doc-1"},
		Consistency: cluster.ConsistencyOne,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	dr := delResp.Payload.(DeleteResponse)
	require.Equal(t, int64(2), dr.Version)

	_, _, ok = sh.Get("doc-1")
	require.False(t, ok)
}

func TestBulkItemIndexThenDelete(t *testing.T) {
	coord, store := newSingleNodeCoordinator(t)
	bulkAction := NewBulkItemAction(store)

	resp, err := coord.Execute(context.Background(), bulkAction, replication.WriteRequest{
		TargetIndex: "docs",
		RoutingKey:  "doc-2",
		Body:        BulkItemRequest{Op: BulkIndex, UID: "doc-2", Source: []byte(`{"b":2}`)},
		Consistency: cluster.ConsistencyOne,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	ir := resp.Payload.(BulkItemResponse)
	require.Equal(t, BulkIndex, ir.Op)
	require.Equal(t, int64(1), ir.Version)
	require.True(t, ir.Created)

	sh, ok := store.Shard(cluster.ShardID{Index: "docs", Shard: 0})
	require.True(t, ok)
	src, version, ok := sh.Get("doc-2")
	require.True(t, ok)
	require.Equal(t, int64(1), version)
	require.Equal(t, []byte(`{"b":2}`), src)

	delResp, err := coord.Execute(context.Background(), bulkAction, replication.WriteRequest{
		TargetIndex: "docs",
		RoutingKey:  "doc-2",
		Body:        BulkItemRequest{Op: BulkDelete, UID: "doc-2"},
		Consistency: cluster.ConsistencyOne,
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	dr := delResp.Payload.(BulkItemResponse)
	require.Equal(t, BulkDelete, dr.Op)
	require.Equal(t, int64(2), dr.Version)

	_, _, ok = sh.Get("doc-2")
	require.False(t, ok)
}
