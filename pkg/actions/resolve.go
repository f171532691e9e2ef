package actions

import (
	"fmt"
	"hash/fnv"

	"github.com/cuemby/meridian/pkg/cluster"
)

// ResolveShard maps a routing key onto one of an index's shards, the way
// spec.md §4.1 describes: hash the routing key, take it modulo the
// index's shard count. Routing keys default to the document UID when the
// caller has no more specific partitioning key.
func ResolveShard(state *cluster.ClusterState, index, routingKey string) (cluster.ShardID, error) {
	md, ok := state.Metadata[index]
	if !ok {
		return cluster.ShardID{}, fmt.Errorf("actions: unknown index %q", index)
	}
	if md.NumShards <= 0 {
		return cluster.ShardID{}, fmt.Errorf("actions: index %q has no shards", index)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(routingKey))
	shard := int(h.Sum32() % uint32(md.NumShards))
	return cluster.ShardID{Index: index, Shard: shard}, nil
}
