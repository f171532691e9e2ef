package replication

import (
	"context"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
)

// runPrimaryLocally applies the write against this node's local primary
// copy, then fans out to replicas. It owns exactly one ShardReference
// acquisition, released on every exit path per invariant 3.
func (c *Coordinator) runPrimaryLocally(
	ctx context.Context,
	action *Action,
	req WriteRequest,
	state *cluster.ClusterState,
	shardID cluster.ShardID,
	copies []cluster.ShardRouting,
	primary cluster.ShardRouting,
) (Response, error) {
	shard, ref, err := c.Local.Acquire(shardID)
	if err != nil {
		return Response{}, coordfail.New(coordfail.KindShardNotAvailableYet,
			"acquiring local primary shard", err)
	}
	defer ref.Release()

	payload, replicaReq, err := action.ApplyOnPrimary(ctx, shard, req)
	if err != nil {
		if cf, ok := err.(*coordfail.Error); ok {
			return Response{}, cf
		}
		return Response{}, coordfail.New(coordfail.KindUnexpectedPrimary, "applying write on primary", err)
	}
	if req.CanHaveDuplicates {
		replicaReq.CanHaveDuplicates = true
	}

	// The primary copy itself always counts as one success; it already
	// applied the operation by the time we get here.
	tally := c.replicateToPeers(ctx, action, state, shardID, copies, primary, replicaReq)
	tally.Successful++
	tally.Total++

	return Response{Payload: payload, Shards: tally}, nil
}
