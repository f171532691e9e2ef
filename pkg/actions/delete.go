package actions

import (
	"context"
	"fmt"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
	"github.com/cuemby/meridian/pkg/engine"
	"github.com/cuemby/meridian/pkg/replication"
)

// DeleteRequest is the body of a delete write.
type DeleteRequest struct {
	UID string
}

// DeleteReplicaBody mirrors IndexReplicaBody for deletes.
type DeleteReplicaBody struct {
	UID     string
	Version int64
}

// DeleteResponse is the caller-facing payload of a successful delete.
type DeleteResponse struct {
	Version int64
}

// NewDeleteAction builds the delete write Action against store.
func NewDeleteAction(store *engine.Store) *replication.Action {
	return &replication.Action{
		Name:                  "delete",
		CheckWriteConsistency: true,
		Resolve: func(state *cluster.ClusterState, req replication.WriteRequest) (cluster.ShardID, error) {
			body, ok := req.Body.(DeleteRequest)
			if !ok {
				return cluster.ShardID{}, fmt.Errorf("actions: delete request has wrong body type %T", req.Body)
			}
			routingKey := req.RoutingKey
			if routingKey == "" {
				routingKey = body.UID
			}
			return ResolveShard(state, req.TargetIndex, routingKey)
		},
		ApplyOnPrimary: func(ctx context.Context, shard replication.LocalShard, req replication.WriteRequest) (any, replication.ReplicaRequest, error) {
			sh, ok := shard.(*engine.Shard)
			if !ok {
				return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "delete action given a non-engine shard", nil)
			}
			body := req.Body.(DeleteRequest)
			result, err := sh.DeletePrimary(body.UID)
			if err != nil {
				return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "applying delete on primary", err)
			}
			resp := DeleteResponse{Version: result.Version}
			replicaReq := replication.ReplicaRequest{
				ShardID: sh.ShardID(),
				Payload: DeleteReplicaBody{UID: body.UID, Version: result.Version},
			}
			return resp, replicaReq, nil
		},
		ApplyOnReplica: func(ctx context.Context, shard replication.LocalShard, req replication.ReplicaRequest) error {
			sh, ok := shard.(*engine.Shard)
			if !ok {
				return coordfail.New(coordfail.KindUnexpectedReplica, "delete action given a non-engine shard", nil)
			}
			body := req.Payload.(DeleteReplicaBody)
			if err := sh.DeleteReplica(body.UID, body.Version); err != nil {
				return coordfail.New(coordfail.KindUnexpectedReplica, "applying delete on replica", err)
			}
			return nil
		},
	}
}
