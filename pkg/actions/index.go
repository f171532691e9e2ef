package actions

import (
	"context"
	"fmt"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
	"github.com/cuemby/meridian/pkg/engine"
	"github.com/cuemby/meridian/pkg/replication"
)

// IndexRequest is the body of an index write, carried as WriteRequest.Body.
type IndexRequest struct {
	UID    string
	Source []byte
}

// IndexReplicaBody is what the primary forwards to replicas: the same
// document at the version the primary assigned.
type IndexReplicaBody struct {
	UID     string
	Source  []byte
	Version int64
}

// IndexResponse is the caller-facing payload of a successful index write.
type IndexResponse struct {
	Version int64
	Created bool
}

// NewIndexAction builds the index write Action against store.
func NewIndexAction(store *engine.Store) *replication.Action {
	return &replication.Action{
		Name:                  "index",
		CheckWriteConsistency: true,
		Resolve: func(state *cluster.ClusterState, req replication.WriteRequest) (cluster.ShardID, error) {
			body, ok := req.Body.(IndexRequest)
			if !ok {
				return cluster.ShardID{}, fmt.Errorf("actions: index request has wrong body type %T", req.Body)
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
				return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "index action given a non-engine shard", nil)
			}
			body := req.Body.(IndexRequest)
			result, err := sh.IndexPrimary(body.UID, body.Source)
			if err != nil {
				return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "applying index on primary", err)
			}
			resp := IndexResponse{Version: result.Version, Created: result.Created}
			replicaReq := replication.ReplicaRequest{
				ShardID: sh.ShardID(),
				Payload: IndexReplicaBody{UID: body.UID, Source: body.Source, Version: result.Version},
			}
			return resp, replicaReq, nil
		},
		ApplyOnReplica: func(ctx context.Context, shard replication.LocalShard, req replication.ReplicaRequest) error {
			sh, ok := shard.(*engine.Shard)
			if !ok {
				return coordfail.New(coordfail.KindUnexpectedReplica, "index action given a non-engine shard", nil)
			}
			body := req.Payload.(IndexReplicaBody)
			if err := sh.IndexReplica(body.UID, body.Source, body.Version); err != nil {
				return coordfail.New(coordfail.KindUnexpectedReplica, "applying index on replica", err)
			}
			return nil
		},
	}
}
