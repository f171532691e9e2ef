package actions

import (
	"context"
	"fmt"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
	"github.com/cuemby/meridian/pkg/engine"
	"github.com/cuemby/meridian/pkg/replication"
)

// BulkOp distinguishes the operation a BulkItemRequest carries. §9's
// design note ("concrete write actions are data, not subclasses") means
// a bulk item is one struct with an op discriminator, not a separate
// Action per op — the shard it resolves to only ever sees one of the two
// branches below.
type BulkOp int

const (
	BulkIndex BulkOp = iota
	BulkDelete
)

// BulkItemRequest is the body of one item within a bulk write, carried as
// WriteRequest.Body. A real bulk API call is split into one
// BulkItemRequest per document by the caller (the shard resolution below
// is per-item, same as a single index/delete write), since a single
// cluster write targets exactly one shard per spec.md §4.1 — bulk
// traffic, which in the original system dominates the write path, is
// many single-shard writes pipelined rather than one multi-shard
// request this coordinator would have no way to apply atomically.
type BulkItemRequest struct {
	Op     BulkOp
	UID    string
	Source []byte // unused when Op == BulkDelete
}

// BulkItemReplicaBody mirrors IndexReplicaBody/DeleteReplicaBody, folding
// both into one payload shape keyed by Op.
type BulkItemReplicaBody struct {
	Op      BulkOp
	UID     string
	Source  []byte
	Version int64
}

// BulkItemResponse is the caller-facing payload of one applied bulk item.
type BulkItemResponse struct {
	Op      BulkOp
	Version int64
	Created bool
}

// NewBulkItemAction builds the bulk-item write Action against store. It
// shares ResolveShard with index and delete so all three route the same
// UID the same way, and at ApplyOnPrimary/ApplyOnReplica dispatches on
// Op to the same engine.Shard methods NewIndexAction/NewDeleteAction use.
func NewBulkItemAction(store *engine.Store) *replication.Action {
	return &replication.Action{
		Name:                  "bulk_item",
		CheckWriteConsistency: true,
		Resolve: func(state *cluster.ClusterState, req replication.WriteRequest) (cluster.ShardID, error) {
			body, ok := req.Body.(BulkItemRequest)
			if !ok {
				return cluster.ShardID{}, fmt.Errorf("actions: bulk item request has wrong body type %T", req.Body)
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
				return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "bulk item action given a non-engine shard", nil)
			}
			body := req.Body.(BulkItemRequest)

			switch body.Op {
			case BulkIndex:
				result, err := sh.IndexPrimary(body.UID, body.Source)
				if err != nil {
					return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "applying bulk index on primary", err)
				}
				resp := BulkItemResponse{Op: BulkIndex, Version: result.Version, Created: result.Created}
				replicaReq := replication.ReplicaRequest{
					ShardID: sh.ShardID(),
					Payload: BulkItemReplicaBody{Op: BulkIndex, UID: body.UID, Source: body.Source, Version: result.Version},
				}
				return resp, replicaReq, nil
			case BulkDelete:
				result, err := sh.DeletePrimary(body.UID)
				if err != nil {
					return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindUnexpectedPrimary, "applying bulk delete on primary", err)
				}
				resp := BulkItemResponse{Op: BulkDelete, Version: result.Version}
				replicaReq := replication.ReplicaRequest{
					ShardID: sh.ShardID(),
					Payload: BulkItemReplicaBody{Op: BulkDelete, UID: body.UID, Version: result.Version},
				}
				return resp, replicaReq, nil
			default:
				return nil, replication.ReplicaRequest{}, coordfail.New(coordfail.KindValidation, fmt.Sprintf("bulk item: unknown op %d", body.Op), nil)
			}
		},
		ApplyOnReplica: func(ctx context.Context, shard replication.LocalShard, req replication.ReplicaRequest) error {
			sh, ok := shard.(*engine.Shard)
			if !ok {
				return coordfail.New(coordfail.KindUnexpectedReplica, "bulk item action given a non-engine shard", nil)
			}
			body := req.Payload.(BulkItemReplicaBody)

			switch body.Op {
			case BulkIndex:
				if err := sh.IndexReplica(body.UID, body.Source, body.Version); err != nil {
					return coordfail.New(coordfail.KindUnexpectedReplica, "applying bulk index on replica", err)
				}
				return nil
			case BulkDelete:
				if err := sh.DeleteReplica(body.UID, body.Version); err != nil {
					return coordfail.New(coordfail.KindUnexpectedReplica, "applying bulk delete on replica", err)
				}
				return nil
			default:
				return coordfail.New(coordfail.KindUnexpectedReplica, fmt.Sprintf("bulk item: unknown op %d", body.Op), nil)
			}
		},
	}
}
