package replication

import (
	"context"

	"github.com/cuemby/meridian/pkg/cluster"
)

// Transport is the coordinator's view of the wire: forward a write to the
// node holding the primary, or push a replica request to a node holding a
// replica copy. pkg/transport supplies a grpc-backed implementation;
// tests in this package use an in-memory fake.
type Transport interface {
	SendPrimary(ctx context.Context, nodeID string, actionName string, req WriteRequest) (Response, error)
	SendReplica(ctx context.Context, nodeID string, actionName string, req ReplicaRequest) error
}

// ReplicaFailureReporter is the shard-state reporter's view from this
// package: a replica that fails to apply an operation gets reported to
// the master so it can be removed from the in-sync set (spec.md §4.4,
// §4.2). pkg/shardstate's Reporter implements this.
type ReplicaFailureReporter interface {
	ShardFailed(shardID cluster.ShardID, allocationID cluster.AllocationID, indexUUID, reason string)
}
