package replication

import (
	"context"
	"time"

	"github.com/cuemby/meridian/pkg/cluster"
)

// WriteRequest is the caller-facing request for an index/delete/bulk-item
// write. TargetIndex and RoutingKey resolve a ShardID via Action.Resolve;
// Body is the action-specific payload (already decoded by the transport
// layer) and is opaque to the coordinator.
type WriteRequest struct {
	TargetIndex  string
	RoutingKey   string
	Body         any
	Consistency  cluster.ConsistencyLevel
	Timeout      time.Duration

	// CanHaveDuplicates is set once a retry may have already delivered
	// this write (spec.md §3, §4.3 step 4): a forwarding attempt to a
	// remote primary that failed on a not-available/connect/node-closed
	// transport error is retried with this set, since the remote side
	// may have applied the write before the failure was observed here.
	CanHaveDuplicates bool
}

// ReplicaRequest is what the primary phase hands the replication phase to
// ship to each replica copy. Payload is produced by Action.ApplyOnPrimary
// so it can carry the primary's assigned version/sequence rather than
// requiring replicas to recompute it (spec.md §4.4: "the replica applies
// the operation using the version the primary assigned, not its own").
type ReplicaRequest struct {
	ShardID           cluster.ShardID
	Payload           any
	CanHaveDuplicates bool
}

// Response is the action-specific payload returned to the caller once a
// write is judged successful per the write-consistency shard count.
type Response struct {
	Payload  any
	Shards   ShardCounts
}

// ShardCounts reports how many shard copies participated, matching
// spec.md's ShardInfo summary.
type ShardCounts struct {
	Total      int
	Successful int
	Failed     int
	Skipped    int
}

// Action bundles the behavior a concrete write operation (index, delete,
// bulk-item) supplies to the coordinator. Per spec.md §9's redesign note,
// these are plain functions rather than methods on a subclass hierarchy:
// a new write type is a new Action value, not a new type implementing an
// interface.
type Action struct {
	// Name identifies the action for logging/metrics, e.g. "index".
	Name string

	// CheckWriteConsistency gates whether Execute waits for
	// RequiredActiveShards before dispatching to the primary. Actions
	// that bypass consistency checks (e.g. administrative writes) set
	// this false.
	CheckWriteConsistency bool

	// Resolve maps a WriteRequest onto the ShardID that owns it
	// (typically a hash of RoutingKey modulo the index's shard count).
	Resolve func(state *cluster.ClusterState, req WriteRequest) (cluster.ShardID, error)

	// ApplyOnPrimary executes the write against the local primary
	// engine and returns the caller-facing payload plus the request to
	// forward to replicas. Returning a *coordfail.Error communicates
	// retryability per its Kind.
	ApplyOnPrimary func(ctx context.Context, shard LocalShard, req WriteRequest) (payload any, replicaReq ReplicaRequest, err error)

	// ApplyOnReplica executes the write against a replica engine.
	// Every error counts toward ShardCounts.Failed; errors classified
	// coordfail.Kind.IgnorableOnReplica() are only logged, while any
	// other error is also reported to the shard-state reporter.
	ApplyOnReplica func(ctx context.Context, shard LocalShard, req ReplicaRequest) error
}
