package replication

import (
	"sync/atomic"

	"github.com/cuemby/meridian/pkg/cluster"
)

// LocalShard is the engine-facing collaborator the coordinator acquires
// before applying a write, per spec.md §6's Engine/IndexShard boundary.
// Meridian's reference implementation lives in pkg/engine; this interface
// is the only contract the coordinator depends on.
type LocalShard interface {
	ShardID() cluster.ShardID
	Routing() cluster.ShardRouting
}

// LocalShards resolves a ShardID to a locally-held shard copy, handing
// back a ShardReference that pins the shard open for the duration of one
// operation (spec.md §3: "ShardReference — a scoped ownership token").
// Acquire fails if the shard is not held locally, is closing, or its
// operation counter cannot be incremented (shard is being torn down).
type LocalShards interface {
	Acquire(id cluster.ShardID) (LocalShard, *ShardReference, error)
}

// ShardReference is a scoped, single-release ownership token over a local
// shard copy. Coordinator and replication-phase code must call Release
// exactly once on every exit path (invariant 3 in doc.go); calling it
// more than once is a no-op, not an error, so defer-based cleanup paired
// with an explicit early release never double-runs the release callback.
type ShardReference struct {
	release func()
	done    int32
}

// NewShardReference wraps a release callback. Engine implementations
// construct one of these per successful Acquire.
func NewShardReference(release func()) *ShardReference {
	return &ShardReference{release: release}
}

// Release runs the underlying release callback at most once.
func (r *ShardReference) Release() {
	if r == nil {
		return
	}
	if atomic.CompareAndSwapInt32(&r.done, 0, 1) {
		if r.release != nil {
			r.release()
		}
	}
}
