package shardstate

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/cuemby/meridian/pkg/cluster"
)

// Reporter is the master-side queue of pending shard-state reports. It
// is safe for concurrent ShardStarted/ShardFailed calls from many
// transport handlers; Drain
// is meant to be called from a single dedicated goroutine that applies
// batches to the routing table, matching the single-writer discipline
// the rest of this codebase uses for structural state transitions.
type Reporter struct {
	mu       sync.Mutex
	queue    reportHeap
	capacity int
	seq      uint64
	notify   chan struct{}
}

// NewReporter returns a Reporter that holds at most capacity pending
// reports. A submission is rejected once the queue is full rather than
// blocking (ShardStarted returns the error, ShardFailed discards it) —
// backpressure onto the reporting node, not onto the master's transport
// goroutines.
func NewReporter(capacity int) *Reporter {
	return &Reporter{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// ShardStarted submits a Started report.
func (r *Reporter) ShardStarted(id cluster.ShardID, alloc cluster.AllocationID, indexUUID, nodeID string) error {
	return r.submit(Report{ShardID: id, AllocationID: alloc, IndexUUID: indexUUID, NodeID: nodeID, Kind: Started})
}

// ShardFailed submits a Failed report. Its signature matches
// pkg/replication's ReplicaFailureReporter so a Coordinator can hold a
// *Reporter directly.
func (r *Reporter) ShardFailed(id cluster.ShardID, alloc cluster.AllocationID, indexUUID, reason string) {
	// A full queue must never block or panic a write-path caller, so the
	// error is deliberately discarded here rather than propagated. The
	// dropped report is lost; nothing in this package re-submits it.
	_ = r.submit(Report{ShardID: id, AllocationID: alloc, IndexUUID: indexUUID, Kind: Failed, Reason: reason})
}

func (r *Reporter) submit(rep Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) >= r.capacity {
		return fmt.Errorf("shardstate: reporter queue at capacity (%d)", r.capacity)
	}
	r.seq++
	rep.seq = r.seq
	heap.Push(&r.queue, &rep)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

// Notify returns a channel that receives a value after a report is
// submitted (at most one signal stays buffered until it is read), so a
// drain loop can block on it instead of polling.
func (r *Reporter) Notify() <-chan struct{} { return r.notify }

// Drain pops up to max pending reports in priority order, de-duplicating
// by (ShardID, AllocationID, Kind) so a flood of repeated reports for the
// same copy collapses into the earliest-submitted one before it ever reaches
// the routing-table update (spec.md §4.2: "batched, not one state
// transition per report").
func (r *Reporter) Drain(max int) []*Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	type key struct {
		id    cluster.ShardID
		alloc cluster.AllocationID
		kind  Kind
	}
	seen := map[key]bool{}
	var out []*Report

	for len(r.queue) > 0 && len(out) < max {
		rep := heap.Pop(&r.queue).(*Report)
		k := key{rep.ShardID, rep.AllocationID, rep.Kind}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, rep)
	}
	return out
}

// Len reports the number of pending reports, for tests and metrics.
func (r *Reporter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
