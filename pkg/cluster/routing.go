package cluster

import (
	"time"

	"github.com/google/uuid"
)

// ShardRoutingState is the routing state of one shard copy.
type ShardRoutingState string

const (
	Unassigned  ShardRoutingState = "UNASSIGNED"
	Initializing ShardRoutingState = "INITIALIZING"
	Started     ShardRoutingState = "STARTED"
	Relocating  ShardRoutingState = "RELOCATING"
)

// UnassignedReason explains why a copy has no node assigned. The ordinal
// (its position in this list) is part of the wire form for ShardRouting;
// new reasons must only ever be appended.
type UnassignedReason int

const (
	ReasonUnknown UnassignedReason = iota
	ReasonIndexCreated
	ReasonClusterRecovered
	ReasonIndexReopened
	ReasonDanglingIndexImported
	ReasonNewIndexRestored
	ReasonExistingIndexRestored
	ReasonReplicaAdded
	ReasonAllocationFailed
	ReasonNodeLeft
	ReasonRerouteCancelled
)

// UnassignedInfo records why and when a copy became unassigned.
type UnassignedInfo struct {
	Reason         UnassignedReason
	TimestampMillis int64
	Details        string
}

// NewUnassignedInfo stamps the current time, matching how every other
// constructor in this package avoids asking the caller for a clock.
func NewUnassignedInfo(reason UnassignedReason, details string) *UnassignedInfo {
	return &UnassignedInfo{
		Reason:          reason,
		TimestampMillis: time.Now().UnixMilli(),
		Details:         details,
	}
}

// ShardRouting is one copy's placement: a shard either sits on a node in
// some routing state, or is UNASSIGNED with no node.
//
// A RELOCATING copy logically represents two physical placements — the
// source (this routing entry's NodeID) and the target
// (RelocatingToNodeID) — both of which must receive writes; see the
// replication phase's dispatch table in pkg/replication.
type ShardRouting struct {
	ShardID              ShardID
	NodeID                string // empty when Unassigned
	Primary               bool
	State                 ShardRoutingState
	RelocatingToNodeID    string // set only when State == Relocating
	AllocationID          AllocationID
	UnassignedInfo        *UnassignedInfo // set only when State == Unassigned
}

// NewAllocationID mints a fresh opaque allocation id for a newly assigned
// copy.
func NewAllocationID() AllocationID {
	return AllocationID(uuid.NewString())
}

// Active reports whether the copy is in a state that can receive writes:
// STARTED or RELOCATING. spec.md §4.3 step 2 uses exactly this predicate
// to decide whether a resolved primary is usable.
func (r ShardRouting) Active() bool {
	return r.State == Started || r.State == Relocating
}

// IsRelocating reports whether this copy is mid-relocation.
func (r ShardRouting) IsRelocating() bool {
	return r.State == Relocating
}

// ActiveShardCount counts the copies in a routing list that are Active,
// per spec.md §4.3 step 3 ("activeShards().size()").
func ActiveShardCount(copies []ShardRouting) int {
	n := 0
	for _, c := range copies {
		if c.Active() {
			n++
		}
	}
	return n
}

// Primary returns the routing entry with Primary set to true, if any.
// It does not filter by state; callers check Active() themselves so the
// "primary not active" and "no primary at all" cases stay distinguishable
// (spec.md §4.3 step 2).
func Primary(copies []ShardRouting) (ShardRouting, bool) {
	for _, c := range copies {
		if c.Primary {
			return c, true
		}
	}
	return ShardRouting{}, false
}
