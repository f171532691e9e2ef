/*
Package cluster defines Meridian's cluster-state data model: shard
identities, shard routing and its unassigned-reason metadata, the
cluster-state snapshot itself, and the Observer used by the write path to
wait for a newer snapshot instead of polling.

# Architecture

A ClusterState is an immutable, versioned snapshot published by an external
consensus service (see pkg/clusterharness for a reference Raft-backed
publisher used in tests). This package never mutates a ClusterState in
place; every routing-table change produces a new snapshot with a higher
Version. That lets the write path hold a reference to an observed state
across a network round trip without a lock: the snapshot simply can't
change under it.

	┌────────────────── CLUSTER STATE ──────────────────┐
	│                                                     │
	│  Version (monotonic)                                │
	│  Nodes        map[nodeID]NodeInfo                    │
	│  Metadata     map[index]IndexMetadata                │
	│  RoutingTable map[index]map[shardID][]ShardRouting   │
	│  GlobalBlocks []Block                                │
	└─────────────────────────────────────────────────────┘

# Invariant

For every allocated shard, exactly one ShardRouting in its copy list has
Primary set to true and a State in {Initializing, Started, Relocating}.
Construction helpers in this package do not enforce this invariant — it is
the publisher's responsibility (pkg/clusterharness enforces it before
publishing) — but ShardIterator and the replication package assume it
holds.

# Observer

Observer retains one observed snapshot and exposes WaitForNextChange,
which fires its listener exactly once with either a strictly newer
snapshot, a close notification, or a timeout. It is the only suspension
point in the primary phase's retry loop (spec §4.3 step 7): every retry
waits on new information rather than spinning.
*/
package cluster
