package shardstate

import "github.com/cuemby/meridian/pkg/cluster"

// Apply produces the cluster state one version past base with reports
// folded into the routing table: a Started report clears
// UnassignedInfo and marks the matching copy STARTED; a Failed report
// marks it UNASSIGNED with a NodeLeft reason carrying the report's
// Reason text. Matching is by AllocationID, the one identifier spec.md
// §3 guarantees is stable across a copy's relocations.
//
// Apply never mutates base: every map it touches is replaced wholesale,
// so every previously-handed-out *cluster.ClusterState (in particular
// anything an Observer still holds) stays valid, per cluster.ClusterState
// WithVersion's contract.
func Apply(base *cluster.ClusterState, reports []*Report) *cluster.ClusterState {
	if len(reports) == 0 {
		return base
	}

	byAlloc := map[cluster.AllocationID]*Report{}
	for _, r := range reports {
		// Discard entries for an index incarnation that no longer
		// exists: the index was deleted (and possibly recreated under
		// the same name, minting a new UUID) between the report being
		// submitted and this batch draining. Spec.md §4.2: "entries
		// whose index UUID no longer matches the current metadata are
		// discarded silently."
		if r.IndexUUID != "" {
			if uuid, ok := base.IndexUUID(r.ShardID.Index); !ok || uuid != r.IndexUUID {
				continue
			}
		}
		byAlloc[r.AllocationID] = r
	}
	if len(byAlloc) == 0 {
		return base
	}

	next := base.WithVersion(base.Version + 1)
	newTable := make(map[string]map[int][]cluster.ShardRouting, len(base.RoutingTable))
	for index, byShard := range base.RoutingTable {
		newByShard := make(map[int][]cluster.ShardRouting, len(byShard))
		for shard, copies := range byShard {
			newCopies := make([]cluster.ShardRouting, len(copies))
			for i, c := range copies {
				if rep, ok := byAlloc[c.AllocationID]; ok {
					c = applyReport(c, rep)
				}
				newCopies[i] = c
			}
			newByShard[shard] = newCopies
		}
		newTable[index] = newByShard
	}
	next.RoutingTable = newTable
	return next
}

func applyReport(c cluster.ShardRouting, rep *Report) cluster.ShardRouting {
	switch rep.Kind {
	case Started:
		c.State = cluster.Started
		c.UnassignedInfo = nil
	case Failed:
		c.State = cluster.Unassigned
		c.NodeID = ""
		c.RelocatingToNodeID = ""
		c.UnassignedInfo = cluster.NewUnassignedInfo(cluster.ReasonNodeLeft, rep.Reason)
	}
	return c
}
