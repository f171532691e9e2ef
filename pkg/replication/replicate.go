package replication

import (
	"context"
	"sync"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/coordfail"
)

// target is one physical destination for a replicated write. A RELOCATING
// copy produces two targets (source and relocation target) from one
// routing entry, per spec.md §3's note that relocation is a dual
// placement.
type target struct {
	nodeID       string
	shardID      cluster.ShardID
	allocationID cluster.AllocationID
}

// classifyTargets turns the shard's routing copies into the concrete node
// list the replication phase dispatches to, skipping the primary (already
// applied). It also returns skipped, the count of non-primary copies that
// are counted toward totalShards but never dispatched to: unassigned
// copies and, for shadow-replica indices, every replica (shadow replicas
// never receive the write path; they refresh from the primary's own
// store out of band, spec.md §3's ShadowReplicas flag). Per spec.md §4.4,
// totalShards = 1 (primary) + pendingDispatches + skipped.
func classifyTargets(copies []cluster.ShardRouting, primary cluster.ShardRouting, shadowReplicas bool) (out []target, skipped int) {
	for _, c := range copies {
		switch {
		case c.Primary && c.NodeID == primary.NodeID:
			// This is the copy we already applied to locally (or forwarded
			// to). If it's mid-relocation, the relocation target is a
			// distinct physical placement that still needs the write.
			if c.State == cluster.Relocating {
				out = append(out, target{nodeID: c.RelocatingToNodeID, shardID: c.ShardID, allocationID: c.AllocationID})
			}
			continue
		case c.State == cluster.Unassigned:
			skipped++
		case shadowReplicas:
			skipped++
		case c.State == cluster.Relocating:
			out = append(out,
				target{nodeID: c.NodeID, shardID: c.ShardID, allocationID: c.AllocationID},
				target{nodeID: c.RelocatingToNodeID, shardID: c.ShardID, allocationID: c.AllocationID},
			)
		case c.State == cluster.Started:
			// Covers both an ordinary replica and a copy that now carries
			// Primary itself on a different node than the one we already
			// applied to (a promotion racing this write): either way it
			// hasn't received this write yet, so it's dispatched as a
			// replica send.
			out = append(out, target{nodeID: c.NodeID, shardID: c.ShardID, allocationID: c.AllocationID})
		default:
			// Initializing: still recovering, not yet eligible to receive
			// the live write path.
			continue
		}
	}
	return out, skipped
}

// replicateToPeers dispatches replicaReq to every eligible copy
// concurrently and waits for all of them, tallying results. It never
// returns an error itself: a replica failure is absorbed into the tally
// (and, unless ignorable, reported to the shard-state reporter) rather
// than failing the whole write, matching spec.md §4.4 — the caller's
// write already succeeded once the primary applied it.
//
// observed is the *cluster.ClusterState the primary phase resolved
// shardID/copies/primary against. Per spec.md §4.4 the replication phase
// does a pre-flight topology reconciliation before fanning out: if the
// cluster has moved on since observed was read, copies is re-enumerated
// from the current snapshot and the dispatch carries canHaveDuplicates,
// since a copy present in both enumerations may already have received
// this write under the stale routing.
func (c *Coordinator) replicateToPeers(
	ctx context.Context,
	action *Action,
	observed *cluster.ClusterState,
	shardID cluster.ShardID,
	copies []cluster.ShardRouting,
	primary cluster.ShardRouting,
	replicaReq ReplicaRequest,
) ShardCounts {
	if current := c.Cluster.Current(); current.Version > observed.Version {
		copies = current.ShardCopies(shardID)
		replicaReq.CanHaveDuplicates = true
	}

	shadow := false
	indexUUID := ""
	if len(copies) > 0 {
		// All copies of one shard share the index's ShadowReplicas flag
		// and UUID; the caller already resolved it onto each routing
		// entry's owning index, so any copy's ShardID.Index is the one
		// we need.
		shadow = c.indexIsShadowReplicas(copies[0].ShardID)
		indexUUID = c.indexUUID(copies[0].ShardID)
	}
	targets, skipped := classifyTargets(copies, primary, shadow)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		tally ShardCounts
	)
	tally.Skipped = skipped
	tally.Total = len(targets) + skipped

	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			err := c.dispatchOne(ctx, action, t, replicaReq)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				tally.Successful++
				return
			}
			tally.Failed++
			if cf, ok := err.(*coordfail.Error); ok && cf.Kind.IgnorableOnReplica() {
				c.Logger.Debug().Err(err).Str("node", t.nodeID).Msg("ignorable replica failure")
				return
			}
			c.Logger.Warn().Err(err).Str("node", t.nodeID).Msg("replica failed, reporting to shard-state reporter")
			if c.Reporter != nil {
				c.Reporter.ShardFailed(t.shardID, t.allocationID, indexUUID, err.Error())
			}
		}(t)
	}
	wg.Wait()

	return tally
}

func (c *Coordinator) dispatchOne(ctx context.Context, action *Action, t target, req ReplicaRequest) error {
	req.ShardID = t.shardID
	if t.nodeID == c.NodeID {
		shard, ref, err := c.Local.Acquire(t.shardID)
		if err != nil {
			return coordfail.New(coordfail.KindShardNotAvailableYet, "acquiring local replica shard", err)
		}
		defer ref.Release()
		return action.ApplyOnReplica(ctx, shard, req)
	}
	return c.Transport.SendReplica(ctx, t.nodeID, action.Name, req)
}

// indexIsShadowReplicas looks up whether shardID's owning index is
// configured for shadow replicas. The observer-pinned snapshot used to
// resolve the shard earlier in this attempt is not threaded through this
// helper; it reads the index metadata from the publisher's current
// snapshot (c.Cluster.Current()) instead.
func (c *Coordinator) indexIsShadowReplicas(id cluster.ShardID) bool {
	state := c.Cluster.Current()
	md, ok := state.Metadata[id.Index]
	if !ok {
		return false
	}
	return md.ShadowReplicas
}

// indexUUID returns id's owning index's current UUID, stamped onto every
// ShardFailed report this attempt emits so the master can discard it if
// the index is deleted and recreated before the report drains (spec.md
// §4.2).
func (c *Coordinator) indexUUID(id cluster.ShardID) string {
	uuid, _ := c.Cluster.Current().IndexUUID(id.Index)
	return uuid
}
