package metrics

import (
	"time"

	"github.com/cuemby/meridian/pkg/cluster"
)

// ShardStateQueue is the narrow view of a *shardstate.Reporter this
// collector needs; kept as an interface here so pkg/metrics does not
// import pkg/shardstate just to read one gauge.
type ShardStateQueue interface {
	Len() int
}

// Collector periodically samples cluster-state shape and shard-state
// reporter backlog into the package's gauges.
type Collector struct {
	cluster cluster.Publisher
	queue   ShardStateQueue
	stopCh  chan struct{}
}

// NewCollector creates a metrics collector sampling pub's current
// snapshot and (if non-nil) queue's backlog depth.
func NewCollector(pub cluster.Publisher, queue ShardStateQueue) *Collector {
	return &Collector{cluster: pub, queue: queue, stopCh: make(chan struct{})}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectClusterState()
	if c.queue != nil {
		ShardStateQueueDepth.Set(float64(c.queue.Len()))
	}
}

func (c *Collector) collectClusterState() {
	if c.cluster == nil {
		return
	}
	state := c.cluster.Current()
	if state == nil {
		return
	}
	ClusterStateVersion.Set(float64(state.Version))

	byState := map[cluster.ShardRoutingState]int{}
	byReason := map[string]int{}
	for _, byShard := range state.RoutingTable {
		for _, copies := range byShard {
			for _, copy := range copies {
				byState[copy.State]++
				if copy.State == cluster.Unassigned && copy.UnassignedInfo != nil {
					byReason[reasonLabel(copy.UnassignedInfo.Reason)]++
				}
			}
		}
	}
	for _, s := range []cluster.ShardRoutingState{cluster.Unassigned, cluster.Initializing, cluster.Started, cluster.Relocating} {
		ShardsTotal.WithLabelValues(string(s)).Set(float64(byState[s]))
	}
	for reason, count := range byReason {
		UnassignedShardsTotal.WithLabelValues(reason).Set(float64(count))
	}
}

func reasonLabel(r cluster.UnassignedReason) string {
	switch r {
	case cluster.ReasonIndexCreated:
		return "index_created"
	case cluster.ReasonClusterRecovered:
		return "cluster_recovered"
	case cluster.ReasonIndexReopened:
		return "index_reopened"
	case cluster.ReasonDanglingIndexImported:
		return "dangling_index_imported"
	case cluster.ReasonNewIndexRestored:
		return "new_index_restored"
	case cluster.ReasonExistingIndexRestored:
		return "existing_index_restored"
	case cluster.ReasonReplicaAdded:
		return "replica_added"
	case cluster.ReasonAllocationFailed:
		return "allocation_failed"
	case cluster.ReasonNodeLeft:
		return "node_left"
	case cluster.ReasonRerouteCancelled:
		return "reroute_cancelled"
	default:
		return "unknown"
	}
}
