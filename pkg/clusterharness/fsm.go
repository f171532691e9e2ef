package clusterharness

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/shardstate"
)

// FSM is the hashicorp/raft state machine that derives ClusterState
// snapshots from committed Commands. It plays the role poc/raft's
// KeyValueFSM played for a toy map: the thing raft.Raft calls Apply on,
// the thing snapshots and restores, except the state it accumulates is
// a *cluster.ClusterState rather than a map[string]string.
type FSM struct {
	mu      sync.RWMutex
	current *cluster.ClusterState

	subMu       sync.Mutex
	subscribers map[chan *cluster.ClusterState]struct{}
	closing     bool
}

// NewFSM starts the FSM at an empty ClusterState, the same zero point
// cluster.NewClusterState documents new nodes observe before their
// first real snapshot arrives.
func NewFSM() *FSM {
	return &FSM{
		current:     cluster.NewClusterState(),
		subscribers: map[chan *cluster.ClusterState]struct{}{},
	}
}

// Apply decodes and applies one committed raft log entry. It returns
// the resulting *cluster.ClusterState (or an error), which raft.Apply's
// future surfaces back to the proposer.
func (f *FSM) Apply(log *raft.Log) interface{} {
	cmd, err := decodeCommand(log.Data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	base := f.current
	next, err := applyCommand(base, cmd)
	if err != nil {
		f.mu.Unlock()
		return err
	}
	f.current = next
	f.mu.Unlock()

	f.publish(next)
	return next
}

// Current returns the FSM's latest applied snapshot, implementing
// cluster.Publisher.
func (f *FSM) Current() *cluster.ClusterState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Subscribe registers a buffered channel that receives every
// subsequently applied snapshot, implementing cluster.Publisher.
func (f *FSM) Subscribe() (<-chan *cluster.ClusterState, func()) {
	ch := make(chan *cluster.ClusterState, 16)
	f.subMu.Lock()
	f.subscribers[ch] = struct{}{}
	f.subMu.Unlock()

	unsubscribe := func() {
		f.subMu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.subMu.Unlock()
	}
	return ch, unsubscribe
}

// Closing implements cluster.Publisher.
func (f *FSM) Closing() bool {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	return f.closing
}

// Close marks the FSM as shutting down and closes every subscriber
// channel, the signal cluster.Observer.WaitForNextChange treats as
// OnClusterServiceClose.
func (f *FSM) Close() {
	f.subMu.Lock()
	f.closing = true
	for ch := range f.subscribers {
		close(ch)
		delete(f.subscribers, ch)
	}
	f.subMu.Unlock()
}

func (f *FSM) publish(state *cluster.ClusterState) {
	f.subMu.Lock()
	defer f.subMu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- state:
		default:
			// Slow subscriber; pkg/cluster.Observer only ever cares about
			// the newest version, so a dropped intermediate snapshot is
			// harmless — the next send (or Current() on resubscribe) wins.
		}
	}
}

// Snapshot captures the current ClusterState for raft's snapshot store,
// mirroring poc/raft's KeyValueSnapshot but serializing a ClusterState
// instead of a bare map.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return &fsmSnapshot{state: f.current}, nil
}

// Restore replaces the FSM's state with a previously persisted
// snapshot.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var state cluster.ClusterState
	if err := json.NewDecoder(rc).Decode(&state); err != nil {
		return fmt.Errorf("clusterharness: restoring snapshot: %w", err)
	}

	f.mu.Lock()
	f.current = &state
	f.mu.Unlock()
	return nil
}

type fsmSnapshot struct {
	state *cluster.ClusterState
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		data, err := json.Marshal(s.state)
		if err != nil {
			return err
		}
		if _, err := sink.Write(data); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}

// applyCommand derives the next ClusterState from base and cmd. It
// never mutates base or any of its maps — every branch rebuilds the
// maps it touches wholesale, the same discipline shardstate.Apply uses
// so every previously observed *ClusterState stays valid.
func applyCommand(base *cluster.ClusterState, cmd Command) (*cluster.ClusterState, error) {
	if cmd.Op == opApplyReports {
		return shardstate.Apply(base, cmd.Reports), nil
	}

	next := base.WithVersion(base.Version + 1)

	switch cmd.Op {
	case opCreateIndex:
		metadata := copyMetadata(base.Metadata)
		metadata[cmd.IndexName] = cmd.IndexMetadata
		next.Metadata = metadata

		routing := copyRoutingTable(base.RoutingTable)
		routing[cmd.IndexName] = newIndexRouting(cmd.IndexName, cmd.IndexMetadata)
		next.RoutingTable = routing

	case opDeleteIndex:
		metadata := copyMetadata(base.Metadata)
		delete(metadata, cmd.IndexName)
		next.Metadata = metadata

		routing := copyRoutingTable(base.RoutingTable)
		delete(routing, cmd.IndexName)
		next.RoutingTable = routing

	case opSetBlock:
		metadata := copyMetadata(base.Metadata)
		md, ok := metadata[cmd.IndexName]
		if !ok {
			return nil, fmt.Errorf("clusterharness: set block on unknown index %q", cmd.IndexName)
		}
		md.Blocks = append(append([]cluster.Block{}, md.Blocks...), cmd.Block)
		metadata[cmd.IndexName] = md
		next.Metadata = metadata

	case opClearBlock:
		metadata := copyMetadata(base.Metadata)
		md, ok := metadata[cmd.IndexName]
		if !ok {
			return nil, fmt.Errorf("clusterharness: clear block on unknown index %q", cmd.IndexName)
		}
		kept := make([]cluster.Block, 0, len(md.Blocks))
		for _, b := range md.Blocks {
			if b.ID != cmd.Block.ID {
				kept = append(kept, b)
			}
		}
		md.Blocks = kept
		metadata[cmd.IndexName] = md
		next.Metadata = metadata

	case opSetGlobalBlock:
		next.GlobalBlocks = append(append([]cluster.Block{}, base.GlobalBlocks...), cmd.Block)

	case opNodeJoin:
		nodes := copyNodes(base.Nodes)
		nodes[cmd.NodeID] = cluster.NodeInfo{ID: cmd.NodeID, Addr: cmd.NodeAddr, Version: int64(next.Version)}
		next.Nodes = nodes

	case opNodeLeave:
		nodes := copyNodes(base.Nodes)
		delete(nodes, cmd.NodeID)
		next.Nodes = nodes
		next.RoutingTable = unassignCopiesOnNode(base.RoutingTable, cmd.NodeID)

	case opAssignShard:
		routing, err := assignShard(base.RoutingTable, cmd)
		if err != nil {
			return nil, err
		}
		next.RoutingTable = routing

	default:
		return nil, fmt.Errorf("clusterharness: unknown command op %q", cmd.Op)
	}

	return next, nil
}

func copyMetadata(m map[string]cluster.IndexMetadata) map[string]cluster.IndexMetadata {
	out := make(map[string]cluster.IndexMetadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyNodes(m map[string]cluster.NodeInfo) map[string]cluster.NodeInfo {
	out := make(map[string]cluster.NodeInfo, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyRoutingTable(rt map[string]map[int][]cluster.ShardRouting) map[string]map[int][]cluster.ShardRouting {
	out := make(map[string]map[int][]cluster.ShardRouting, len(rt))
	for index, byShard := range rt {
		shards := make(map[int][]cluster.ShardRouting, len(byShard))
		for shard, copies := range byShard {
			shards[shard] = append([]cluster.ShardRouting{}, copies...)
		}
		out[index] = shards
	}
	return out
}

// newIndexRouting builds every shard copy for a freshly created index,
// all UNASSIGNED with a fresh AllocationID: the allocator (outside this
// package's scope) is what later turns these into INITIALIZING and then
// STARTED copies via opApplyReports.
func newIndexRouting(index string, md cluster.IndexMetadata) map[int][]cluster.ShardRouting {
	shards := make(map[int][]cluster.ShardRouting, md.NumShards)
	for shardNum := 0; shardNum < md.NumShards; shardNum++ {
		id := cluster.ShardID{Index: index, Shard: shardNum}
		copies := make([]cluster.ShardRouting, 0, md.NumReplicas+1)
		for copyNum := 0; copyNum <= md.NumReplicas; copyNum++ {
			copies = append(copies, cluster.ShardRouting{
				ShardID:        id,
				Primary:        copyNum == 0,
				State:          cluster.Unassigned,
				AllocationID:   cluster.NewAllocationID(),
				UnassignedInfo: cluster.NewUnassignedInfo(cluster.ReasonIndexCreated, "index created"),
			})
		}
		shards[shardNum] = copies
	}
	return shards
}

// assignShard places cmd.NodeID onto the CopyIndex-th copy of
// IndexName's ShardNum, moving it from UNASSIGNED to INITIALIZING. This
// is the minimal stand-in for the allocator spec.md §1 excludes from the
// core: real Elasticsearch consults disk usage, awareness attributes and
// rebalancing heuristics; meridiond's CLI just needs a deterministic way
// to place a demo index's copies so the write path has something to
// exercise, so it accepts an explicit placement rather than computing
// one.
func assignShard(rt map[string]map[int][]cluster.ShardRouting, cmd Command) (map[string]map[int][]cluster.ShardRouting, error) {
	out := copyRoutingTable(rt)
	byShard, ok := out[cmd.IndexName]
	if !ok {
		return nil, fmt.Errorf("clusterharness: assign shard on unknown index %q", cmd.IndexName)
	}
	copies, ok := byShard[cmd.ShardNum]
	if !ok || cmd.CopyIndex < 0 || cmd.CopyIndex >= len(copies) {
		return nil, fmt.Errorf("clusterharness: %s][%d has no copy index %d", cmd.IndexName, cmd.ShardNum, cmd.CopyIndex)
	}
	c := copies[cmd.CopyIndex]
	c.NodeID = cmd.NodeID
	c.State = cluster.Initializing
	c.UnassignedInfo = nil
	copies[cmd.CopyIndex] = c
	byShard[cmd.ShardNum] = copies
	out[cmd.IndexName] = byShard
	return out, nil
}

// unassignCopiesOnNode returns a routing table with every copy
// previously on nodeID forced back to UNASSIGNED, the same transition
// shardstate.Apply's Failed branch applies to one allocation at a time,
// but triggered here by node departure rather than an explicit report.
func unassignCopiesOnNode(rt map[string]map[int][]cluster.ShardRouting, nodeID string) map[string]map[int][]cluster.ShardRouting {
	out := copyRoutingTable(rt)
	for _, byShard := range out {
		for shardNum, copies := range byShard {
			for i, c := range copies {
				if c.NodeID == nodeID || c.RelocatingToNodeID == nodeID {
					copies[i] = cluster.ShardRouting{
						ShardID:        c.ShardID,
						Primary:        c.Primary,
						State:          cluster.Unassigned,
						AllocationID:   c.AllocationID,
						UnassignedInfo: cluster.NewUnassignedInfo(cluster.ReasonNodeLeft, "node left cluster"),
					}
				}
			}
			byShard[shardNum] = copies
		}
	}
	return out
}
