package clusterharness

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/log"
	"github.com/cuemby/meridian/pkg/shardstate"
)

// Config configures one Harness node, the same parameters poc/raft's
// main.go took as flags: a stable identity, a bind address for raft's
// own TCP transport, and a data directory for its log/stable/snapshot
// stores.
type Config struct {
	NodeID       string
	BindAddr     string
	DataDir      string
	ApplyTimeout time.Duration
}

// Harness runs one master's raft.Raft instance over an FSM and exposes
// it as a cluster.Publisher. It is the production counterpart to
// poc/raft's standalone prototype: the wiring is the same
// (TCPTransport, FileSnapshotStore, raft-boltdb log and stable stores)
// but the FSM now derives ClusterState rather than a bare map, and
// proposals go through typed Propose* methods instead of a raw
// raft.Apply call at the prototype's call site.
type Harness struct {
	cfg Config
	fsm *FSM
	r   *raft.Raft
}

// Open creates (or reopens) a Harness, bootstrapping a single-node
// cluster when bootstrap is true. Joining an existing cluster is done
// out of band, by the existing leader calling AddVoter — the same
// division of responsibility poc/raft's main.go called out with its
// "On leader, run: AddVoter(...)" log line, except here it is a method
// instead of an operator instruction.
func Open(cfg Config, bootstrap bool) (*Harness, error) {
	if cfg.ApplyTimeout == 0 {
		cfg.ApplyTimeout = 10 * time.Second
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("clusterharness: creating data dir %s: %w", cfg.DataDir, err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	fsm := NewFSM()

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("clusterharness: resolving %s: %w", cfg.BindAddr, err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("clusterharness: creating transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 3, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("clusterharness: creating snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("clusterharness: creating log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("clusterharness: creating stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("clusterharness: creating raft instance: %w", err)
	}

	if bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{
				{ID: raftCfg.LocalID, Address: transport.LocalAddr()},
			},
		})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("clusterharness: bootstrapping cluster: %w", err)
		}
	}

	return &Harness{cfg: cfg, fsm: fsm, r: r}, nil
}

// Current implements cluster.Publisher.
func (h *Harness) Current() *cluster.ClusterState { return h.fsm.Current() }

// Subscribe implements cluster.Publisher.
func (h *Harness) Subscribe() (<-chan *cluster.ClusterState, func()) { return h.fsm.Subscribe() }

// Closing implements cluster.Publisher.
func (h *Harness) Closing() bool { return h.fsm.Closing() }

// IsLeader reports whether this node currently believes itself leader.
func (h *Harness) IsLeader() bool { return h.r.State() == raft.Leader }

// AddVoter adds a new voting member to the cluster; only the leader can
// do this meaningfully, matching raft's own restriction.
func (h *Harness) AddVoter(nodeID, addr string) error {
	future := h.r.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(addr), 0, 0)
	return future.Error()
}

// Shutdown stops the raft instance and closes the FSM's subscriber
// channels.
func (h *Harness) Shutdown() error {
	h.fsm.Close()
	return h.r.Shutdown().Error()
}

func (h *Harness) propose(cmd Command) (*cluster.ClusterState, error) {
	if !h.IsLeader() {
		return nil, fmt.Errorf("clusterharness: node %s is not leader", h.cfg.NodeID)
	}
	data, err := encodeCommand(cmd)
	if err != nil {
		return nil, err
	}
	future := h.r.Apply(data, h.cfg.ApplyTimeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("clusterharness: applying %s: %w", cmd.Op, err)
	}
	resp := future.Response()
	if err, ok := resp.(error); ok {
		return nil, err
	}
	state, _ := resp.(*cluster.ClusterState)
	log.WithShard(cmd.IndexName, 0).Debug().Str("op", string(cmd.Op)).Msg("applied cluster command")
	return state, nil
}

// ProposeCreateIndex proposes a brand new index with NumShards copies
// each UNASSIGNED, ready for an allocator to place.
func (h *Harness) ProposeCreateIndex(name string, md cluster.IndexMetadata) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opCreateIndex, IndexName: name, IndexMetadata: md})
}

// ProposeDeleteIndex proposes removing an index and its routing
// entirely.
func (h *Harness) ProposeDeleteIndex(name string) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opDeleteIndex, IndexName: name})
}

// ProposeSetIndexBlock proposes adding a block to an existing index.
func (h *Harness) ProposeSetIndexBlock(index string, block cluster.Block) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opSetBlock, IndexName: index, Block: block})
}

// ProposeClearIndexBlock proposes removing a block (matched by ID) from
// an index.
func (h *Harness) ProposeClearIndexBlock(index string, blockID string) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opClearBlock, IndexName: index, Block: cluster.Block{ID: blockID}})
}

// ProposeSetGlobalBlock proposes adding a cluster-wide block.
func (h *Harness) ProposeSetGlobalBlock(block cluster.Block) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opSetGlobalBlock, Block: block})
}

// ProposeNodeJoin proposes registering a node, and the address
// pkg/transport should dial to reach it, as part of the cluster.
func (h *Harness) ProposeNodeJoin(nodeID, addr string) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opNodeJoin, NodeID: nodeID, NodeAddr: addr})
}

// ProposeNodeLeave proposes removing a node and unassigning every copy
// it held.
func (h *Harness) ProposeNodeLeave(nodeID string) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opNodeLeave, NodeID: nodeID})
}

// ProposeAssignShard places nodeID onto the copyIndex-th copy of
// index's shard shardNum as INITIALIZING, the minimal allocation step a
// real allocator would perform before a node starts recovering a copy.
// See fsm.go's assignShard for why this lives here instead of a full
// scheduler.
func (h *Harness) ProposeAssignShard(index string, shardNum, copyIndex int, nodeID string) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opAssignShard, IndexName: index, ShardNum: shardNum, CopyIndex: copyIndex, NodeID: nodeID})
}

// ProposeShardReports folds a batch of shard-state reports into the
// routing table, the same reports pkg/shardstate.Reporter.Drain hands a
// master on its own submission ticker.
func (h *Harness) ProposeShardReports(reports []*shardstate.Report) (*cluster.ClusterState, error) {
	return h.propose(Command{Op: opApplyReports, Reports: reports})
}
