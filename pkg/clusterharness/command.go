package clusterharness

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/shardstate"
)

// commandOp names one of the mutations the FSM knows how to apply. New
// values must only ever be appended; the ordinal is not persisted but
// the string is, via Command's JSON encoding, into the raft log and
// snapshot store.
type commandOp string

const (
	opCreateIndex  commandOp = "create_index"
	opDeleteIndex  commandOp = "delete_index"
	opSetBlock     commandOp = "set_index_block"
	opClearBlock   commandOp = "clear_index_block"
	opSetGlobalBlock commandOp = "set_global_block"
	opNodeJoin     commandOp = "node_join"
	opNodeLeave    commandOp = "node_leave"
	opApplyReports commandOp = "apply_shard_reports"
	opAssignShard  commandOp = "assign_shard"
)

// Command is the envelope proposed to raft for every ClusterState
// mutation. Exactly one of the payload fields is populated, chosen by
// Op; this mirrors poc/raft's single Command struct with an Op
// discriminator rather than one raft log entry type per operation.
type Command struct {
	Op commandOp

	IndexName     string               `json:",omitempty"`
	IndexMetadata cluster.IndexMetadata `json:",omitempty"`

	Block cluster.Block `json:",omitempty"`

	NodeID   string `json:",omitempty"`
	NodeAddr string `json:",omitempty"`

	// ShardNum and CopyIndex select the routing entry opAssignShard
	// rewrites: IndexName's shard ShardNum, the CopyIndex-th copy in its
	// list (0 is always the primary, per newIndexRouting's ordering).
	ShardNum  int `json:",omitempty"`
	CopyIndex int `json:",omitempty"`

	Reports []*shardstate.Report `json:",omitempty"`
}

func encodeCommand(cmd Command) ([]byte, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("clusterharness: encoding command %s: %w", cmd.Op, err)
	}
	return data, nil
}

func decodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("clusterharness: decoding command: %w", err)
	}
	return cmd, nil
}
