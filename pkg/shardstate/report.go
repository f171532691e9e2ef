package shardstate

import "github.com/cuemby/meridian/pkg/cluster"

// Kind distinguishes the two report types the master accepts.
type Kind int

const (
	// Started reports that a node finished recovering a shard copy and
	// it is ready to receive writes.
	Started Kind = iota
	// Failed reports that a node can no longer serve a shard copy.
	Failed
)

// Report is one submission to the reporter's queue. IndexUUID pins the
// report to the index incarnation the reporting node observed when it
// submitted: spec.md §4.2 requires the master to silently discard an
// entry whose IndexUUID no longer matches current metadata (the index
// was deleted and recreated under the same name in between).
type Report struct {
	ShardID      cluster.ShardID
	AllocationID cluster.AllocationID
	IndexUUID    string
	NodeID       string
	Kind         Kind
	Reason       string

	seq uint64
}

// priority ranks Started above Failed. Drain pops by priority first, so a
// steady stream of Started reports can starve pending Failed reports.
func (k Kind) priority() cluster.Priority {
	if k == Started {
		return cluster.Urgent
	}
	return cluster.High
}
