package cluster

// Priority governs cluster-state-update task scheduling order: URGENT
// drains before HIGH before NORMAL, strict FIFO within a bucket. See
// pkg/shardstate for the one place Meridian actually uses more than one
// priority value.
type Priority int

const (
	Languid Priority = iota
	Low
	Normal
	High
	Urgent
	Immediate
)

// NodeInfo is the subset of node identity the write path needs: enough to
// tell whether a routing entry's NodeID is currently known to the
// cluster, plus the address pkg/transport dials to reach it.
type NodeInfo struct {
	ID      string
	Addr    string
	Version int64
}

// Block is a cluster-wide or per-index flag that forbids a class of
// operations. Retryable blocks (e.g. "not recovered yet") cause the
// primary phase to retry; non-retryable blocks (e.g. "index read-only")
// fail the write terminally.
type Block struct {
	ID          string
	Description string
	Retryable   bool
}

// IndexMetadata is the per-index slice of cluster metadata the write path
// consults: its stable identity, shape, and any per-index blocks.
type IndexMetadata struct {
	UUID            string
	NumShards       int
	NumReplicas     int
	Settings        map[string]string
	ShadowReplicas  bool
	Blocks          []Block
}

// ClusterState is one immutable, versioned snapshot of cluster topology
// and metadata. Every field is read-only after construction; routing
// updates produce a new ClusterState with Version one higher rather than
// mutating this one. See doc.go for the invariant this type assumes but
// does not itself enforce.
type ClusterState struct {
	Version       uint64
	Nodes         map[string]NodeInfo
	Metadata      map[string]IndexMetadata
	RoutingTable  map[string]map[int][]ShardRouting
	GlobalBlocks  []Block
}

// NewClusterState returns an empty snapshot at version 0, the state new
// nodes observe before their first real snapshot arrives.
func NewClusterState() *ClusterState {
	return &ClusterState{
		Nodes:        map[string]NodeInfo{},
		Metadata:     map[string]IndexMetadata{},
		RoutingTable: map[string]map[int][]ShardRouting{},
	}
}

// HasNode reports whether nodeID is present in this snapshot's node set.
// spec.md §4.3 step 2: a resolved primary whose node is unknown here is
// treated as unavailable, the same as no primary at all.
func (s *ClusterState) HasNode(nodeID string) bool {
	if s == nil || nodeID == "" {
		return false
	}
	_, ok := s.Nodes[nodeID]
	return ok
}

// ShardCopies returns the routing list for one shard, or nil if the index
// or shard id is not present in the routing table.
func (s *ClusterState) ShardCopies(id ShardID) []ShardRouting {
	if s == nil {
		return nil
	}
	byShard, ok := s.RoutingTable[id.Index]
	if !ok {
		return nil
	}
	return byShard[id.Shard]
}

// IndexUUID returns the UUID of the named index, if the index exists.
func (s *ClusterState) IndexUUID(index string) (string, bool) {
	if s == nil {
		return "", false
	}
	md, ok := s.Metadata[index]
	if !ok {
		return "", false
	}
	return md.UUID, true
}

// GlobalBlock returns the first global block present, retryable or not,
// and whether any global block is present at all. Blocks after the
// first are not examined.
func (s *ClusterState) GlobalBlock() (Block, bool) {
	if s == nil || len(s.GlobalBlocks) == 0 {
		return Block{}, false
	}
	return s.GlobalBlocks[0], true
}

// IndexBlock returns the first block on the named index, if any.
func (s *ClusterState) IndexBlock(index string) (Block, bool) {
	if s == nil {
		return Block{}, false
	}
	md, ok := s.Metadata[index]
	if !ok || len(md.Blocks) == 0 {
		return Block{}, false
	}
	return md.Blocks[0], true
}

// WithVersion returns a shallow copy of the state at a new version. The
// maps are shared with the original — callers that mutate a derived
// state must replace the relevant map wholesale rather than writing into
// it in place, keeping every previously-observed *ClusterState valid.
func (s *ClusterState) WithVersion(v uint64) *ClusterState {
	cp := *s
	cp.Version = v
	return &cp
}
