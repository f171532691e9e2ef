package cluster

// ShardIterator walks the copy list for one shard as observed in a single
// ClusterState. It is cheap to construct and is re-created (never mutated
// in place) whenever the replication phase needs to re-enumerate copies
// against a fresher snapshot — see spec.md §4.4's pre-flight topology
// reconciliation.
type ShardIterator struct {
	ShardID ShardID
	copies  []ShardRouting
	pos     int
}

// NewShardIterator builds an iterator over the resolved shard's current
// copy list in the given state. The request determines which shard: for
// this core that's always a single shard id resolved by the caller
// (routingKey hashing and index-alias resolution are the engine's job,
// not this package's).
func NewShardIterator(state *ClusterState, id ShardID) *ShardIterator {
	return &ShardIterator{
		ShardID: id,
		copies:  append([]ShardRouting(nil), state.ShardCopies(id)...),
	}
}

// Copies returns the full, unconsumed copy list.
func (it *ShardIterator) Copies() []ShardRouting {
	return it.copies
}

// NextPrimary advances the iterator until it finds a copy with
// Primary == true, returning ok == false if none remains. Matches
// spec.md §4.3 step 2: "Advance it looking for a shard where
// primary=true."
func (it *ShardIterator) NextPrimary() (ShardRouting, bool) {
	for it.pos < len(it.copies) {
		c := it.copies[it.pos]
		it.pos++
		if c.Primary {
			return c, true
		}
	}
	return ShardRouting{}, false
}

// Reset rewinds the iterator to the start of its copy list without
// re-reading cluster state; used when a caller wants a second pass over
// the same observed copies (e.g. the replication phase's dispatch
// classification after confirming the topology hasn't changed).
func (it *ShardIterator) Reset() {
	it.pos = 0
}
