package engine

import (
	"fmt"
	"sync"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/replication"
)

// Store holds every shard copy a node currently serves, keyed by
// ShardID. It implements replication.LocalShards.
type Store struct {
	mu     sync.RWMutex
	shards map[cluster.ShardID]*Shard
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{shards: map[cluster.ShardID]*Shard{}}
}

// Put registers (or replaces) the local copy of a shard, e.g. once
// recovery completes and the master marks it STARTED.
func (st *Store) Put(sh *Shard) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.shards[sh.ShardID()] = sh
}

// Remove drops a shard this node no longer holds, e.g. after a completed
// relocation.
func (st *Store) Remove(id cluster.ShardID) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.shards, id)
}

// Shard returns the local copy for id, if this node holds one.
func (st *Store) Shard(id cluster.ShardID) (*Shard, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sh, ok := st.shards[id]
	return sh, ok
}

// Acquire implements replication.LocalShards.
func (st *Store) Acquire(id cluster.ShardID) (replication.LocalShard, *replication.ShardReference, error) {
	sh, ok := st.Shard(id)
	if !ok {
		return nil, nil, fmt.Errorf("engine: shard %s not held locally", id)
	}
	ref, err := sh.acquire()
	if err != nil {
		return nil, nil, err
	}
	return sh, ref, nil
}
