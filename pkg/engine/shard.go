package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/replication"
	"github.com/cuemby/meridian/pkg/translog"
)

// storedDoc is one document's current state in a Shard's in-memory index.
type storedDoc struct {
	version int64
	source  []byte
	deleted bool
}

// ApplyResult reports the outcome of a successful apply.
type ApplyResult struct {
	Version int64
	Created bool
}

// Shard is the reference in-memory document store for one shard copy,
// backed by a translog for durability. It implements replication.LocalShard
// directly; Store implements replication.LocalShards over a collection of
// these.
type Shard struct {
	id  cluster.ShardID
	log *translog.Translog

	mu      sync.RWMutex
	routing cluster.ShardRouting
	docs    map[string]storedDoc
	nextSeq int64

	refs   int32
	closed int32

	onFail func(reason string, cause error)
}

// NewShard constructs a Shard backed by log, initially routed as r.
// onFail, if non-nil, is invoked by FailShard — wiring it to the
// shard-state reporter is the caller's job (pkg/shardstate).
func NewShard(r cluster.ShardRouting, log *translog.Translog, onFail func(reason string, cause error)) *Shard {
	return &Shard{
		id:      r.ShardID,
		log:     log,
		routing: r,
		docs:    map[string]storedDoc{},
		onFail:  onFail,
	}
}

func (s *Shard) ShardID() cluster.ShardID { return s.id }

func (s *Shard) Routing() cluster.ShardRouting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routing
}

// SetRouting updates the copy's routing entry, e.g. once the master
// confirms STARTED.
func (s *Shard) SetRouting(r cluster.ShardRouting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routing = r
}

// acquire implements the operation counter: every in-flight apply holds
// one reference, and a closed shard refuses new ones. Exposed via Store's
// replication.LocalShards.Acquire, not called directly by action code.
func (s *Shard) acquire() (*replication.ShardReference, error) {
	if atomic.LoadInt32(&s.closed) == 1 {
		return nil, fmt.Errorf("engine: shard %s is closed", s.id)
	}
	atomic.AddInt32(&s.refs, 1)
	released := int32(0)
	return replication.NewShardReference(func() {
		if atomic.CompareAndSwapInt32(&released, 0, 1) {
			atomic.AddInt32(&s.refs, -1)
		}
	}), nil
}

// IndexPrimary assigns the next version for uid and applies the write
// locally, logging it to the translog before returning.
func (s *Shard) IndexPrimary(uid string, source []byte) (ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.docs[uid]
	version := prev.version + 1
	if _, err := s.log.Add(translog.IndexOp(uid, source, version)); err != nil {
		return ApplyResult{}, fmt.Errorf("engine: logging index of %s: %w", uid, err)
	}
	s.docs[uid] = storedDoc{version: version, source: source}
	return ApplyResult{Version: version, Created: !existed || prev.deleted}, nil
}

// IndexReplica applies an index operation at the version the primary
// already assigned. A version less than or equal to the document's
// current version is a stale replay and is logged as a no-op rather than
// rejected as an error, matching spec.md §5's tombstone treatment.
func (s *Shard) IndexReplica(uid string, source []byte, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.docs[uid]; ok && version <= cur.version {
		_, err := s.log.Add(translog.NoOpOp())
		return err
	}
	if _, err := s.log.Add(translog.IndexOp(uid, source, version)); err != nil {
		return fmt.Errorf("engine: logging replica index of %s: %w", uid, err)
	}
	s.docs[uid] = storedDoc{version: version, source: source}
	return nil
}

// DeletePrimary marks uid deleted at the next version.
func (s *Shard) DeletePrimary(uid string) (ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.docs[uid]
	version := prev.version + 1
	if _, err := s.log.Add(translog.DeleteOp(uid, version)); err != nil {
		return ApplyResult{}, fmt.Errorf("engine: logging delete of %s: %w", uid, err)
	}
	s.docs[uid] = storedDoc{version: version, deleted: true}
	return ApplyResult{Version: version, Created: false}, nil
}

// DeleteReplica mirrors IndexReplica for deletes.
func (s *Shard) DeleteReplica(uid string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.docs[uid]; ok && version <= cur.version {
		_, err := s.log.Add(translog.NoOpOp())
		return err
	}
	if _, err := s.log.Add(translog.DeleteOp(uid, version)); err != nil {
		return fmt.Errorf("engine: logging replica delete of %s: %w", uid, err)
	}
	s.docs[uid] = storedDoc{version: version, deleted: true}
	return nil
}

// Get returns a document's current source, for tests and read paths
// outside the replicated-write core.
func (s *Shard) Get(uid string) ([]byte, int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uid]
	if !ok || d.deleted {
		return nil, 0, false
	}
	return d.source, d.version, true
}

// FailShard marks the shard closed to new operations and invokes onFail,
// normally wired to report the failure to the shard-state reporter so the
// master can remove this copy from the in-sync set.
func (s *Shard) FailShard(reason string, cause error) {
	atomic.StoreInt32(&s.closed, 1)
	if s.onFail != nil {
		s.onFail(reason, cause)
	}
}

// Close marks the shard closed to new operations (without invoking
// onFail — this is an orderly shutdown, not a failure) and closes its
// translog without deleting it, so a restart recovers from it.
func (s *Shard) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return s.log.Close(false)
}
