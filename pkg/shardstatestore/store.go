package shardstatestore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/meridian/pkg/cluster"
)

var (
	bucketClusterMeta  = []byte("cluster_meta")
	bucketIndexMeta    = []byte("index_metadata")
	bucketRoutingTable = []byte("routing_table")

	keyVersion = []byte("version")
)

// Store persists the pieces of a ClusterState a master must not lose on
// restart: the version counter, per-index metadata, and the routing
// table, keyed by shard id.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt database under dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "meridian.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("shardstatestore: opening %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketClusterMeta, bucketIndexMeta, bucketRoutingTable} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveVersion persists the cluster state's current version.
func (s *Store) SaveVersion(v uint64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var buf [8]byte
		putUint64(buf[:], v)
		return tx.Bucket(bucketClusterMeta).Put(keyVersion, buf[:])
	})
}

// LoadVersion returns the persisted version, or 0 if none was saved yet.
func (s *Store) LoadVersion() (uint64, error) {
	var v uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketClusterMeta).Get(keyVersion)
		if data == nil {
			return nil
		}
		if len(data) != 8 {
			return fmt.Errorf("shardstatestore: corrupt version record (%d bytes)", len(data))
		}
		v = getUint64(data)
		return nil
	})
	return v, err
}

// SaveIndexMetadata persists one index's metadata.
func (s *Store) SaveIndexMetadata(name string, md cluster.IndexMetadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("shardstatestore: marshaling index metadata for %q: %w", name, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexMeta).Put([]byte(name), data)
	})
}

// LoadAllIndexMetadata loads every persisted index's metadata.
func (s *Store) LoadAllIndexMetadata() (map[string]cluster.IndexMetadata, error) {
	out := map[string]cluster.IndexMetadata{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexMeta).ForEach(func(k, v []byte) error {
			var md cluster.IndexMetadata
			if err := json.Unmarshal(v, &md); err != nil {
				return fmt.Errorf("unmarshaling index metadata for %q: %w", k, err)
			}
			out[string(k)] = md
			return nil
		})
	})
	return out, err
}

// DeleteIndexMetadata removes a deleted index's persisted metadata.
func (s *Store) DeleteIndexMetadata(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexMeta).Delete([]byte(name))
	})
}

// routingKey renders a ShardID the way the bucket keys it: stable,
// sortable within an index, and safe to use as a raw bbolt key.
func routingKey(id cluster.ShardID) []byte {
	return []byte(fmt.Sprintf("%s/%08d", id.Index, id.Shard))
}

// SaveShardCopies persists the full routing list for one shard.
func (s *Store) SaveShardCopies(id cluster.ShardID, copies []cluster.ShardRouting) error {
	data, err := json.Marshal(copies)
	if err != nil {
		return fmt.Errorf("shardstatestore: marshaling routing for %s: %w", id, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoutingTable).Put(routingKey(id), data)
	})
}

// LoadRoutingTable reconstructs the full routing table from disk.
func (s *Store) LoadRoutingTable() (map[string]map[int][]cluster.ShardRouting, error) {
	out := map[string]map[int][]cluster.ShardRouting{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoutingTable).ForEach(func(k, v []byte) error {
			var copies []cluster.ShardRouting
			if err := json.Unmarshal(v, &copies); err != nil {
				return fmt.Errorf("unmarshaling routing for key %q: %w", k, err)
			}
			if len(copies) == 0 {
				return nil
			}
			id := copies[0].ShardID
			if out[id.Index] == nil {
				out[id.Index] = map[int][]cluster.ShardRouting{}
			}
			out[id.Index][id.Shard] = copies
			return nil
		})
	})
	return out, err
}

// LoadClusterState assembles a full ClusterState from everything
// persisted so far, at the last saved version. Nodes are never
// persisted here: the returned state has an empty Nodes map, and node
// membership is not read from disk.
func (s *Store) LoadClusterState() (*cluster.ClusterState, error) {
	version, err := s.LoadVersion()
	if err != nil {
		return nil, err
	}
	metadata, err := s.LoadAllIndexMetadata()
	if err != nil {
		return nil, err
	}
	routingTable, err := s.LoadRoutingTable()
	if err != nil {
		return nil, err
	}
	return &cluster.ClusterState{
		Version:      version,
		Nodes:        map[string]cluster.NodeInfo{},
		Metadata:     metadata,
		RoutingTable: routingTable,
	}, nil
}

// SaveClusterState persists every index's metadata and every shard's
// routing list from state, plus its version. It is not transactional
// across buckets by design — spec.md's durability requirement is on the
// translog, not on this cache of the routing table, which is always
// reconstructible from the masters' consensus log.
func (s *Store) SaveClusterState(state *cluster.ClusterState) error {
	if err := s.SaveVersion(state.Version); err != nil {
		return err
	}
	for name, md := range state.Metadata {
		if err := s.SaveIndexMetadata(name, md); err != nil {
			return err
		}
	}
	for _, byShard := range state.RoutingTable {
		for _, copies := range byShard {
			if len(copies) == 0 {
				continue
			}
			if err := s.SaveShardCopies(copies[0].ShardID, copies); err != nil {
				return err
			}
		}
	}
	return nil
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

func getUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
