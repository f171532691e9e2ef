package cluster

import "fmt"

// ShardID identifies one horizontal partition of an index. It is
// immutable and comparable, so it can be used directly as a map key.
type ShardID struct {
	Index string
	Shard int
}

// String renders the shard id the way log lines and error messages expect
// it: "index][shard".
func (s ShardID) String() string {
	return fmt.Sprintf("%s][%d", s.Index, s.Shard)
}

// AllocationID is an opaque, stable identifier for one shard copy across
// restarts and relocations. Callers obtain one from google/uuid when a
// copy is first allocated; Meridian never parses or orders it.
type AllocationID string
