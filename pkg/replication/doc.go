/*
Package replication implements the write-coordination core: the
primary/replica two-phase action spec.md §4.3–§4.4 specifies, including
unavailable-shard retry via cluster-state observation.

Per spec.md §9's re-architecture guidance, the "abstract base action with
generic request/response types" pattern becomes a concrete Coordinator
holding two function-typed fields — ApplyOnPrimary and ApplyOnReplica —
so concrete write actions (index, delete, bulk-item) are data passed into
Execute, not subclasses of anything. The "inner classes sharing lexical
state" pattern (PrimaryPhase/ReplicationPhase) becomes plain Coordinator
methods: attempt and runPrimaryLocally make up the primary phase, and
runPrimaryLocally calls replicateToPeers for the replication phase while
still holding the primary's ShardReference, released by a deferred
Release once replication returns.

# Invariants this package maintains

 1. At most one primary engine apply per operation, ever (never apply then
    still fail terminally out from under the response).
 2. Exactly one terminal delivery to the caller's listener.
 3. Every ShardReference acquired is released exactly once, on every exit
    path: success, terminal failure, or retry scheduling.
 4. On success, successes >= 1 and successes + failures + skipped >=
    totalShards.

See coordinator_test.go for the scenario tests (spec.md §8 S1-S5) that
exercise these against fakes, and pkg/translog and pkg/shardstate's own
test suites for S6/S7.
*/
package replication
