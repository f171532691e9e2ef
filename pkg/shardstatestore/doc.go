/*
Package shardstatestore is the master's durable store for cluster
metadata and the routing table, a bbolt-backed persistence layer in the
same single-file, bucket-per-concern shape pkg/storage's BoltStore uses
for Warren's node/service/container records — adapted here to the three
things a Meridian master must survive a restart with: index metadata,
the routing table, and the cluster-state version counter.

This package is independent of pkg/clusterharness's Raft log: Raft
(when used) is the mechanism that keeps masters agreed on these values;
this package is what one master persists them to disk as, the same way
a Raft FSM still needs its own on-disk state machine snapshot.
*/
package shardstatestore
