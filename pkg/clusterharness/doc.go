/*
Package clusterharness is Meridian's reference cluster.Publisher: a
hashicorp/raft-backed state machine that replicates ClusterState
transitions across masters and exposes the current snapshot plus a
change feed to pkg/cluster.Observer, the same Apply/Snapshot/Restore
shape the prototype in poc/raft proved out with a toy key-value FSM.

Every mutation — a new index, a shard-state report batch, a block
change, a node joining or leaving — is proposed as a Command through
the raft log. Only once hashicorp/raft has committed it does the FSM
derive the next ClusterState and publish it; masters that are not
leader reject proposals rather than applying them locally, so every
follower's view only ever advances through the same committed log the
leader wrote.

This package deliberately knows nothing about shard resolution, write
consistency, or the replication phase — it is pure state-machine
replication. pkg/replication.Coordinator only ever sees it through the
narrow cluster.Publisher interface.
*/
package clusterharness
