/*
Package shardstate is the master-side shard-state reporter spec.md §4.2
describes: nodes submit "shard started" and "shard failed" reports, the
master batches and de-duplicates them, and applies the batch to the
routing table as one atomic cluster-state transition rather than one
transition per report.

"Started" reports are queued at cluster.Urgent priority and "failed"
reports at cluster.High, so every pending started report drains ahead of
every pending failure: a flood of started reports during a large
recovery delays failure notifications until it is drained. Reporter itself
implements pkg/replication's ReplicaFailureReporter so a Coordinator can
submit directly into it.
*/
package shardstate
