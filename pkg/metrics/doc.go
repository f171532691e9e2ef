/*
Package metrics defines and registers Meridian's Prometheus metrics:
cluster-state shape (shard counts by routing state, unassigned reasons),
write-path outcomes and latency, translog activity, and shard-state
reporter backlog. Metrics are package-level vars registered at init time
and exposed via Handler for an HTTP server to mount.

Collector periodically samples the things that aren't naturally
incremented at the call site — current shard counts by state, and the
shard-state reporter's queue depth — onto their gauges. Everything else
(WriteRequestsTotal, WriteDuration, translog counters) is defined and
registered here for a call site to update inline, the way Timer is used;
no package in this module updates those metrics.
*/
package metrics
