package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Cluster-state metrics
	ClusterStateVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_cluster_state_version",
			Help: "Version of the most recently observed cluster state",
		},
	)

	ShardsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meridian_shards_total",
			Help: "Total number of shard copies by routing state",
		},
		[]string{"state"},
	)

	UnassignedShardsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "meridian_unassigned_shards_total",
			Help: "Total number of unassigned shard copies by reason",
		},
		[]string{"reason"},
	)

	// Write-path metrics
	WriteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_write_requests_total",
			Help: "Total number of write requests by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	WriteRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_write_retries_total",
			Help: "Total number of primary-phase retries by coordfail kind",
		},
		[]string{"kind"},
	)

	WriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meridian_write_duration_seconds",
			Help:    "End-to-end write request duration in seconds by action",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)

	ReplicaFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_replica_failures_total",
			Help: "Total number of replica apply failures by whether they were reported to the shard-state reporter",
		},
		[]string{"reported"},
	)

	// Translog metrics
	TranslogOperationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_translog_operations_total",
			Help: "Total number of operations appended to any shard's translog",
		},
	)

	TranslogRotationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_translog_rotations_total",
			Help: "Total number of translog file rotations (transient promoted to current)",
		},
	)

	TranslogOrphansCleared = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "meridian_translog_orphans_cleared_total",
			Help: "Total number of unreferenced translog files removed by ClearUnreferenced",
		},
	)

	// Shard-state reporter metrics
	ShardStateQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_shardstate_queue_depth",
			Help: "Number of pending shard-state reports awaiting drain",
		},
	)

	ShardStateReportsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meridian_shardstate_reports_dropped_total",
			Help: "Total number of shard-state reports dropped because the queue was at capacity",
		},
		[]string{"kind"},
	)

	// Raft (clusterharness) metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_raft_is_leader",
			Help: "Whether this node's cluster-state harness is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "meridian_raft_applied_index",
			Help: "Last applied Raft log index in the cluster-state harness",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meridian_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry to the cluster-state FSM",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ClusterStateVersion)
	prometheus.MustRegister(ShardsTotal)
	prometheus.MustRegister(UnassignedShardsTotal)
	prometheus.MustRegister(WriteRequestsTotal)
	prometheus.MustRegister(WriteRetriesTotal)
	prometheus.MustRegister(WriteDuration)
	prometheus.MustRegister(ReplicaFailuresTotal)
	prometheus.MustRegister(TranslogOperationsTotal)
	prometheus.MustRegister(TranslogRotationsTotal)
	prometheus.MustRegister(TranslogOrphansCleared)
	prometheus.MustRegister(ShardStateQueueDepth)
	prometheus.MustRegister(ShardStateReportsDropped)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
