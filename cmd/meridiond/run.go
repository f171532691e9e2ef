package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/cuemby/meridian/pkg/actions"
	"github.com/cuemby/meridian/pkg/cluster"
	"github.com/cuemby/meridian/pkg/clusterharness"
	"github.com/cuemby/meridian/pkg/config"
	"github.com/cuemby/meridian/pkg/engine"
	"github.com/cuemby/meridian/pkg/events"
	"github.com/cuemby/meridian/pkg/log"
	"github.com/cuemby/meridian/pkg/metrics"
	"github.com/cuemby/meridian/pkg/replication"
	"github.com/cuemby/meridian/pkg/shardstate"
	"github.com/cuemby/meridian/pkg/translog"
	"github.com/cuemby/meridian/pkg/transport"
)

var (
	flagNodeID      string
	flagDataDir     string
	flagRaftAddr    string
	flagGRPCAddr    string
	flagMetricsAddr string
	flagBootstrap   bool
	flagDemoIndex   bool
	flagLogLevel    string
	flagLogJSON     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot one node and serve the write-coordination core",
	RunE:  runNode,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&flagNodeID, "node-id", "", "stable identity for this node")
	f.StringVar(&flagDataDir, "data-dir", "", "directory for raft, routing, and translog state")
	f.StringVar(&flagRaftAddr, "raft-addr", "", "bind address for the cluster-state harness' raft transport")
	f.StringVar(&flagGRPCAddr, "grpc-addr", "", "bind address for the shard-replication grpc service")
	f.StringVar(&flagMetricsAddr, "metrics-addr", "", "bind address for /metrics, /healthz, /readyz")
	f.BoolVar(&flagBootstrap, "bootstrap", false, "bootstrap a brand new single-node cluster")
	f.BoolVar(&flagDemoIndex, "demo-index", false, "once leader, create and self-assign a one-shard \"docs\" index")
	f.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.BoolVar(&flagLogJSON, "log-json", false, "emit logs as JSON instead of console format")
}

// node bundles every collaborator runNode assembles, purely so shutdown
// can tear them down in the right order without a long parameter list.
type node struct {
	cfg      config.Config
	harness  *clusterharness.Harness
	store    *engine.Store
	reporter *shardstate.Reporter
	client   *transport.Client
	broker   *events.Broker
	grpcSrv  *grpc.Server
	httpSrv  *http.Server
	shards   []*engine.Shard
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, &cfg)

	initLogger(cfg.LogJSON, cfg.LogLevel)
	logger := log.WithNodeID(cfg.NodeID)
	metrics.SetVersion(Version)

	n := &node{cfg: cfg}

	harness, err := clusterharness.Open(clusterharness.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.RaftBindAddr,
		DataDir:  filepath.Join(cfg.DataDir, "raft"),
	}, cfg.Bootstrap)
	if err != nil {
		return fmt.Errorf("meridiond: opening cluster harness: %w", err)
	}
	n.harness = harness
	metrics.RegisterComponent("clusterharness", true, "raft harness open")

	n.store = engine.NewStore()
	registry := transport.NewActionRegistry()
	registry.Register(actions.NewIndexAction(n.store),
		func() any { return new(actions.IndexRequest) },
		func() any { return new(actions.IndexReplicaBody) })
	registry.Register(actions.NewDeleteAction(n.store),
		func() any { return new(actions.DeleteRequest) },
		func() any { return new(actions.DeleteReplicaBody) })
	registry.Register(actions.NewBulkItemAction(n.store),
		func() any { return new(actions.BulkItemRequest) },
		func() any { return new(actions.BulkItemReplicaBody) })

	n.reporter = shardstate.NewReporter(cfg.ReporterQueueCapacity)
	n.client = transport.NewClient(registry, transport.PublisherAddrResolver(harness))
	n.broker = events.NewBroker()
	n.broker.Start()

	coordinator := &replication.Coordinator{
		NodeID:    cfg.NodeID,
		Cluster:   harness,
		Local:     n.store,
		Transport: n.client,
		Reporter:  n.reporter,
		Logger:    logger,
	}

	srv := transport.NewServer(registry, coordinator, n.store)
	n.grpcSrv = grpc.NewServer()
	srv.Register(n.grpcSrv)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("meridiond: listening on %s: %w", cfg.GRPCAddr, err)
	}
	go func() {
		if err := n.grpcSrv.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("grpc server stopped")
		}
	}()
	metrics.RegisterComponent("transport", true, "grpc server listening")

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", metrics.HealthHandler())
	mux.HandleFunc("/readyz", metrics.ReadyHandler())
	mux.HandleFunc("/livez", metrics.LivenessHandler())
	mux.Handle("/events", n.broker)
	n.httpSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := n.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.drainReports(ctx, logger)

	if _, err := harness.ProposeNodeJoin(cfg.NodeID, cfg.GRPCAddr); err != nil {
		logger.Warn().Err(err).Msg("could not announce this node to the cluster harness yet (not leader?)")
	}

	if flagDemoIndex {
		go n.bootstrapDemoIndex(logger)
	}

	logger.Info().Str("grpc_addr", cfg.GRPCAddr).Str("metrics_addr", cfg.MetricsAddr).Msg("meridiond ready")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	return n.shutdown()
}

// applyFlagOverrides lets an explicitly-set flag win over whatever
// config.Load produced, the same precedence cmd/warren's persistent
// flags give command-line overrides over a config file.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("node-id") {
		cfg.NodeID = flagNodeID
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("raft-addr") {
		cfg.RaftBindAddr = flagRaftAddr
	}
	if flags.Changed("grpc-addr") {
		cfg.GRPCAddr = flagGRPCAddr
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = flagMetricsAddr
	}
	if flags.Changed("bootstrap") {
		cfg.Bootstrap = flagBootstrap
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = flagLogJSON
	}
}

// drainReports is the single-consumer loop pkg/shardstate's doc.go
// describes: it blocks on the reporter's notify channel (falling back to
// a ticker so a report submitted while this node is not yet leader still
// gets retried once leadership arrives), and folds whatever is pending
// into the routing table when this node is the harness' current leader.
func (n *node) drainReports(ctx context.Context, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-n.reporter.Notify():
		case <-ticker.C:
		}
		if !n.harness.IsLeader() {
			continue
		}
		reports := n.reporter.Drain(256)
		if len(reports) == 0 {
			continue
		}
		if _, err := n.harness.ProposeShardReports(reports); err != nil {
			logger.Warn().Err(err).Msg("applying drained shard-state reports")
		}
		for _, rep := range reports {
			n.publishReport(*rep)
		}
	}
}

// publishReport turns one drained shardstate.Report into an operator-
// facing events.Event, the "page on a failed shard independent of the
// metrics surface" path SPEC_FULL.md §12 describes.
func (n *node) publishReport(rep shardstate.Report) {
	typ := events.EventShardStarted
	msg := fmt.Sprintf("shard %s/%d started", rep.ShardID.Index, rep.ShardID.Shard)
	if rep.Kind == shardstate.Failed {
		typ = events.EventShardFailed
		msg = fmt.Sprintf("shard %s/%d failed: %s", rep.ShardID.Index, rep.ShardID.Shard, rep.Reason)
	}
	n.broker.Publish(&events.Event{
		Type:    typ,
		Message: msg,
		Metadata: map[string]string{
			"index":         rep.ShardID.Index,
			"shard":         fmt.Sprintf("%d", rep.ShardID.Shard),
			"allocation_id": string(rep.AllocationID),
		},
	})
}

// bootstrapDemoIndex waits for this node to become the harness leader,
// then creates a one-shard, zero-replica "docs" index, self-assigns its
// only copy, opens a local translog-backed engine shard for it, and
// reports it started — enough for `meridiond run --demo-index` to be a
// single binary that can immediately serve index/delete writes without a
// separate allocator process.
func (n *node) bootstrapDemoIndex(logger zerolog.Logger) {
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if n.harness.IsLeader() {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !n.harness.IsLeader() {
		logger.Warn().Msg("demo index requested but this node never became leader")
		return
	}

	const indexName = "docs"
	if _, err := n.harness.ProposeCreateIndex(indexName, cluster.IndexMetadata{
		UUID: "demo-docs-uuid", NumShards: 1, NumReplicas: 0,
	}); err != nil {
		logger.Error().Err(err).Msg("creating demo index")
		return
	}
	if _, err := n.harness.ProposeAssignShard(indexName, 0, 0, n.cfg.NodeID); err != nil {
		logger.Error().Err(err).Msg("assigning demo shard")
		return
	}

	shardID := cluster.ShardID{Index: indexName, Shard: 0}
	dataPath := filepath.Join(n.cfg.DataDir, "shards", "docs-0")
	tlog, err := translog.Open(translog.Config{DataPaths: []string{dataPath}})
	if err != nil {
		logger.Error().Err(err).Msg("opening demo shard translog")
		return
	}

	copies := n.harness.Current().ShardCopies(shardID)
	var routing cluster.ShardRouting
	for _, c := range copies {
		if c.Primary {
			routing = c
		}
	}
	routing.State = cluster.Started

	allocID := routing.AllocationID
	indexUUID, _ := n.harness.Current().IndexUUID(indexName)
	shard := engine.NewShard(routing, tlog, func(reason string, cause error) {
		n.reporter.ShardFailed(shardID, allocID, indexUUID, reason)
	})
	n.store.Put(shard)
	n.shards = append(n.shards, shard)

	n.reporter.ShardStarted(shardID, allocID, indexUUID, n.cfg.NodeID)
	logger.Info().Str("index", indexName).Msg("demo index ready for writes")
}

func (n *node) shutdown() error {
	if n.httpSrv != nil {
		_ = n.httpSrv.Close()
	}
	if n.grpcSrv != nil {
		n.grpcSrv.GracefulStop()
	}
	if n.broker != nil {
		n.broker.Stop()
	}
	if n.client != nil {
		_ = n.client.Close()
	}
	for _, sh := range n.shards {
		_ = sh.Close()
	}
	if n.harness != nil {
		return n.harness.Shutdown()
	}
	return nil
}
