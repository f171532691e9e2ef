// Package config loads the YAML file that assembles one meridiond
// process, the way the teacher repo's deploy/ingress layers read their
// own settings files: a plain struct, unmarshalled over a Default()
// baseline, no further validation framework.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full set of knobs needed to boot one node. CLI flags in
// cmd/meridiond override whatever a file supplies; neither is required
// on its own.
type Config struct {
	NodeID string `yaml:"node_id"`

	// DataDir holds this node's raft log/stable/snapshot stores and
	// every local shard's translog files, each under its own
	// subdirectory.
	DataDir string `yaml:"data_dir"`

	RaftBindAddr string `yaml:"raft_bind_addr"`
	GRPCAddr     string `yaml:"grpc_addr"`
	MetricsAddr  string `yaml:"metrics_addr"`

	Bootstrap bool `yaml:"bootstrap"`

	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`

	// ReporterQueueCapacity bounds pkg/shardstate.Reporter's pending
	// queue on this node when it is acting as master.
	ReporterQueueCapacity int `yaml:"reporter_queue_capacity"`
}

// Default returns the settings a single-node dev cluster boots with when
// no file and no flags override them.
func Default() Config {
	return Config{
		NodeID:                "node-1",
		DataDir:               "./data",
		RaftBindAddr:          "127.0.0.1:7000",
		GRPCAddr:              "127.0.0.1:7001",
		MetricsAddr:           "127.0.0.1:7002",
		Bootstrap:             true,
		LogLevel:              "info",
		ReporterQueueCapacity: 1024,
	}
}

// Load reads path (if non-empty) over Default, returning the merged
// result. A missing path is not an error: every field keeps its default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
