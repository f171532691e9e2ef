package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/meridian/pkg/log"
)

var (
	// Version information, set via ldflags during build.
	Version = "dev"
	Commit  = "unknown"
)

var cfgPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "meridiond",
	Short:   "Meridian write-coordination node",
	Version: Version,
	Long: `meridiond boots one node of the replicated-write coordination core:
a local cluster-state harness, a shard-addressed grpc transport, and the
primary/replica write path that routes index and delete writes to the
shard copies this cluster places on it.`,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("meridiond %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a node config YAML file")
	rootCmd.AddCommand(runCmd)
}

func initLogger(jsonOut bool, level string) {
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
}
