package main

import (
	"bufio"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

var flagEventsAddr string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail shard and cluster events from a running node",
	Long: `events connects to a running node's /events stream and prints each
shard-started, shard-failed, or cluster notification as it arrives, the
same feed a dashboard would subscribe to, independent of the metrics
surface.`,
	RunE: tailEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&flagEventsAddr, "addr", "http://127.0.0.1:7002", "metrics/events HTTP address of the node to tail")
	rootCmd.AddCommand(eventsCmd)
}

func tailEvents(cmd *cobra.Command, args []string) error {
	resp, err := http.Get(strings.TrimRight(flagEventsAddr, "/") + "/events")
	if err != nil {
		return fmt.Errorf("meridiond: connecting to events stream: %w", err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			fmt.Fprintln(cmd.OutOrStdout(), payload)
		}
	}
	return scanner.Err()
}
