package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Task decomposition and multi-agent orchestration engine",
	Long: `Loom takes a free-form work request, scores its complexity, splits it
into a dependency-ordered set of chunks, and dispatches those chunks to
capable agents under a concurrency cap.

Core capabilities:
- Scores requests on structural, resource, timeline, and coordination axes
- Decomposes complex requests into an acyclic chunk graph
- Matches chunks to agents by capability tags and idle capacity
- Supervises execution with per-chunk timeouts and bounded retries
- Gates output quality before accepting a chunk
- Aggregates accepted output into a single deliverable with a manifest`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
