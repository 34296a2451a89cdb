package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asheridan/loom/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Display the effective configuration after merging defaults, the user
config (~/.config/loom/config.yaml), the project config (.loom.yaml), and
LOOM_* environment variables.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		displayConfig(cfg)
	},
}

func displayConfig(cfg *config.Config) {
	fmt.Printf("assess.decomposition_threshold: %.1f\n", cfg.Assess.DecompositionThreshold)
	fmt.Printf("chunks.min_units: %d\n", cfg.Chunks.MinUnits)
	fmt.Printf("chunks.max_units: %d\n", cfg.Chunks.MaxUnits)
	fmt.Printf("dispatch.max_retries: %d\n", cfg.Dispatch.MaxRetries)
	fmt.Printf("dispatch.max_parallel: %d\n", cfg.Dispatch.MaxParallel)
	fmt.Printf("dispatch.timeout_small: %s\n", cfg.Dispatch.TimeoutSmall)
	fmt.Printf("dispatch.timeout_medium: %s\n", cfg.Dispatch.TimeoutMedium)
	fmt.Printf("dispatch.timeout_large: %s\n", cfg.Dispatch.TimeoutLarge)
	fmt.Printf("registry.snapshot_ttl: %s\n", cfg.Registry.SnapshotTTL)
	fmt.Printf("registry.agents: %d configured\n", len(cfg.Registry.Agents))
	researchURL := "(not set)"
	if cfg.Research.URL != "" {
		researchURL = cfg.Research.URL
	}
	fmt.Printf("research.url: %s\n", researchURL)
	fmt.Printf("research.timeout: %s\n", cfg.Research.Timeout)
	fmt.Printf("gates.content: %t\n", cfg.Gates.Content)
	fmt.Printf("gates.shape: %t\n", cfg.Gates.Shape)
	fmt.Printf("gates.external: %t\n", cfg.Gates.External)
	taxonomyPath := "(built-in)"
	if cfg.Taxonomy.Path != "" {
		taxonomyPath = cfg.Taxonomy.Path
	}
	fmt.Printf("taxonomy.path: %s\n", taxonomyPath)
	fmt.Printf("taxonomy.watch: %t\n", cfg.Taxonomy.Watch)

	fmt.Printf("\nUser config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("Project config: %s\n", project)
	}
}
