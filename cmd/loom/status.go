package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/asheridan/loom/internal/state"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show run history",
	Long: `Display completed runs from the local history database.

Without arguments, lists recent runs. With a run ID, shows that run's
manifest and deliverable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		dbPath = state.GlobalDBPath()
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No run history. Submit work with 'loom run <request>'.")
		return nil
	}

	db, err := state.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if len(args) == 1 {
		return showRun(db, args[0])
	}
	return listRuns(db)
}

func showRun(db *state.DB, runID string) error {
	rec, err := db.GetRun(context.Background(), runID)
	if errors.Is(err, state.ErrRunNotFound) {
		fmt.Printf("No run %s in history.\n", runID)
		return nil
	}
	if err != nil {
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s %s\n", bold("run:"), rec.RunID)
	fmt.Printf("%s %s\n", bold("verdict:"), rec.Verdict)
	fmt.Printf("%s %.2f\n", bold("complexity:"), rec.Complexity)
	fmt.Printf("%s %s\n", bold("started:"), rec.StartedAt)
	if rec.FinishedAt != "" {
		fmt.Printf("%s %s\n", bold("finished:"), rec.FinishedAt)
	}

	fmt.Println(bold("manifest:"))
	for _, entry := range rec.Manifest {
		line := fmt.Sprintf("  [%s] %s: %s (attempts: %d)", entry.Fate, entry.ChunkID, entry.Description, entry.Attempts)
		if entry.Reason != "" {
			line += " - " + entry.Reason
		}
		fmt.Println(line)
	}
	if rec.Deliverable != "" {
		fmt.Println(bold("deliverable:"))
		fmt.Println(rec.Deliverable)
	}
	return nil
}

func listRuns(db *state.DB) error {
	runs, err := db.ListRuns(context.Background(), statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No run history. Submit work with 'loom run <request>'.")
		return nil
	}

	for _, rec := range runs {
		fmt.Printf("%s  %-17s  %s\n", rec.RunID, rec.Verdict, rec.StartedAt)
	}
	return nil
}
