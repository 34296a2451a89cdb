package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/internal/engine"
	"github.com/asheridan/loom/internal/exec"
	"github.com/asheridan/loom/internal/registry"
	"github.com/asheridan/loom/internal/state"
	"github.com/asheridan/loom/internal/tui"
	"github.com/asheridan/loom/pkg/models"
)

var (
	runMaxParallel int
	runDeadline    time.Duration
	runWorkerCmd   string
	runQuiet       bool
	runDashboard   bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Submit a request and supervise it to completion",
	Long: `Submit a work request to the engine and stream progress until the run
reaches a terminal verdict.

The agent pool comes from the registry.agents section of the config; each
agent declares capability tags and a capacity. Chunks execute through the
worker command (--worker), which receives the chunk description on stdin
and the agent ID in LOOM_AGENT.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runMaxParallel, "parallel", "p", 0, "Maximum concurrently running chunks (0 = config default)")
	runCmd.Flags().DurationVar(&runDeadline, "deadline", 0, "Overall deadline for the run (0 = none)")
	runCmd.Flags().StringVar(&runWorkerCmd, "worker", "", "Shell command executed per chunk (default: echo the chunk back)")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Suppress progress output, print only the final result")
	runCmd.Flags().BoolVar(&runDashboard, "tui", false, "Show a full-screen dashboard instead of line-based progress")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Registry.Agents) == 0 {
		cfg.Registry.Agents = []config.StaticAgent{
			{ID: "local-1", Capacity: 2},
			{ID: "local-2", Capacity: 2},
		}
	}
	lister := registry.NewStaticLister(cfg.Registry.Agents)

	var executor exec.Executor
	if runWorkerCmd != "" {
		executor = exec.NewCommandExecutor(runWorkerCmd, "")
	} else {
		executor = exec.ExecutorFunc(func(ctx context.Context, chunk *models.Chunk, agent models.AgentInfo) (string, error) {
			return chunk.Description, nil
		})
	}

	cwd, _ := os.Getwd()
	logger := engine.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	opts := []engine.Option{engine.WithDebugLogger(logger)}
	if db, err := state.OpenProject(cwd); err == nil {
		if err := db.Migrate(); err == nil {
			opts = append(opts, engine.WithSink(db))
			defer db.Close()
		}
	}

	eng := engine.New(cfg, lister, executor, opts...)

	maxParallel := runMaxParallel
	if maxParallel <= 0 {
		maxParallel = cfg.Dispatch.MaxParallel
	}
	req := &models.Request{
		Description: strings.Join(args, " "),
		Constraints: models.Constraints{MaxParallel: maxParallel},
	}
	if runDeadline > 0 {
		req.Constraints.Deadline = time.Now().Add(runDeadline)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID, err := eng.Submit(ctx, req)
	if err != nil {
		return err
	}
	// Translate Ctrl-C into engine cancellation so the run still produces
	// a manifest for the work already accepted.
	go func() {
		<-ctx.Done()
		eng.Cancel(runID)
	}()

	var snap *models.RunSnapshot
	if runDashboard && !runQuiet {
		snap, err = superviseWithDashboard(eng, runID)
	} else {
		if !runQuiet {
			fmt.Printf("run %s started\n", runID)
		}
		go streamProgress(eng, runID)
		snap, err = eng.Wait(context.Background(), runID)
	}
	if err != nil {
		return err
	}

	printResult(snap)
	if snap.Verdict == models.VerdictFailed {
		os.Exit(1)
	}
	return nil
}

// superviseWithDashboard runs the full-screen dashboard until the run
// finishes or the user quits. Quitting early cancels the run.
func superviseWithDashboard(eng *engine.Engine, runID string) (*models.RunSnapshot, error) {
	program, dash := tui.NewDashboardProgram(runID)

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if snap, err := eng.GetStatus(runID); err == nil {
					program.Send(tui.RunUpdateMsg{Snapshot: snap})
				}
			}
		}
	}()

	go func() {
		for ev := range eng.Events() {
			if ev.RunID != runID {
				continue
			}
			switch ev.Type {
			case engine.EventChunkStateChanged:
				msg := fmt.Sprintf("chunk %s %s", ev.ChunkID, ev.State)
				if ev.AgentID != "" {
					msg += " @" + ev.AgentID
				}
				if ev.Message != "" {
					msg += ": " + ev.Message
				}
				program.Send(tui.RunLogMsg{Timestamp: ev.Timestamp, Message: msg})
			case engine.EventRunCompleted, engine.EventRunFailed:
				program.Send(tui.RunDoneMsg{Verdict: ev.Verdict})
			}
		}
	}()

	_, err := program.Run()
	close(stop)
	if err != nil {
		return nil, err
	}

	if dash.Quitting() && !dash.Done() {
		eng.Cancel(runID)
	}
	return eng.Wait(context.Background(), runID)
}

// streamProgress prints chunk state transitions as they happen.
func streamProgress(eng *engine.Engine, runID string) {
	if runQuiet {
		return
	}
	for ev := range eng.Events() {
		if ev.RunID != runID || ev.Type != engine.EventChunkStateChanged {
			continue
		}
		fmt.Printf("  %s chunk %s %s%s\n",
			time.Now().Format("15:04:05"),
			ev.ChunkID,
			stateColor(ev.State)(string(ev.State)),
			suffixFor(ev))
	}
}

func suffixFor(ev engine.Event) string {
	parts := []string{}
	if ev.AgentID != "" {
		parts = append(parts, "agent="+ev.AgentID)
	}
	if ev.Message != "" {
		parts = append(parts, ev.Message)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func stateColor(s models.ChunkState) func(a ...interface{}) string {
	switch s {
	case models.ChunkAccepted:
		return color.New(color.FgGreen).SprintFunc()
	case models.ChunkFailed, models.ChunkRejected:
		return color.New(color.FgRed).SprintFunc()
	case models.ChunkBlocked, models.ChunkCancelled:
		return color.New(color.FgYellow).SprintFunc()
	case models.ChunkRunning, models.ChunkDispatched:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return color.New(color.Faint).SprintFunc()
	}
}

func printResult(snap *models.RunSnapshot) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Println()
	fmt.Printf("%s %s\n", bold("verdict:"), verdictColor(snap.Verdict)(string(snap.Verdict)))

	if snap.Result == nil {
		return
	}
	fmt.Println(bold("manifest:"))
	for _, entry := range snap.Result.Manifest {
		line := fmt.Sprintf("  [%s] %s (attempts: %d)", entry.Fate, entry.ChunkID, entry.Attempts)
		if entry.Reason != "" {
			line += " - " + entry.Reason
		}
		fmt.Println(line)
	}
	if snap.Result.Deliverable != "" {
		fmt.Println(bold("deliverable:"))
		fmt.Println(snap.Result.Deliverable)
	}
}

func verdictColor(v models.RunVerdict) func(a ...interface{}) string {
	switch v {
	case models.VerdictSucceeded:
		return color.New(color.FgGreen).SprintFunc()
	case models.VerdictPartiallyFailed:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}
