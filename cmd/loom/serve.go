package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/asheridan/loom/internal/api"
	"github.com/asheridan/loom/internal/config"
	"github.com/asheridan/loom/internal/engine"
	"github.com/asheridan/loom/internal/exec"
	"github.com/asheridan/loom/internal/registry"
	"github.com/asheridan/loom/internal/state"
)

var (
	serveAddr      string
	serveWorkerCmd string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine as an HTTP service",
	Long: `Start an HTTP server exposing the engine.

Endpoints:
  POST   /runs      submit a request, returns the run ID
  GET    /runs/{id} fetch a run snapshot
  DELETE /runs/{id} request cancellation
  GET    /healthz   liveness check`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveWorkerCmd, "worker", "", "Shell command executed per chunk (required)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveWorkerCmd == "" {
		return fmt.Errorf("--worker is required in serve mode")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Registry.Agents) == 0 {
		return fmt.Errorf("serve mode needs registry.agents in the config")
	}

	cwd, _ := os.Getwd()
	logger := engine.NewDebugLoggerForDir(cwd)
	defer logger.Close()

	opts := []engine.Option{engine.WithDebugLogger(logger)}
	db, err := state.OpenProject(cwd)
	if err == nil {
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		opts = append(opts, engine.WithSink(db))
		defer db.Close()
	}

	eng := engine.New(cfg,
		registry.NewStaticLister(cfg.Registry.Agents),
		exec.NewCommandExecutor(serveWorkerCmd, ""),
		opts...)
	defer eng.Close()

	// Drain events so slow consumers never stall the supervisors.
	go func() {
		for range eng.Events() {
		}
	}()

	srv := &http.Server{
		Addr:         serveAddr,
		Handler:      api.NewHandler(eng).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("listening on %s\n", serveAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
