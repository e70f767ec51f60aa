package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/guidesnap/guidesnap/internal/agent"
	"github.com/guidesnap/guidesnap/internal/annotate"
	"github.com/guidesnap/guidesnap/internal/config"
	"github.com/guidesnap/guidesnap/internal/editor"
	"github.com/guidesnap/guidesnap/internal/hub"
	"github.com/guidesnap/guidesnap/internal/recorder"
	"github.com/guidesnap/guidesnap/internal/server"
	"github.com/guidesnap/guidesnap/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Listen   string
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the recording daemon",
		Long: `Start the GuideSnap recording daemon.

The daemon opens the guide database, starts the annotation backend and
the recorder's event loop, and serves the HTTP surface that page agents
and the CLI talk to. Page agents connect under /agent for their command
stream and screenshot uploads.

Example:
  guidesnap run
  guidesnap run --listen 127.0.0.1:9000 --db ./guides.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Listen != "" {
		cfg.ListenAddr = opts.Listen
	}
	if opts.Database != "" {
		cfg.DatabasePath = opts.Database
	}

	// Configure logging from config, with --verbose forcing debug
	logLevel := cfg.SlogLevel()
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	// Open database (create parent directory and file if needed)
	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create database directory", err)
		}
	}
	slog.Info("opening database", "path", cfg.DatabasePath)
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Wire the recorder to the agent hub and annotation backend
	agents := hub.New()
	annotator := annotate.NewBackend()
	defer annotator.Shutdown()
	rec, err := recorder.New(ctx, st, agents, agents, annotator,
		recorder.WithOverlaySettle(cfg.Capture.OverlaySettle.Std()),
		recorder.WithKeepAlive(cfg.KeepAliveInterval.Std()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize recorder", err)
	}

	recErr := make(chan error, 1)
	go func() {
		recErr <- rec.Run(ctx)
	}()

	// Per-page capture agents apply the configured bounds and debounce to
	// raw interactions, and mirror every state broadcast.
	registry := agent.NewRegistry(rec,
		agent.WithScrollDebounce(cfg.Capture.ScrollThreshold, cfg.Capture.ScrollQuiet.Std()),
		agent.WithTextBounds(cfg.Capture.MaxTextLength, cfg.Capture.MaxInputLength))
	updates, unsubscribe := rec.Subscribe()
	defer unsubscribe()
	go func() {
		for snap := range updates {
			registry.ApplyState(snap.Status)
		}
	}()

	srv := server.New(rec, st, editor.New(st),
		server.WithAgentRoutes(agents.Routes()),
		server.WithInteractions(registry))
	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv,
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpSrv.ListenAndServe()
	}()

	slog.Info("daemon started", "addr", cfg.ListenAddr, "db", cfg.DatabasePath)
	fmt.Fprintf(cmd.OutOrStdout(), "GuideSnap daemon listening on %s\n", cfg.ListenAddr)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	var runErr error
	recDone := false
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
		cancel()
	case err := <-recErr:
		recDone = true
		if err != nil && !isShutdownErr(err) {
			runErr = err
		}
		cancel()
	}

	// Stop accepting requests, then wind down the recorder loop.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("http shutdown", "error", err)
	}
	cancel()

	if !recDone {
		if err := <-recErr; err != nil && !isShutdownErr(err) && runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		return WrapExitError(ExitFailure, "daemon error", runErr)
	}
	slog.Info("daemon stopped gracefully")
	return nil
}

// isShutdownErr reports whether the recorder loop ended because its
// context did. Cancellation and deadline expiry are both orderly exits,
// not daemon failures.
func isShutdownErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
