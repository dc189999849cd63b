// Package main provides the planworker binary entry point.
// Planworker claims plan-generation jobs from the shared queue and drives the
// multi-stage LLM pipeline that assembles each user's 7-day fitness plan.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	// Register LLM providers via init()
	_ "github.com/fitstack/planworker/llm/providers"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fitstack/planworker/config"
	"github.com/fitstack/planworker/llm"
	"github.com/fitstack/planworker/notify"
	"github.com/fitstack/planworker/pipeline"
	"github.com/fitstack/planworker/store"
	"github.com/fitstack/planworker/worker"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "planworker"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "planworker",
		Short: "Fitness plan generation worker",
		Long: `Planworker is the queue worker behind weekly fitness plan generation.

It claims one job per invocation from the Postgres-backed queue, drives the
split-first LLM pipeline (weekly split, base nutrition, per-day fan-out,
verification, reasons), checkpoints every completed stage, and yields to a
successor invocation when the time budget runs low.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, logLevel)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

// retryConfig overlays the configured attempt count on the retry defaults.
func retryConfig(maxAttempts int) llm.RetryConfig {
	cfg := llm.DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	return cfg
}

func run(configPath, logLevel string) error {
	// .env is optional; real deployments inject environment directly.
	_ = godotenv.Load()

	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()

	st, err := store.New(ctx, cfg.Supabase.DatabaseURL, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("connect store: %w", err)
	}
	defer st.Close()

	client, err := llm.NewClient(cfg.Model.Provider, cfg.Model.Endpoint, cfg.Model.Name,
		llm.WithLogger(logger),
		llm.WithTemperature(cfg.Model.Temperature),
		llm.WithTimeouts(cfg.Tunables.LLMConnectTimeout, cfg.Tunables.LLMStreamTimeout),
		llm.WithSoftFloor(cfg.Tunables.StreamSoftFloorChars),
		llm.WithMaxTokensCap(cfg.Tunables.MaxTokensCap),
		llm.WithRetryConfig(retryConfig(cfg.Model.MaxAttempts)),
	)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}

	var notifyOpts []notify.Option
	notifyOpts = append(notifyOpts, notify.WithLogger(logger))
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(appName),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(time.Second),
		)
		if err != nil {
			// Events are optional; push and in-app rows still deliver.
			logger.Warn("NATS connect failed, events disabled", "url", cfg.NATS.URL, "error", err)
		} else {
			defer nc.Close()
			notifyOpts = append(notifyOpts, notify.WithNATS(nc))
		}
	}
	notifier := notify.New(st, cfg.Push.Endpoint, notifyOpts...)

	orch := pipeline.New(client, st, cfg.Tunables, pipeline.WithLogger(logger))

	w := worker.New(st, st, st, orch, notifier, cfg.Tunables,
		worker.WithLogger(logger),
		worker.WithSelfURL(cfg.Server.SelfURL),
	)

	mux := http.NewServeMux()
	mux.Handle("/", w.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Planworker listening",
			"version", Version,
			"addr", cfg.Server.Addr,
			"provider", cfg.Model.Provider,
			"model", cfg.Model.Name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-signalCtx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Planworker shutdown complete")
	return nil
}
