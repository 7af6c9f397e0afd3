package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/database"
	"github.com/polytrack/polytrack/internal/detect"
	"github.com/polytrack/polytrack/internal/fanout"
	"github.com/polytrack/polytrack/internal/gamma"
	"github.com/polytrack/polytrack/internal/ingest"
	"github.com/polytrack/polytrack/internal/scheduler"
	"github.com/polytrack/polytrack/internal/store"
	"github.com/polytrack/polytrack/internal/tracked"
	"github.com/polytrack/polytrack/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty: in-memory defaults)")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting tracker",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	var cfg *config.TrackerConfig
	if *configPath == "" {
		cfg = config.Default()
		logger.Info("no config file given, using in-memory defaults")
	} else {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"gamma_url", cfg.Provider.GammaURL,
		"in_memory", cfg.Database.InMemory,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Select the store
	var st store.Store
	if cfg.Database.InMemory {
		st = store.NewMemory()
		logger.Info("using in-memory store")
	} else {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := store.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		st = store.NewPostgres(pool)
		logger.Info("database connected")
	}

	// Provider client
	providerClient := gamma.NewClient(
		cfg.Provider.GammaURL,
		cfg.Provider.ClobURL,
		gamma.WithLogger(logger),
		gamma.WithTimeout(cfg.Provider.Timeout),
		gamma.WithRetries(cfg.Provider.MaxRetries, cfg.Provider.RetryBackoff),
	)

	// Tracked-market registry (initial load)
	registry := tracked.NewRegistry(st, logger)
	if err := registry.Reload(ctx); err != nil {
		logger.Error("initial tracked-market load failed", "error", err)
		os.Exit(1)
	}
	logger.Info("tracked markets loaded", "count", len(registry.Markets()))

	// Pipeline components
	ingestor := ingest.NewIngestor(providerClient, st, logger)
	detector := detect.NewDetector(st, cfg.Detector, logger)

	// Fan-out hub and server
	hub := fanout.NewHub(cfg.Fanout, logger)
	if err := hub.Start(ctx); err != nil {
		logger.Error("failed to start fanout hub", "error", err)
		os.Exit(1)
	}

	fanoutServer := fanout.NewServer(cfg.Fanout, hub, registry, logger)
	if err := fanoutServer.Start(ctx); err != nil {
		logger.Error("failed to start fanout server", "error", err)
		os.Exit(1)
	}

	// Scheduler ties it together
	sched := scheduler.New(cfg.Scheduler, registry, registry, ingestor, detector, st, hub, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	logger.Info("tracker running",
		"instance_id", cfg.Instance.ID,
		"fanout_addr", cfg.Fanout.Addr,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler shutdown", "error", err)
	}
	if err := fanoutServer.Stop(shutdownCtx); err != nil {
		logger.Warn("fanout server shutdown", "error", err)
	}
	if err := hub.Stop(shutdownCtx); err != nil {
		logger.Warn("fanout hub shutdown", "error", err)
	}

	logger.Info("tracker stopped")
}
