package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"resumehq/refinery/pkg/api"
	"resumehq/refinery/pkg/config"
	"resumehq/refinery/pkg/kvstore"
	"resumehq/refinery/pkg/providers"
	"resumehq/refinery/pkg/providers/openai"
	"resumehq/refinery/pkg/ratelimit"
	"resumehq/refinery/pkg/refine"
	"resumehq/refinery/pkg/refinecache"
	"resumehq/refinery/pkg/server"
	"resumehq/refinery/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the refinement server",
	Long: `Start the refinement server with the specified configuration.

The server listens on the configured address and serves the refinement
API backed by the AI provider, the sliding-window rate limiter, and the
fingerprint cache.

Examples:
  # Start with default config
  refinery run

  # Start with custom config
  refinery run --config /etc/refinery/config.yaml

  # Override listen address
  refinery run --listen 0.0.0.0:8080

  # Validate config without starting server
  refinery run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load .env if present; real environment wins over file values.
	_ = godotenv.Load()

	cfg, watchable, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}

	setupLogging(cfg)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Quota/cache store. Missing configuration is a supported degraded
	// mode: unmetered limiter, always-miss cache.
	store := kvstore.New(kvstore.Config{URL: cfg.Store.URL, Token: cfg.Store.Token})
	defer store.Close()
	if !store.Enabled() {
		slog.Warn("key-value store not configured, running unmetered with caching disabled")
	}

	slog.Info("initializing AI provider", "model", cfg.AI.Model)
	provider, err := openai.New(openai.Config{
		APIKey:  cfg.AI.APIKey,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	defer provider.Close()

	var metrics *refine.Metrics
	if cfg.Metrics.Enabled {
		metrics = refine.NewMetrics()
	}

	var ledger *usage.Ledger
	if cfg.Usage.Enabled {
		ledger, err = usage.Open(usage.Config{
			Path:          cfg.Usage.Path,
			RetentionDays: cfg.Usage.RetentionDays,
		})
		if err != nil {
			return fmt.Errorf("failed to open usage ledger: %w", err)
		}
		defer ledger.Close()

		scheduler := usage.NewScheduler(ledger, cfg.Usage.PruneSchedule)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start usage scheduler: %w", err)
		}
	}

	srv := server.NewServer(cfg, buildRefinery(cfg, store, provider, metrics, ledger), provider, store)

	if watchable {
		if err := watchConfig(ctx, srv, store, provider, metrics, ledger); err != nil {
			return err
		}
	}

	slog.Info("starting refinery",
		"version", Version,
		"rate_limit", cfg.RateLimit.Limit,
		"rate_window", cfg.RateLimit.Window.String(),
		"cache_ttl", cfg.Cache.TTL.String(),
		"usage_ledger", cfg.Usage.Enabled,
	)

	return srv.Start(ctx)
}

// loadConfig loads the configuration file, falling back to defaults
// plus environment variables when the file does not exist. The second
// return value reports whether a file exists to watch for reloads.
func loadConfig() (*config.Config, bool, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		cfg, err := config.LoadDefault()
		if err != nil {
			return nil, false, fmt.Errorf("failed to build default config: %w", err)
		}
		config.SetConfig(cfg)
		return cfg, false, nil
	}

	if err := config.Initialize(cfgFile); err != nil {
		return nil, false, fmt.Errorf("failed to load config: %w", err)
	}
	return config.GetConfig(), true, nil
}

// setupLogging configures the process-wide slog default from config.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// buildRefinery assembles the orchestrator from the current config.
// Called at startup and again on every config reload.
func buildRefinery(cfg *config.Config, store *kvstore.Store, provider providers.Provider, metrics *refine.Metrics, ledger *usage.Ledger) api.Refinery {
	limiter := ratelimit.New(store, ratelimit.Config{
		Limit:     cfg.RateLimit.Limit,
		Window:    cfg.RateLimit.Window,
		KeyPrefix: cfg.RateLimit.KeyPrefix,
	})
	cache := refinecache.New(store, refinecache.Config{TTL: cfg.Cache.TTL})

	refiner := refine.New(cache, limiter, provider, refine.Config{
		MaxBatchSize: cfg.AI.MaxBatchSize,
		Temperature:  cfg.AI.Temperature,
		MaxTokens:    cfg.AI.MaxTokens,
		Metrics:      metrics,
	})

	if ledger != nil {
		return usage.NewRecordingRefinery(refiner, ledger)
	}
	return refiner
}

// watchConfig starts the configuration file watcher. On change the
// quota, cache, and auth parameters are rebuilt and swapped into the
// running server; a failed reload keeps the previous configuration.
func watchConfig(ctx context.Context, srv *server.Server, store *kvstore.Store, provider providers.Provider, metrics *refine.Metrics, ledger *usage.Ledger) error {
	watcher, err := config.NewWatcher(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}

	go func() {
		err := watcher.Watch(ctx, func() error {
			if err := config.ReloadConfig(cfgFile); err != nil {
				return err
			}
			cfg := config.GetConfig()

			srv.Refinery().Swap(buildRefinery(cfg, store, provider, metrics, ledger))
			srv.Resolver().Replace(cfg.Auth.Keys)

			slog.Info("configuration reloaded",
				"rate_limit", cfg.RateLimit.Limit,
				"rate_window", cfg.RateLimit.Window.String(),
				"cache_ttl", cfg.Cache.TTL.String(),
			)
			return nil
		})
		if err != nil {
			slog.Error("config watcher exited", "error", err)
		}
	}()

	return nil
}
