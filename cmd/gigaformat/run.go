package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"avtolenta/gigaformat/pkg/config"
	"avtolenta/gigaformat/pkg/formatter"
	"avtolenta/gigaformat/pkg/gigachat"
	"avtolenta/gigaformat/pkg/journal"
	"avtolenta/gigaformat/pkg/quota"
	"avtolenta/gigaformat/pkg/server"
	"avtolenta/gigaformat/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gigaformat HTTP API",
	Long: `Start the gigaformat HTTP API with the specified configuration.

The server accepts car listings on POST /v1/format, reports quota usage
on GET /v1/quota, and exposes health probes and Prometheus metrics.

Examples:
  # Start with default config
  gigaformat run

  # Start with custom config
  gigaformat run --config /etc/gigaformat/config.yaml

  # Override listen address
  gigaformat run --listen 0.0.0.0:8080

  # Validate config without starting the server
  gigaformat run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger := logging.Setup(logging.Options{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		RedactPII: cfg.RedactPII(),
	})

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Quota store and tracker
	store, err := buildQuotaStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.DefaultRegisterer

	tracker, err := quota.NewTracker(cfg.Quota.Limits,
		quota.WithStore(store),
		quota.WithLogger(logger.With("component", "quota")),
		quota.WithMetrics(quota.NewMetrics(registry)),
	)
	if err != nil {
		return fmt.Errorf("failed to create quota tracker: %w", err)
	}

	// Eager midnight rollover keeps the persisted counters fresh even
	// when no requests arrive.
	scheduler := quota.NewScheduler(tracker, cfg.Quota.RolloverSchedule)
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start quota scheduler: %w", err)
	}
	defer scheduler.Stop()

	// Usage journal
	usageJournal, err := buildJournal(cfg)
	if err != nil {
		return err
	}
	if usageJournal != nil {
		defer usageJournal.Close()
	}

	// GigaChat client
	client, err := gigachat.NewClient(cfg.GigaChat)
	if err != nil {
		return fmt.Errorf("failed to create gigachat client: %w", err)
	}
	defer client.Close()

	// Formatting service
	svcOpts := []formatter.Option{
		formatter.WithLogger(logger.With("component", "formatter")),
		formatter.WithMetrics(formatter.NewMetrics(registry)),
		formatter.WithEstimator(formatter.NewEstimator(cfg.Formatter.CharsPerToken)),
		formatter.WithTemperature(cfg.Formatter.Temperature),
		formatter.WithMaxTokens(cfg.Formatter.MaxTokens),
	}
	if usageJournal != nil {
		svcOpts = append(svcOpts, formatter.WithJournal(usageJournal))
	}
	service := formatter.NewService(client, tracker, svcOpts...)

	// Configuration hot reload: quota limits and estimation ratios can
	// change without a restart.
	if cfgFile != "" {
		watcher := config.NewWatcher(cfgFile, func(updated *config.Config) {
			tracker.SetLimits(updated.Quota.Limits)
		})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("configuration hot reload unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	// HTTP server
	srvCfg := server.Config{
		ListenAddress:   cfg.Server.ListenAddress,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
	}
	if cfg.MetricsEnabled() {
		srvCfg.MetricsPath = cfg.Telemetry.Metrics.Path
	}

	srvOpts := []server.Option{
		server.WithLogger(logger.With("component", "server")),
		server.WithHealthChecker(client),
	}
	if usageJournal != nil {
		srvOpts = append(srvOpts, server.WithJournal(usageJournal))
	}

	srv := server.NewServer(srvCfg, service, tracker, srvOpts...)

	logger.Info("gigaformat starting",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"model", cfg.GigaChat.Model,
		"request_limit", cfg.Quota.Limits.Request,
		"daily_limit", cfg.Quota.Limits.Daily,
		"monthly_limit", cfg.Quota.Limits.Monthly,
	)

	return srv.Start(ctx)
}

// buildQuotaStore creates the quota persistence backend.
func buildQuotaStore(cfg *config.Config) (quota.Store, error) {
	if cfg.Quota.StorePath == "" {
		slog.Warn("no quota store path configured, counters will not survive restarts")
		return quota.NewMemoryStore(), nil
	}

	if err := ensureDir(cfg.Quota.StorePath); err != nil {
		return nil, err
	}

	store, err := quota.NewSQLiteStore(cfg.Quota.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open quota store: %w", err)
	}
	return store, nil
}

// buildJournal creates the usage journal, or nil when disabled.
func buildJournal(cfg *config.Config) (journal.Journal, error) {
	if !cfg.JournalEnabled() {
		return nil, nil
	}

	if cfg.Journal.Path == "" {
		return journal.NewMemoryJournal(cfg.Journal.MaxEntries), nil
	}

	if err := ensureDir(cfg.Journal.Path); err != nil {
		return nil, err
	}

	j, err := journal.NewSQLiteJournal(&journal.SQLiteConfig{
		Path:       cfg.Journal.Path,
		MaxEntries: cfg.Journal.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open usage journal: %w", err)
	}
	return j, nil
}

// ensureDir creates the parent directory of a file path.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", dir, err)
	}
	return nil
}
