package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/marinemon/internal/alert"
	"github.com/hazz-dev/marinemon/internal/config"
	"github.com/hazz-dev/marinemon/internal/coordinator"
	"github.com/hazz-dev/marinemon/internal/dashboard"
	"github.com/hazz-dev/marinemon/internal/health"
	"github.com/hazz-dev/marinemon/internal/openmeteo"
	"github.com/hazz-dev/marinemon/internal/scheduler"
	"github.com/hazz-dev/marinemon/internal/server"
	"github.com/hazz-dev/marinemon/internal/storage"
	"github.com/hazz-dev/marinemon/internal/version"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "marinemon",
		Short:        "Marine weather polling adapter with upstream health gating",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "config file path")

	root.AddCommand(versionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(healthCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("marinemon %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the polling adapter",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := slog.Default()

	// 1. Load config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.Info("config loaded", "locations", len(cfg.Locations))

	// 2. Open SQLite
	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	// 3. Build upstream client and health monitor
	client := openmeteo.NewClient(cfg.API.BaseURL, cfg.API.Timezone, cfg.API.RequestTimeout.Duration)
	monitor := health.NewMonitor(client, health.Options{
		Interval:   cfg.Health.CheckInterval.Duration,
		Timeout:    cfg.API.RequestTimeout.Duration,
		WindowSize: cfg.Health.WindowSize,
		Thresholds: health.Thresholds{
			FailureThreshold:    cfg.Health.FailureThreshold,
			RecoveryThreshold:   cfg.Health.RecoveryThreshold,
			DegradedLatency:     cfg.Health.DegradedLatency.Duration,
			DegradedSuccessRate: cfg.Health.DegradedSuccessRate,
		},
	}, logger)

	// 4. Listeners: transition log, persisted events, optional webhook
	monitor.OnStatusChange(func(change health.StatusChange) {
		logger.Warn("upstream health changed",
			"old_status", change.Old,
			"new_status", change.New,
			"success_rate", change.Snapshot.SuccessRate,
			"consecutive_failures", change.Snapshot.ConsecutiveFailures,
		)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.InsertHealthEvent(ctx, change, time.Now()); err != nil {
			logger.Error("storing health event", "error", err)
		}
	})
	if cfg.Alerts.Webhook.URL != "" {
		alerter := alert.New(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Cooldown.Duration, logger)
		monitor.OnStatusChange(alerter.Notify)
	}

	// 5. One coordinator per location
	coordinators := make([]*coordinator.Coordinator, 0, len(cfg.Locations))
	byName := make(map[string]*coordinator.Coordinator, len(cfg.Locations))
	for _, loc := range cfg.Locations {
		c := coordinator.New(loc.Name, func(ctx context.Context) (*openmeteo.CurrentMarine, error) {
			return client.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
		}, monitor, cfg.API.RequestTimeout.Duration, logger)
		coordinators = append(coordinators, c)
		byName[loc.Name] = c
	}

	// 6. Build scheduler and API server
	sched := scheduler.New(coordinators, db, cfg.API.PollInterval.Duration, logger)
	apiServer := server.New(db, monitor, cfg.Locations, byName, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer.Router())
	mux.Handle("/", dashboard.Handler())

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	// 7. Signal context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// 8. Start monitor and scheduler
	monitor.Start(ctx)
	sched.Start(ctx)
	logger.Info("scheduler started",
		"locations", len(cfg.Locations),
		"poll_interval", cfg.API.PollInterval.Duration,
		"check_interval", cfg.Health.CheckInterval.Duration,
	)

	// 9. Start HTTP server in background
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "address", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// 10. Wait for signal or server error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	// 11. Graceful shutdown
	sched.Wait()
	monitor.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run a one-off fetch for all configured locations",
		RunE:  runFetch,
	}
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return executeFetch(cmd, cfg)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print latest stored fetch per location from database",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	return executeStatus(cmd, db)
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the marine API once and print the result",
		RunE:  runHealth,
	}
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return executeHealth(cmd, cfg)
}
