package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anstrom/scanwrap/internal/api"
	"github.com/anstrom/scanwrap/internal/config"
	"github.com/anstrom/scanwrap/internal/logging"
	"github.com/anstrom/scanwrap/internal/metrics"
	"github.com/anstrom/scanwrap/internal/scanning"
	"github.com/anstrom/scanwrap/internal/scheduler"
	"github.com/anstrom/scanwrap/internal/store"
)

var (
	serverHost string
	serverPort int
)

// serverCmd runs the API server and the job scheduler in the foreground.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the HTTP API and scheduled jobs",
	Long: `Run the REST API (when api.enabled is set or --port is given) and fire
the configured scheduled jobs until interrupted. Both share one limit on
concurrently running scans (scanner.max_concurrent).`,
	Example: `  scanwrap server
  scanwrap server --host 0.0.0.0 --port 9090`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverHost, "host", "", "API listen address (overrides config)")
	serverCmd.Flags().IntVar(&serverPort, "port", 0, "API port (overrides config and enables the API)")
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if serverHost != "" {
		cfg.API.ListenAddr = serverHost
	}
	if serverPort != 0 {
		cfg.API.Port = serverPort
		cfg.API.Enabled = true
	}

	if !cfg.IsAPIEnabled() && len(cfg.Schedule.Jobs) == 0 {
		return fmt.Errorf("nothing to run: enable the API or configure scheduled jobs")
	}

	logger := logging.Default().WithComponent("server")
	logger.Info("Starting scanwrap server",
		"version", version,
		"commit", commit,
		"api_enabled", cfg.IsAPIEnabled(),
		"jobs", len(cfg.Schedule.Jobs))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Database.Enabled {
		return serve(ctx, cfg, nil, logger)
	}
	return withReportStore(ctx, cfg, func(ctx context.Context, reports *store.ReportStore) error {
		return serve(ctx, cfg, reports, logger)
	})
}

// serve runs until ctx is canceled. reports is nil when storage is disabled.
func serve(ctx context.Context, cfg *config.Config, reports *store.ReportStore, logger *logging.Logger) error {
	pm := metrics.GetGlobalMetrics()
	limiter := scanning.NewLimiter(cfg.Scanner.MaxConcurrent)
	defer func() {
		_ = limiter.Close()
	}()

	deps := api.Dependencies{
		Limiter:    limiter,
		NewSession: newSessionFactory(cfg, pm),
		Metrics:    pm,
	}
	var sink scheduler.ReportSink
	if reports != nil {
		deps.Reports = reports
		deps.Database = reports
		sink = reports
	}

	sched, err := buildScheduler(cfg, limiter, pm, sink)
	if err != nil {
		return err
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	if !cfg.IsAPIEnabled() {
		<-ctx.Done()
		logger.Info("Received shutdown signal")
		return nil
	}

	apiServer, err := api.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "API server listening on %s\n", apiServer.Address())
	fmt.Fprintf(os.Stderr, "Health check: http://%s/api/v1/health\n", apiServer.Address())

	return apiServer.Start(ctx)
}
