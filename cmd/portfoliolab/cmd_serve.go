package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/portfoliolab/internal/clientdata"
	"github.com/aristath/portfoliolab/internal/modules/reports/handlers"
	"github.com/aristath/portfoliolab/internal/scheduler"
	"github.com/aristath/portfoliolab/internal/server"
)

// serveCmd runs the HTTP API and the background jobs
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored runs over HTTP and refresh the sweep on a schedule",
	Long: `Start the HTTP API (runs, allocations, backtests, equity curves, health,
system stats, Prometheus metrics and a websocket stream of finished runs)
together with the background jobs:

  refresh_sweep         recompute the configured sweep (REFRESH_SCHEDULE)
  client_data_cleanup   drop expired cache rows (hourly)
  check_databases       integrity-check both databases (every 6 hours)
  prune_runs            delete runs older than RUN_RETENTION_DAYS (daily)

When EXPORT_BUCKET is set every refreshed run is also archived to the bucket.`,
	RunE: runServe,
}

var (
	servePort        int
	serveRefreshNow  bool
	serveNoScheduler bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default from PORT)")
	serveCmd.Flags().BoolVar(&serveRefreshNow, "refresh-now", false, "Run the refresh sweep once at startup")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Serve stored runs without background jobs")
}

func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cfg, log, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting portfoliolab")

	srv := server.New(server.Config{
		Log:       log,
		ResultsDB: a.resultsDB,
		CacheDB:   a.cacheDB,
		Reports:   handlers.NewHandler(a.reports, a.analysis, cfg.SweepRequest(), log),
		Metrics:   a.metrics,
		DataDir:   cfg.DataDir,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
	})

	a.analysis.AddRunObserver(srv.Events())

	sched := scheduler.New(log)
	if !serveNoScheduler {
		if err := registerJobs(sched, a); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down server...")
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}

func registerJobs(sched *scheduler.Scheduler, a *app) error {
	refresh := scheduler.NewRefreshSweepJob(a.analysis, cfg.SweepRequest(), cfg.RefreshTimeout, log)
	if cfg.Export.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc, err := newExportService(ctx, a)
		if err != nil {
			return err
		}
		refresh.SetExporter(svc)
	}

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.RefreshSchedule, refresh},
		{"@hourly", clientdata.NewCleanupJob(a.cache, log)},
		{"0 0 */6 * * *", scheduler.NewCheckDatabasesJob(log, a.resultsDB, a.cacheDB)},
		{"0 30 3 * * *", scheduler.NewPruneRunsJob(a.reports, cfg.RunRetention, log)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return err
		}
	}

	if serveRefreshNow {
		go func() {
			if err := sched.RunNow(refresh); err != nil {
				log.Error().Err(err).Msg("Startup refresh failed")
			}
		}()
	}
	return nil
}
