package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/stockvaluation/backend/internal/api"
	"github.com/wonny/stockvaluation/backend/internal/api/handlers"
	"github.com/wonny/stockvaluation/backend/internal/scheduler"
	"github.com/wonny/stockvaluation/backend/internal/scheduler/jobs"
	"github.com/wonny/stockvaluation/backend/pkg/logger"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the valuation API server",
	Long: `Start the REST API server together with the ops scheduler.

Endpoints:
  GET  /valuation-report?ticker=TICKER  - valuation report
  GET  /health                          - server and database health
  GET  /cache/stats                     - cache and persistence queue counters

Scheduled jobs:
  cache_stats  - every minute
  db_health    - every 5 minutes

Example:
  go run ./cmd/stockvaluation api
  go run ./cmd/stockvaluation api --port 9090 --migrate`,
	RunE: runAPIServer,
}

var (
	apiPort    string
	apiMigrate bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
	apiCmd.Flags().BoolVar(&apiMigrate, "migrate", false, "apply database migrations before serving")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log := logger.New(cfg)
	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	ctx := context.Background()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(ctx); err != nil {
			log.WithError(err).Error("Shutdown incomplete")
		}
	}()

	if apiMigrate {
		version, err := a.db.MigrateUp(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.WithField("version", version).Info("Database schema up to date")
	}

	// Scheduler
	sched := scheduler.New(log, scheduler.DefaultOptions())
	for _, job := range []scheduler.Job{
		jobs.NewCacheStatsJob(a.cache, a.persist, log),
		jobs.NewDBHealthJob(a.db, log),
	} {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job: %w", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP
	valuationHandler := handlers.NewValuationHandler(a.orchestrator, a.formatter, log)
	opsHandler := handlers.NewOpsHandler(a.db, a.cache, a.persist, log)
	server := api.New(cfg, log, api.NewRouter(valuationHandler, opsHandler, log))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /valuation-report?ticker=TICKER")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /cache/stats")
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
