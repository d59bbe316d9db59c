/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the compensation engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, PAYROLL_* variables, flags)
  2. Build the zap logger
  3. Open the store (SQLite or Postgres) and apply migrations
  4. Seed locations from the optional JSON file
  5. Wire aggregator, batch driver, scheduler and HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override configuration):
  -env         .env file path (default: .env)
  -port        HTTP server port
  -driver      sqlite | postgres
  -dsn         SQLite path or Postgres URL
  -workers     batch worker pool size
  -locations   JSON seed file of locations and rate tables
  -run-once    run the circle that just closed, then exit

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (no new teachers are dispatched)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

EXAMPLES:
  ./server -dsn="./data/payroll.db"
  ./server -driver=postgres -dsn="postgres://payroll@localhost/payroll"
  ./server -run-once

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
  - payroll/batch.go: Batch driver
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/compensation-engine/api"
	"github.com/warp/compensation-engine/config"
	"github.com/warp/compensation-engine/factory"
	"github.com/warp/compensation-engine/logging"
	"github.com/warp/compensation-engine/payroll"
	"github.com/warp/compensation-engine/store/postgres"
	"github.com/warp/compensation-engine/store/sqlite"
	"go.uber.org/zap"
)

type closableStore interface {
	payroll.Store
	Close() error
}

func main() {
	// Flags
	envFile := flag.String("env", ".env", ".env file path")
	port := flag.Int("port", 0, "HTTP server port")
	driver := flag.String("driver", "", "database driver: sqlite or postgres")
	dsn := flag.String("dsn", "", "SQLite path or Postgres URL")
	workers := flag.Int("workers", 0, "batch worker pool size")
	locations := flag.String("locations", "", "JSON seed file of locations")
	runOnce := flag.Bool("run-once", false, "close the previous circle and exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, *port, *driver, *dsn, *workers, *locations)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger, *runOnce); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func applyFlags(cfg *config.Config, port int, driver, dsn string, workers int, locations string) {
	if port != 0 {
		cfg.Port = port
	}
	if driver != "" {
		cfg.DBDriver = driver
	}
	if dsn != "" {
		cfg.DBDSN = dsn
	}
	if workers != 0 {
		cfg.Workers = workers
	}
	if locations != "" {
		cfg.LocationsFile = locations
	}
}

func run(cfg *config.Config, logger *zap.Logger, runOnce bool) error {
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("store ready", zap.String("driver", cfg.DBDriver))

	if cfg.LocationsFile != "" {
		if err := seedLocations(ctx, store, cfg.LocationsFile); err != nil {
			return err
		}
		logger.Info("locations seeded", zap.String("file", cfg.LocationsFile))
	}

	aggregator := payroll.NewAggregator(store, store, logger.Named("aggregator"))
	batch := payroll.NewBatch(aggregator, store, cfg.Workers, logger.Named("batch"))
	scheduler := api.NewCircleScheduler(batch, cfg.Zone(), logger.Named("scheduler"))
	scheduler.CheckInterval = cfg.SchedulerInterval
	scheduler.Enabled = cfg.SchedulerEnabled

	if runOnce {
		result, err := scheduler.RunNow(ctx)
		if err != nil {
			return err
		}
		if result == nil {
			logger.Info("previous circle already closed")
		}
		return nil
	}

	handler := api.NewHandler(store, batch, cfg.Zone(), logger.Named("api"))
	router := api.NewRouter(handler, nil)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // batch runs answer when done
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		scheduler.Stop()
		return err
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (closableStore, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DBDSN)
	default:
		return sqlite.New(cfg.DBDSN)
	}
}

func seedLocations(ctx context.Context, store payroll.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read locations: %w", err)
	}
	locs, err := factory.NewRateFactory().ParseLocations(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, loc := range locs {
		if err := store.SaveLocation(ctx, loc); err != nil {
			return err
		}
	}
	return nil
}
