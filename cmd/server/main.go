// Package main runs the dating service: it wires the repositories, services
// and event publisher and serves the ops endpoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/config"
	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/events"
	"github.com/amora/dating-service/internal/observability"
	"github.com/amora/dating-service/internal/pagination"
	"github.com/amora/dating-service/internal/repository"
	httpserver "github.com/amora/dating-service/internal/server/http"
	"github.com/amora/dating-service/internal/service"
	"github.com/amora/dating-service/migrations"
)

// application holds everything that outlives run's setup phase.
type application struct {
	services  *service.Services
	publisher events.Publisher
	logger    zerolog.Logger
}

func (a *application) close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Error().Err(err).Msg("failed to close event publisher")
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.Logging).With().Str("component", "server").Logger()
	logger.Info().Msg("dating-service starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	if cfg.Database.MigrationAutoRun {
		if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	app := &application{
		publisher: newPublisher(cfg.Kafka, metrics, logger),
		logger:    logger,
	}
	defer app.close()

	repos := repository.New(db,
		repository.WithLogger(logger),
		repository.WithObserver(metrics),
		repository.WithLimits(pagination.NewLimits(cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit)),
	)
	app.services = service.New(service.Dependencies{
		Tx:        db,
		Repos:     repos,
		Publisher: app.publisher,
		Metrics:   metrics,
		Logger:    logger,
		// Without a broker no worker sees the events, so fame is kept
		// current in the write path instead.
		InlineFameRefresh: !cfg.Kafka.Enabled,
	}, cfg.Chat)

	httpCfg := httpserver.Config{
		Address:      cfg.Server.HTTPAddress(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
	}

	// Metrics share the ops listener when both ports agree.
	var metricsServer *http.Server
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		if cfg.Server.MetricsPort == cfg.Server.HTTPPort {
			httpCfg.MetricsPath = cfg.Metrics.Path
			metricsHandler = promhttp.Handler()
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
			metricsServer = &http.Server{
				Addr:         cfg.Server.MetricsAddress(),
				Handler:      metricsMux,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}
		}
	}

	httpSrv := httpserver.NewServer(httpCfg, db, metricsHandler, logger)

	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("kafka_enabled", cfg.Kafka.Enabled).
		Bool("inline_fame_refresh", !cfg.Kafka.Enabled)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("dating-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down dating-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("dating-service shutdown complete")
	return nil
}

// migrate applies pending migrations from path, or from the embedded set
// when path is empty.
func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	var (
		migrator *database.Migrator
		err      error
	)
	if path == "" {
		migrator, err = database.NewMigratorFS(db, migrations.FS, logger)
	} else {
		migrator, err = database.NewMigrator(db, path, logger)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func newPublisher(cfg config.KafkaConfig, metrics *observability.Metrics, logger zerolog.Logger) events.Publisher {
	if !cfg.Enabled {
		logger.Info().Msg("kafka disabled, domain events are dropped")
		return events.NewNopPublisher(logger)
	}
	logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("publishing domain events to kafka")
	return events.NewKafkaPublisher(cfg, metrics, logger)
}
