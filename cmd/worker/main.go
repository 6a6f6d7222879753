// Package main runs the event worker: it consumes domain events from Kafka
// and keeps derived state such as fame ratings current.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amora/dating-service/internal/config"
	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/events"
	"github.com/amora/dating-service/internal/observability"
	"github.com/amora/dating-service/internal/repository"
	"github.com/amora/dating-service/internal/service"
)

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

	logger := observability.NewLogger(cfg.Logging).With().Str("component", "worker").Logger()
	logger.Info().Msg("dating-service worker starting")

	if !cfg.Kafka.Enabled {
		return fmt.Errorf("worker requires kafka.enabled: without a broker the server refreshes fame ratings inline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	repos := repository.New(db,
		repository.WithLogger(logger),
		repository.WithObserver(metrics),
	)

	handler := service.NewFameHandler(repos.Users, logger)
	consumer := events.NewConsumer(cfg.Kafka, handler, logger)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event consumer")
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	logger.Info().
		Str("topic", cfg.Kafka.Topic).
		Str("group_id", cfg.Kafka.GroupID).
		Float64("rate_per_second", cfg.Kafka.ConsumerRatePerSecond).
		Msg("event consumer started")

	// Run blocks until the signal context is cancelled.
	err = consumer.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("metrics server shutdown error")
		}
	}

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("event consumer error: %w", err)
	}
	logger.Info().Msg("worker stopped via signal")
	return nil
}
