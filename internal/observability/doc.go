// Package observability provides logging, metrics and context helpers for
// the dating service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(cfg.Logging)
//	logger.Info().Int64("user_id", id).Msg("profile updated")
//
// Request-scoped fields travel on the context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	log := observability.LoggerFromContext(ctx, logger)
//
// # Metrics
//
// Metrics registers its collectors on a Prometheus registerer and doubles as
// the repository query observer:
//
//	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
//	repos := repository.New(db, repository.WithObserver(metrics))
//	metrics.MatchesCreated.Inc()
//
// # Standard Fields
//
//   - request_id: correlation id of the inbound request
//   - user_id: acting user
//   - target_id: the other user of a like, block or match
//   - room_id: chat room
//   - table, operation: repository statement labels
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
