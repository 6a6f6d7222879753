package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/amora/dating-service/internal/config"
)

// ReadBackoff is the pause after a failed read before the next attempt.
const ReadBackoff = time.Second

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// messageReader is the subset of *kafka.Reader the consumer uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads domain events from Kafka and hands them to a Handler.
// Handler throughput is capped by a token bucket so a backlog cannot flood
// the database.
type Consumer struct {
	reader      messageReader
	handler     Handler
	limiter     *rate.Limiter
	readBackoff time.Duration
	logger      zerolog.Logger
}

// NewConsumer creates a consumer group reader from Kafka configuration.
func NewConsumer(cfg config.KafkaConfig, handler Handler, logger zerolog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})
	return newConsumer(reader, handler, cfg.ConsumerRatePerSecond, logger)
}

func newConsumer(reader messageReader, handler Handler, ratePerSecond float64, logger zerolog.Logger) *Consumer {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = max(1, int(ratePerSecond))
	}
	return &Consumer{
		reader:      reader,
		handler:     handler,
		limiter:     rate.NewLimiter(limit, burst),
		readBackoff: ReadBackoff,
		logger:      logger.With().Str("component", "event_consumer").Logger(),
	}
}

// Run starts the consumer loop. Blocks until context is cancelled.
// Undecodable messages and handler failures are logged and skipped; read
// failures are retried after readBackoff.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info().Msg("starting event consumer")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info().Msg("event consumer stopped via context cancellation")
				return ctx.Err()
			}
			c.logger.Error().Err(err).Dur("backoff", c.readBackoff).Msg("failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.readBackoff):
			}
			continue
		}

		c.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received event")

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal event")
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("rate limiter: %w", err)
		}

		if err := c.handler.Handle(ctx, event); err != nil {
			c.logger.Error().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.Type).
				Int64("user_id", event.UserID).
				Msg("failed to handle event")
		}
	}
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	c.logger.Info().Msg("closing event consumer")
	return c.reader.Close()
}
