package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/amora/dating-service/internal/config"
)

// headerEventType carries Event.Type so consumers can filter without decoding.
const headerEventType = "event-type"

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

// Recorder receives publish outcomes per event type.
type Recorder interface {
	RecordEventPublished(eventType string)
	RecordEventFailed(eventType string)
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a single topic, keyed by user id.
type KafkaPublisher struct {
	writer   messageWriter
	recorder Recorder
	logger   zerolog.Logger
}

// NewKafkaPublisher creates a publisher from Kafka configuration. recorder may be nil.
func NewKafkaPublisher(cfg config.KafkaConfig, recorder Recorder, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, recorder, logger)
}

func newKafkaPublisher(writer messageWriter, recorder Recorder, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:   writer,
		recorder: recorder,
		logger:   logger.With().Str("component", "event_publisher").Logger(),
	}
}

// Publish writes all events in one batch. Either every event is accepted by
// the broker or an error is returned.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode event %s: %w", e.Type, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(strconv.FormatInt(e.UserID, 10)),
			Value:   value,
			Headers: []kafka.Header{{Key: headerEventType, Value: []byte(e.Type)}},
			Time:    e.OccurredAt,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, e := range events {
			p.record(e.Type, false)
		}
		return fmt.Errorf("failed to publish %d events: %w", len(events), err)
	}

	for _, e := range events {
		p.record(e.Type, true)
		p.logger.Debug().
			Str("event_id", e.ID.String()).
			Str("event_type", e.Type).
			Int64("user_id", e.UserID).
			Msg("event published")
	}
	return nil
}

func (p *KafkaPublisher) record(eventType string, ok bool) {
	if p.recorder == nil {
		return
	}
	if ok {
		p.recorder.RecordEventPublished(eventType)
	} else {
		p.recorder.RecordEventFailed(eventType)
	}
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info().Msg("closing event publisher")
	return p.writer.Close()
}

// NopPublisher drops events, logging them at debug level. It is used when
// Kafka is disabled.
type NopPublisher struct {
	logger zerolog.Logger
}

// NewNopPublisher creates a publisher that discards events.
func NewNopPublisher(logger zerolog.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

// Publish logs and discards events.
func (p *NopPublisher) Publish(_ context.Context, events ...Event) error {
	for _, e := range events {
		p.logger.Debug().
			Str("event_type", e.Type).
			Int64("user_id", e.UserID).
			Msg("event dropped, publisher disabled")
	}
	return nil
}

// Close is a no-op.
func (p *NopPublisher) Close() error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*NopPublisher)(nil)
)
