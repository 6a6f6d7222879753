package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcome label values.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics contains all Prometheus metrics for the dating service.
// Metrics are organized by subsystem: repository queries, social actions,
// chat, notifications and event publishing.
type Metrics struct {
	// QueryDuration observes repository statement duration in seconds, labeled by table and operation.
	QueryDuration *prometheus.HistogramVec

	// QueriesTotal counts repository statements, labeled by table, operation and outcome.
	QueriesTotal *prometheus.CounterVec

	// LikesTotal counts likes that were newly recorded.
	LikesTotal prometheus.Counter

	// UnlikesTotal counts likes withdrawn.
	UnlikesTotal prometheus.Counter

	// MatchesCreated counts mutual likes that produced a match.
	MatchesCreated prometheus.Counter

	// MatchesRemoved counts matches dissolved by an unlike or a block.
	MatchesRemoved prometheus.Counter

	// BlocksTotal counts block actions.
	BlocksTotal prometheus.Counter

	// MessagesSent counts chat messages stored.
	MessagesSent prometheus.Counter

	// MessageLength observes chat message length in characters.
	MessageLength prometheus.Histogram

	// NotificationsCreated counts notifications, labeled by kind.
	NotificationsCreated *prometheus.CounterVec

	// EventsPublished counts domain events delivered to the broker, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts domain events that could not be delivered, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsWith creates and registers all metrics with reg.
func NewMetricsWith(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "query_duration_seconds",
			Help:      "Duration of repository statements in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"table", "operation"}),

		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "queries_total",
			Help:      "Total number of repository statements",
		}, []string{"table", "operation", "outcome"}),

		LikesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "likes_total",
			Help:      "Total number of likes recorded",
		}),

		UnlikesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "unlikes_total",
			Help:      "Total number of likes withdrawn",
		}),

		MatchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "matches_created_total",
			Help:      "Total number of matches created",
		}),

		MatchesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "matches_removed_total",
			Help:      "Total number of matches removed",
		}),

		BlocksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "social",
			Name:      "blocks_total",
			Help:      "Total number of block actions",
		}),

		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Total number of chat messages sent",
		}),

		MessageLength: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "message_length_chars",
			Help:      "Length of chat messages in characters",
			Buckets:   []float64{8, 32, 64, 128, 256, 512, 1024, 2048},
		}),

		NotificationsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "created_total",
			Help:      "Total number of notifications created",
		}, []string{"kind"}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of domain events published",
		}, []string{"type"}),

		EventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "failed_total",
			Help:      "Total number of domain events that failed to publish",
		}, []string{"type"}),
	}
}

// ObserveQuery records one repository statement.
func (m *Metrics) ObserveQuery(table, operation string, duration time.Duration, err error) {
	m.QueryDuration.WithLabelValues(table, operation).Observe(duration.Seconds())
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
	}
	m.QueriesTotal.WithLabelValues(table, operation, outcome).Inc()
}

// RecordLike records a newly created like.
func (m *Metrics) RecordLike() {
	m.LikesTotal.Inc()
}

// RecordUnlike records a withdrawn like and, when one existed, a removed match.
func (m *Metrics) RecordUnlike(matchRemoved bool) {
	m.UnlikesTotal.Inc()
	if matchRemoved {
		m.MatchesRemoved.Inc()
	}
}

// RecordMatch records a newly created match.
func (m *Metrics) RecordMatch() {
	m.MatchesCreated.Inc()
}

// RecordBlock records a block and, when one existed, a removed match.
func (m *Metrics) RecordBlock(matchRemoved bool) {
	m.BlocksTotal.Inc()
	if matchRemoved {
		m.MatchesRemoved.Inc()
	}
}

// RecordMessage records a sent chat message of the given length.
func (m *Metrics) RecordMessage(length int) {
	m.MessagesSent.Inc()
	m.MessageLength.Observe(float64(length))
}

// RecordNotification records a notification of the given kind.
func (m *Metrics) RecordNotification(kind string) {
	m.NotificationsCreated.WithLabelValues(kind).Inc()
}

// RecordEventPublished records a delivered domain event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a domain event that failed to publish.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
