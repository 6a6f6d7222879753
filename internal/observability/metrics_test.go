package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Each test registers on its own registry so collectors never collide.
func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, "test_dating"), reg
}

func TestNewMetrics(t *testing.T) {
	// The default registry is shared, so use a namespace no other test uses.
	m := NewMetrics("test_dating_default")

	assert.NotNil(t, m.QueryDuration)
	assert.NotNil(t, m.QueriesTotal)
	assert.NotNil(t, m.LikesTotal)
	assert.NotNil(t, m.MatchesCreated)
	assert.NotNil(t, m.BlocksTotal)
	assert.NotNil(t, m.MessagesSent)
	assert.NotNil(t, m.NotificationsCreated)
	assert.NotNil(t, m.EventsPublished)
	assert.NotNil(t, m.EventsFailed)
}

func TestNewMetricsWith_RegistersOnRegistry(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.RecordLike()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["test_dating_social_likes_total"])
}

func TestObserveQuery(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveQuery("users", "find_by_id", 3*time.Millisecond, nil)
	m.ObserveQuery("users", "find_by_id", 5*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("users", "find_by_id", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QueriesTotal.WithLabelValues("users", "find_by_id", "error")))

	count, err := histogramVecSampleCount(m.QueryDuration, "users", "find_by_id")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestRecordSocialActions(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordLike()
	m.RecordLike()
	m.RecordMatch()
	m.RecordUnlike(true)
	m.RecordUnlike(false)
	m.RecordBlock(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LikesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatchesCreated))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnlikesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BlocksTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MatchesRemoved))
}

func TestRecordMessage(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordMessage(12)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesSent))
	count, err := histogramSampleCount(m.MessageLength)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestRecordNotificationAndEvents(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordNotification("match")
	m.RecordNotification("match")
	m.RecordNotification("like")
	m.RecordEventPublished("like.created")
	m.RecordEventFailed("match.created")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsCreated.WithLabelValues("match")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsCreated.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("like.created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsFailed.WithLabelValues("match.created")))
}

func histogramSampleCount(h prometheus.Histogram) (uint64, error) {
	var metric dto.Metric
	if err := h.Write(&metric); err != nil {
		return 0, err
	}
	return metric.GetHistogram().GetSampleCount(), nil
}

func histogramVecSampleCount(h *prometheus.HistogramVec, labels ...string) (uint64, error) {
	observer, err := h.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0, err
	}
	return histogramSampleCount(observer.(prometheus.Histogram))
}
