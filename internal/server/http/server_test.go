package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/observability"
)

type stubHealth struct {
	status database.HealthStatus
}

func (s stubHealth) Health(context.Context) database.HealthStatus { return s.status }

var (
	healthy   = stubHealth{status: database.HealthStatus{Status: "healthy", MaxConns: 10}}
	unhealthy = stubHealth{status: database.HealthStatus{Status: "unhealthy", Error: "connection refused"}}
)

func newTestServer(health HealthChecker, metrics http.Handler) *Server {
	return NewServer(Config{Address: ":0", MetricsPath: "/metrics"}, health, metrics, zerolog.Nop())
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHealthz(t *testing.T) {
	t.Run("reports ok with a live database", func(t *testing.T) {
		rr := get(t, newTestServer(healthy, nil), "/healthz")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.Equal(t, map[string]any{"status": "ok", "database": "healthy"}, decode(t, rr))
	})

	t.Run("stays live when the database is down", func(t *testing.T) {
		rr := get(t, newTestServer(unhealthy, nil), "/healthz")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "unhealthy", decode(t, rr)["database"])
	})
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rr := get(t, newTestServer(healthy, nil), "/readyz")
		assert.Equal(t, http.StatusOK, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, "ready", body["status"])
		db, ok := body["database"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 10, db["max_conns"])
	})

	t.Run("not ready while the database is unreachable", func(t *testing.T) {
		rr := get(t, newTestServer(unhealthy, nil), "/readyz")
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, "not_ready", body["status"])
		db, ok := body["database"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "connection refused", db["error"])
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("serves the registry when configured", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := observability.NewMetricsWith(reg, "test")
		m.RecordLike()

		rr := get(t, newTestServer(healthy, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})), "/metrics")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "test_social_likes_total 1")
	})

	t.Run("absent when disabled", func(t *testing.T) {
		rr := get(t, newTestServer(healthy, nil), "/metrics")
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "not found", decode(t, rr)["error"])
	})
}

func TestCorrelationIDMiddleware(t *testing.T) {
	capture := func(seen *string) http.Handler {
		return correlationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*seen = observability.RequestIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))
	}

	t.Run("uses the incoming header", func(t *testing.T) {
		var seen string
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(CorrelationIDHeader, "test-correlation-123")
		rr := httptest.NewRecorder()
		capture(&seen).ServeHTTP(rr, req)

		assert.Equal(t, "test-correlation-123", seen)
		assert.Equal(t, "test-correlation-123", rr.Header().Get(CorrelationIDHeader))
	})

	t.Run("generates one when missing", func(t *testing.T) {
		var seen string
		rr := httptest.NewRecorder()
		capture(&seen).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rr.Header().Get(CorrelationIDHeader))
	})

	t.Run("router falls back to the chi request id", func(t *testing.T) {
		rr := get(t, newTestServer(healthy, nil), "/healthz")
		assert.NotEmpty(t, rr.Header().Get(CorrelationIDHeader))
	})
}
