package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("printshop", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quotes", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/shipping/quotes"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodPost, "/api/v1/shipping/quotes", "202"))
	require.Equal(t, float64(1), total)
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	if metrics.InFlight != nil {
		require.Zero(t, testutil.ToFloat64(metrics.InFlight))
	}
}

func TestRequestLoggerScopesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	var fromCtx *zerolog.Logger
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	handler := middleware.RequestID(obs.RequestLogger{Logger: logger}.Middleware(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/frames", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("Idempotency-Key", "order-7")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, fromCtx)
	require.NotEqual(t, zerolog.Disabled, fromCtx.GetLevel())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, float64(503), entry["status"])
	require.Equal(t, "203.0.113.9", entry["client_ip"])
	require.Equal(t, "order-7", entry["idempotency_key"])
	require.NotEmpty(t, entry["request_id"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 25, 100}, obs.ParseBucketsCSV("5, 25,100"))
	require.Nil(t, obs.ParseBucketsCSV(" "))
}
