package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/app"
	"github.com/noah-isme/backend-printshop/internal/config"
	"github.com/noah-isme/backend-printshop/internal/ratelimit"
)

func testRouter(t *testing.T, rate string) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Currency:              "USD",
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		ShippingMaxAttempts:   1,
		ShippingBaseDelay:     time.Millisecond,
		ShippingTimeout:       time.Second,
		CatalogTTL:            time.Hour,
	}
	svc, err := app.Build(t.Context(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	opts := routerOptions{}
	if rate != "" {
		store, err := ratelimit.NewStore(nil, t.Name())
		require.NoError(t, err)
		opts.Limiter, err = ratelimit.New(rate, store)
		require.NoError(t, err)
	}
	return newRouter(svc, opts)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterServesCoreEndpoints(t *testing.T) {
	r := testRouter(t, "")

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/live", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/ready", "").Code)

	rec := do(r, http.MethodPost, "/api/v1/pricing/total", `{
		"items":[
			{"id":"0f8fad5b-d9cb-469f-a165-70867728950e","sku":"GLOBAL-CAN-16X20","price":"29.99","quantity":1},
			{"id":"7c9e6679-7425-40de-944b-e07fc1f90ae7","sku":"GLOBAL-FAP-12X16","price":"39.99","quantity":2}
		],
		"shipping":{"cost":"9.99","service":"Standard"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var total struct {
		Data struct {
			Total decimal.Decimal `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &total))
	require.Equal(t, "128.76", total.Data.Total.StringFixed(2))

	rec = do(r, http.MethodPost, "/api/v1/shipping/quote/guaranteed", `{
		"items":[{"sku":"GLOBAL-CAN-16X20","quantity":1,"price":"150"}],
		"address":{"countryCode":"GB","city":"London"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"isEstimated":true`)

	rec = do(r, http.MethodGet, "/api/v1/catalog/frames", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "GLOBAL-CAN-16X20")

	rec = do(r, http.MethodGet, "/api/v1/sku?size=medium&style=canvas&material=canvas", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(r, http.MethodPost, "/api/v1/checkout/session", `{"items":[]}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(r, http.MethodGet, "/api/v1/orders/0f8fad5b-d9cb-469f-a165-70867728950e/pricing", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouterRateLimitsAPI(t *testing.T) {
	r := testRouter(t, "1-M")
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/v1/catalog/frames", "").Code)
	require.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/api/v1/catalog/frames", "").Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/live", "").Code)
}
