package shipping_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

func TestRecommend(t *testing.T) {
	_, ok := shipping.Recommend(nil)
	require.False(t, ok)

	only := shipping.Quote{Service: "Only", Cost: dec("500"), EstimatedDays: 40}
	got, ok := shipping.Recommend([]shipping.Quote{only})
	require.True(t, ok)
	require.Equal(t, "Only", got.Service)

	cheap := shipping.Quote{Service: "Cheap", Cost: dec("5"), EstimatedDays: 10}
	fast := shipping.Quote{Service: "Fast", Cost: dec("25"), EstimatedDays: 1, TrackingAvailable: true, InsuranceIncluded: true}
	// cheap: 95 + 20 = 115; fast: 75 + 38 + 10 + 5 = 128
	got, _ = shipping.Recommend([]shipping.Quote{cheap, fast})
	require.Equal(t, "Fast", got.Service)
	require.Equal(t, "128", shipping.Score(fast).String())

	twin := cheap
	twin.Service = "Twin"
	got, _ = shipping.Recommend([]shipping.Quote{cheap, twin})
	require.Equal(t, "Cheap", got.Service)
}

func TestEstimatedDeliveryDateSkipsWeekends(t *testing.T) {
	friday := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	monday := time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC)

	require.Equal(t, monday, shipping.EstimatedDeliveryDate(shipping.Quote{EstimatedDays: 1}, friday))
	require.Equal(t, monday, shipping.EstimatedDeliveryDate(shipping.Quote{EstimatedDays: 2}, friday))
	require.Equal(t, monday, shipping.EstimatedDeliveryDate(shipping.Quote{EstimatedDays: 3}, friday))
	require.Equal(t, time.Date(2024, 1, 9, 12, 0, 0, 0, time.UTC), shipping.EstimatedDeliveryDate(shipping.Quote{EstimatedDays: 4}, friday))
}

func TestIsShippingAvailable(t *testing.T) {
	require.True(t, shipping.IsShippingAvailable("gb"))
	require.True(t, shipping.IsShippingAvailable("US"))
	require.False(t, shipping.IsShippingAvailable("KP"))
	require.False(t, shipping.IsShippingAvailable(""))
}

func TestFormatShippingCost(t *testing.T) {
	require.Equal(t, "FREE", shipping.FormatShippingCost(shipping.Quote{Currency: "USD"}))
	require.Contains(t, shipping.FormatShippingCost(shipping.Quote{Cost: dec("9.99"), Currency: "USD"}), "9.99")
}

func TestGuaranteedHandlerAlwaysAnswers(t *testing.T) {
	h := &shipping.Handler{Svc: newService(failingClient())}
	r := chi.NewRouter()
	h.Routes(r)

	body := `{"items":[{"sku":"GLOBAL-CAN-16X20","quantity":1,"price":"20"}],"address":{"country":"us","zip":"10001"},"addressValidated":false}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quote/guaranteed", strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Data shipping.Result `json:"data"`
		Meta struct {
			Kind  string `json:"kind"`
			Cause string `json:"cause"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "estimated", payload.Meta.Kind)
	require.Equal(t, "provider_failure", payload.Meta.Cause)
	require.Equal(t, shipping.FallbackProvider, payload.Data.Provider)
	require.Len(t, payload.Data.Quotes, 2)
}

func TestQuoteHandlerMapsErrors(t *testing.T) {
	h := &shipping.Handler{Svc: newService(failingClient())}
	r := chi.NewRouter()
	h.Routes(r)

	invalid := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quote", strings.NewReader(`{"items":[],"address":{"countryCode":"US"}}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, invalid)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	failing := httptest.NewRequest(http.MethodPost, "/api/v1/shipping/quote", strings.NewReader(`{"items":[{"sku":"A","quantity":1}],"address":{"countryCode":"GB"}}`))
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, failing)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	avail := httptest.NewRequest(http.MethodGet, "/api/v1/shipping/availability/de", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, avail)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"available":true`)
}

func TestQuoteChargeInConvertsCurrency(t *testing.T) {
	q := shipping.Quote{Carrier: "Royal Mail", Service: "Standard", Cost: dec("7.90"), Currency: "GBP", EstimatedDays: 5}
	charge, err := q.ChargeIn(t.Context(), nil, "USD", true)
	require.NoError(t, err)
	require.Equal(t, "10", charge.Cost.String())
	require.Equal(t, "USD", charge.Currency)
	require.True(t, charge.Estimated)
	require.Equal(t, "Royal Mail", charge.Carrier)

	same, err := shipping.Quote{Cost: dec("4.50")}.ChargeIn(t.Context(), nil, "USD", false)
	require.NoError(t, err)
	require.Equal(t, "4.5", same.Cost.String())

	_, err = shipping.Quote{Cost: dec("1"), Currency: "XYZ"}.ChargeIn(t.Context(), nil, "USD", false)
	require.Equal(t, common.KindValidation, common.KindOf(err))
}
