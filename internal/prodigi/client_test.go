package prodigi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/prodigi"
	"github.com/noah-isme/backend-printshop/internal/resilience"
)

func newClient(t *testing.T, handler http.HandlerFunc) *prodigi.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := prodigi.New(prodigi.Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		HTTP:    resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1, Timeout: time.Second},
	})
	require.NoError(t, err)
	return client
}

func TestCalculateShippingCost(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v4.0/quotes", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "Express", body["shippingMethod"])
		require.Equal(t, "GB", body["destinationCountryCode"])
		_, _ = w.Write([]byte(`{
			"outcome":"Created",
			"quotes":[{
				"shipmentMethod":"Express",
				"costSummary":{"items":{"amount":"20.00","currency":"GBP"},"shipping":{"amount":"12.40","currency":"GBP"}},
				"shipments":[{"carrier":{"name":"DPD","service":"Next Day"}}]
			}]
		}`))
	})

	cost, err := client.CalculateShippingCost(context.Background(), fulfillment.QuoteRequest{
		Items:       []fulfillment.QuoteItem{{SKU: "GLOBAL-CAN-16X20", Quantity: 1}},
		Destination: address.Address{CountryCode: "GB", City: "London"},
		Method:      "Express",
		Currency:    "GBP",
	})
	require.NoError(t, err)
	require.Equal(t, "12.4", cost.Cost.String())
	require.Equal(t, "GBP", cost.Currency)
	require.Equal(t, "DPD", cost.Carrier)
	require.Equal(t, 3, cost.EstimatedDays)
	require.True(t, cost.TrackingAvailable)
}

func TestNon2xxBecomesAPIError(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"outcome":"NotFound"}`))
	})

	_, err := client.GetProductDetails(context.Background(), "GLOBAL-NOPE")
	var apiErr *fulfillment.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.True(t, apiErr.NotFound())
	require.Contains(t, apiErr.Body, "NotFound")
}

func TestGetAllProductsParsesDimensionsAndColors(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v4.0/products", r.URL.Path)
		require.Equal(t, "frames", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`{"outcome":"Ok","products":[{
			"sku":"GLOBAL-CFPM-16X20",
			"description":"Classic frame",
			"category":"Framed prints",
			"productDimensions":{"width":16,"height":"20","units":"in"},
			"attributes":{"color":["black","white"]},
			"price":{"amount":"45.00","currency":"USD"}
		}]}`))
	})

	products, err := client.GetAllProducts(context.Background(), "frames")
	require.NoError(t, err)
	require.Len(t, products, 1)
	p := products[0]
	require.Equal(t, "16", p.Dimensions.Width.String())
	require.Equal(t, "20", p.Dimensions.Height.String())
	require.Equal(t, []string{"black", "white"}, p.Colors())
	require.Equal(t, "45", p.Price.String())
}

func TestCreateOrder(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v4.0/orders", r.URL.Path)
		_, _ = w.Write([]byte(`{"outcome":"Created","order":{"id":"ord_1","status":{"stage":"InProgress"},"shipments":[{"tracking":{"number":"TN1","url":"https://t/1"}}]}}`))
	})

	res, err := client.CreateOrder(context.Background(), fulfillment.Order{
		MerchantReference: "order-1",
		Recipient:         fulfillment.Recipient{Name: "Ada", Address: address.Address{CountryCode: "GB", City: "London", Line1: "1 St"}},
		Items:             []fulfillment.OrderItem{{SKU: "GLOBAL-CAN-16X20", Copies: 1, AssetURL: "https://img/1.png"}},
	})
	require.NoError(t, err)
	require.Equal(t, "ord_1", res.ID)
	require.Equal(t, "InProgress", res.Status)
	require.Equal(t, "TN1", res.TrackingNumber)

	_, err = client.CreateOrder(context.Background(), fulfillment.Order{})
	require.Error(t, err)
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := prodigi.New(prodigi.Config{})
	require.Error(t, err)
}
