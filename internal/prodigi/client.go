// Package prodigi implements the fulfillment partner contract against the
// Prodigi v4 print API.
package prodigi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/resilience"
)

const (
	// SandboxURL is the partner's test environment.
	SandboxURL = "https://api.sandbox.prodigi.com"
	// LiveURL is the partner's production environment.
	LiveURL = "https://api.prodigi.com"
)

var defaultDays = map[string]int{
	"budget":    10,
	"standard":  7,
	"express":   3,
	"overnight": 1,
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// Client talks to the partner API. It implements fulfillment.Client.
type Client struct {
	baseURL string
	apiKey  string
	http    resilience.HTTPClient
	logger  zerolog.Logger
	tracer  trace.Tracer
}

var _ fulfillment.Client = (*Client)(nil)

// NewHTTPClient returns an http.Client instrumented with OpenTelemetry.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// New constructs a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("prodigi: api key is required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = SandboxURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("prodigi: invalid base url: %w", err)
	}
	httpClient := cfg.HTTP
	if httpClient.Client == nil {
		httpClient.Client = NewHTTPClient(0)
	}
	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  cfg.Logger,
		tracer:  otel.Tracer("github.com/noah-isme/backend-printshop/internal/prodigi"),
	}, nil
}

// SingleAttempt returns a copy of c that sends each request once. Callers
// that run their own retry loop use it so partner requests stay bounded by
// that loop's attempt limit. The breaker is shared with c.
func (c *Client) SingleAttempt() *Client {
	cp := *c
	cp.http.MaxAttempts = 1
	return &cp
}

type quoteItemWire struct {
	SKU        string            `json:"sku"`
	Copies     int               `json:"copies"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Assets     []assetWire       `json:"assets"`
}

type assetWire struct {
	PrintArea string `json:"printArea"`
	URL       string `json:"url,omitempty"`
}

type quoteRequestWire struct {
	ShippingMethod         string          `json:"shippingMethod"`
	DestinationCountryCode string          `json:"destinationCountryCode"`
	CurrencyCode           string          `json:"currencyCode,omitempty"`
	Items                  []quoteItemWire `json:"items"`
}

type amountWire struct {
	Amount   flexNumber `json:"amount"`
	Currency string     `json:"currency"`
}

type quoteResponseWire struct {
	Outcome string `json:"outcome"`
	Quotes  []struct {
		ShipmentMethod string `json:"shipmentMethod"`
		CostSummary    struct {
			Items    amountWire `json:"items"`
			Shipping amountWire `json:"shipping"`
		} `json:"costSummary"`
		Shipments []struct {
			Carrier struct {
				Name    string `json:"name"`
				Service string `json:"service"`
			} `json:"carrier"`
		} `json:"shipments"`
	} `json:"quotes"`
}

// CalculateShippingCost requests a quote for the given items and destination.
func (c *Client) CalculateShippingCost(ctx context.Context, req fulfillment.QuoteRequest) (fulfillment.ShippingCost, error) {
	method := req.Method
	if method == "" {
		method = "Standard"
	}
	wire := quoteRequestWire{
		ShippingMethod:         method,
		DestinationCountryCode: req.Destination.CountryCode,
		CurrencyCode:           req.Currency,
	}
	for _, it := range req.Items {
		wire.Items = append(wire.Items, quoteItemWire{
			SKU:        it.SKU,
			Copies:     it.Quantity,
			Attributes: it.Attributes,
			Assets:     []assetWire{{PrintArea: "default"}},
		})
	}
	var out quoteResponseWire
	if err := c.do(ctx, "quote", http.MethodPost, "/v4.0/quotes", wire, &out); err != nil {
		return fulfillment.ShippingCost{}, err
	}
	if len(out.Quotes) == 0 {
		return fulfillment.ShippingCost{}, fmt.Errorf("prodigi: quote response contained no quotes (outcome %q)", out.Outcome)
	}
	q := out.Quotes[0]
	cost, err := parseAmount(q.CostSummary.Shipping.Amount)
	if err != nil {
		return fulfillment.ShippingCost{}, fmt.Errorf("prodigi: shipping amount: %w", err)
	}
	service := q.ShipmentMethod
	if service == "" {
		service = method
	}
	result := fulfillment.ShippingCost{
		Cost:              cost,
		Currency:          q.CostSummary.Shipping.Currency,
		EstimatedDays:     estimatedDays(service),
		ServiceName:       service,
		TrackingAvailable: !strings.EqualFold(service, "budget"),
	}
	if result.Currency == "" {
		result.Currency = req.Currency
	}
	if len(q.Shipments) > 0 {
		result.Carrier = q.Shipments[0].Carrier.Name
	}
	return result, nil
}

func estimatedDays(method string) int {
	if d, ok := defaultDays[strings.ToLower(method)]; ok {
		return d
	}
	return defaultDays["standard"]
}
