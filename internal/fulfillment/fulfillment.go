// Package fulfillment describes the print partner contract consumed by the
// shipping service and the SKU/catalog resolvers.
package fulfillment

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/address"
	"github.com/noah-isme/backend-printshop/internal/common"
)

// QuoteItem is a single line sent to the partner for a shipping quote.
type QuoteItem struct {
	SKU        string            `json:"sku"`
	Quantity   int               `json:"copies"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// QuoteRequest asks the partner to price shipping for a set of items.
type QuoteRequest struct {
	Items       []QuoteItem
	Destination address.Address
	Method      string
	Currency    string
}

// ShippingCost is the partner's answer to a QuoteRequest.
type ShippingCost struct {
	Cost              decimal.Decimal `json:"cost"`
	Currency          string          `json:"currency"`
	EstimatedDays     int             `json:"estimatedDays"`
	ServiceName       string          `json:"serviceName"`
	Carrier           string          `json:"carrier,omitempty"`
	TrackingAvailable bool            `json:"trackingAvailable"`
}

// Dimension is a measured length with its unit (cm or in).
type Dimension struct {
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
	Units  string          `json:"units"`
}

// Product is a catalog entry as returned by the partner.
type Product struct {
	SKU         string              `json:"sku"`
	Description string              `json:"description"`
	Category    string              `json:"category"`
	ProductType string              `json:"productType"`
	Dimensions  Dimension           `json:"dimensions"`
	Attributes  map[string][]string `json:"attributes"`
	Price       decimal.Decimal     `json:"price"`
	Currency    string              `json:"currency"`
}

// Colors returns the product's color attribute values, if any.
func (p Product) Colors() []string {
	for key, values := range p.Attributes {
		k := strings.ToLower(key)
		if k == "color" || k == "colour" || k == "frame" || k == "framecolour" || k == "framecolor" {
			return values
		}
	}
	return nil
}

// SearchCriteria narrows a partner product search.
type SearchCriteria struct {
	Query    string
	Category string
	Size     string
	Limit    int
}

// Recipient is the delivery party of an order.
type Recipient struct {
	Name    string          `json:"name"`
	Email   string          `json:"email,omitempty"`
	Address address.Address `json:"address"`
}

// OrderItem is a printable line of an order.
type OrderItem struct {
	SKU        string            `json:"sku"`
	Copies     int               `json:"copies"`
	AssetURL   string            `json:"assetUrl"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Order is submitted to the partner once payment succeeded.
type Order struct {
	MerchantReference string      `json:"merchantReference"`
	ShippingMethod    string      `json:"shippingMethod"`
	Recipient         Recipient   `json:"recipient"`
	Items             []OrderItem `json:"items"`
	IdempotencyKey    string      `json:"idempotencyKey,omitempty"`
}

// OrderResult is the partner's acknowledgement of an order.
type OrderResult struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	TrackingNumber    string `json:"trackingNumber,omitempty"`
	TrackingURL       string `json:"trackingUrl,omitempty"`
	EstimatedDelivery string `json:"estimatedDelivery,omitempty"`
}

// QuoteClient prices shipping.
type QuoteClient interface {
	CalculateShippingCost(ctx context.Context, req QuoteRequest) (ShippingCost, error)
}

// CatalogClient reads the partner catalog.
type CatalogClient interface {
	GetAllProducts(ctx context.Context, category string) ([]Product, error)
	GetProductDetails(ctx context.Context, sku string) (Product, error)
}

// ProductSearcher runs free-form catalog searches.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, criteria SearchCriteria) ([]Product, error)
}

// OrderClient submits orders.
type OrderClient interface {
	CreateOrder(ctx context.Context, order Order) (OrderResult, error)
}

// Client is the complete partner API.
type Client interface {
	QuoteClient
	CatalogClient
	ProductSearcher
	OrderClient
}

// APIError is returned for every non-2xx partner response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("fulfillment: partner responded %d: %s", e.Status, body)
}

// ErrorKind implements common.Kinded.
func (e *APIError) ErrorKind() common.Kind {
	return common.KindProviderFailure
}

// NotFound reports whether the partner rejected the request as unknown.
func (e *APIError) NotFound() bool {
	return e.Status == 404
}
