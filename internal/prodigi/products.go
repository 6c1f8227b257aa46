package prodigi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
)

type productWire struct {
	SKU               string              `json:"sku"`
	Description       string              `json:"description"`
	Category          string              `json:"category"`
	ProductType       string              `json:"productType"`
	ProductDimensions struct {
		Width  flexNumber `json:"width"`
		Height flexNumber `json:"height"`
		Units  string     `json:"units"`
	} `json:"productDimensions"`
	Attributes map[string][]string `json:"attributes"`
	Price      *amountWire         `json:"price,omitempty"`
}

func (p productWire) toProduct() fulfillment.Product {
	out := fulfillment.Product{
		SKU:         p.SKU,
		Description: p.Description,
		Category:    p.Category,
		ProductType: p.ProductType,
		Attributes:  p.Attributes,
		Dimensions: fulfillment.Dimension{
			Width:  p.ProductDimensions.Width.decimal(),
			Height: p.ProductDimensions.Height.decimal(),
			Units:  p.ProductDimensions.Units,
		},
	}
	if p.Price != nil {
		if amt, err := parseAmount(p.Price.Amount); err == nil {
			out.Price = amt
			out.Currency = p.Price.Currency
		}
	}
	return out
}

type productListWire struct {
	Outcome  string        `json:"outcome"`
	Products []productWire `json:"products"`
}

type productDetailWire struct {
	Outcome string      `json:"outcome"`
	Product productWire `json:"product"`
}

// GetAllProducts lists catalog products, optionally filtered by category.
func (c *Client) GetAllProducts(ctx context.Context, category string) ([]fulfillment.Product, error) {
	path := "/v4.0/products"
	if category != "" {
		path += "?" + url.Values{"category": {category}}.Encode()
	}
	var out productListWire
	if err := c.do(ctx, "list_products", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return toProducts(out.Products), nil
}

// GetProductDetails fetches a single product. Unknown SKUs yield an
// *fulfillment.APIError with status 404.
func (c *Client) GetProductDetails(ctx context.Context, sku string) (fulfillment.Product, error) {
	var out productDetailWire
	if err := c.do(ctx, "product_details", http.MethodGet, "/v4.0/products/"+url.PathEscape(sku), nil, &out); err != nil {
		return fulfillment.Product{}, err
	}
	return out.Product.toProduct(), nil
}

type searchWire struct {
	Query    string `json:"query,omitempty"`
	Category string `json:"category,omitempty"`
	Size     string `json:"size,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SearchProducts runs a catalog search.
func (c *Client) SearchProducts(ctx context.Context, criteria fulfillment.SearchCriteria) ([]fulfillment.Product, error) {
	body := searchWire{Query: criteria.Query, Category: criteria.Category, Size: criteria.Size, Limit: criteria.Limit}
	var out productListWire
	if err := c.do(ctx, "search_products", http.MethodPost, "/v4.0/products/search", body, &out); err != nil {
		return nil, err
	}
	return toProducts(out.Products), nil
}

func toProducts(in []productWire) []fulfillment.Product {
	out := make([]fulfillment.Product, 0, len(in))
	for _, p := range in {
		out = append(out, p.toProduct())
	}
	return out
}

// flexNumber accepts numeric fields sent either as JSON numbers or strings.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	if s, err := strconv.Unquote(string(data)); err == nil {
		*n = flexNumber(s)
		return nil
	}
	*n = flexNumber(data)
	return nil
}

func (n flexNumber) decimal() decimal.Decimal {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		return decimal.Zero
	}
	return d
}
