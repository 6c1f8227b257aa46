package prodigi

import (
	"context"
	"errors"
	"net/http"

	"github.com/noah-isme/backend-printshop/internal/fulfillment"
)

type orderRecipientWire struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Address struct {
		Line1         string `json:"line1"`
		Line2         string `json:"line2,omitempty"`
		PostalOrZip   string `json:"postalOrZipCode,omitempty"`
		CountryCode   string `json:"countryCode"`
		TownOrCity    string `json:"townOrCity"`
		StateOrCounty string `json:"stateOrCounty,omitempty"`
	} `json:"address"`
}

type orderItemWire struct {
	SKU        string            `json:"sku"`
	Copies     int               `json:"copies"`
	Sizing     string            `json:"sizing"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Assets     []assetWire       `json:"assets"`
}

type orderRequestWire struct {
	MerchantReference string             `json:"merchantReference,omitempty"`
	ShippingMethod    string             `json:"shippingMethod"`
	IdempotencyKey    string             `json:"idempotencyKey,omitempty"`
	Recipient         orderRecipientWire `json:"recipient"`
	Items             []orderItemWire    `json:"items"`
}

type orderResponseWire struct {
	Outcome string `json:"outcome"`
	Order   struct {
		ID     string `json:"id"`
		Status struct {
			Stage string `json:"stage"`
		} `json:"status"`
		Shipments []struct {
			Tracking struct {
				Number string `json:"number"`
				URL    string `json:"url"`
			} `json:"tracking"`
			DispatchDate string `json:"dispatchDate"`
		} `json:"shipments"`
	} `json:"order"`
}

// CreateOrder submits an order to the partner.
func (c *Client) CreateOrder(ctx context.Context, order fulfillment.Order) (fulfillment.OrderResult, error) {
	if len(order.Items) == 0 {
		return fulfillment.OrderResult{}, errors.New("prodigi: order has no items")
	}
	method := order.ShippingMethod
	if method == "" {
		method = "Standard"
	}
	wire := orderRequestWire{
		MerchantReference: order.MerchantReference,
		ShippingMethod:    method,
		IdempotencyKey:    order.IdempotencyKey,
	}
	wire.Recipient.Name = order.Recipient.Name
	wire.Recipient.Email = order.Recipient.Email
	addr := order.Recipient.Address
	wire.Recipient.Address.Line1 = addr.Line1
	wire.Recipient.Address.Line2 = addr.Line2
	wire.Recipient.Address.PostalOrZip = addr.PostalCode
	wire.Recipient.Address.CountryCode = addr.CountryCode
	wire.Recipient.Address.TownOrCity = addr.City
	wire.Recipient.Address.StateOrCounty = addr.StateOrCounty
	for _, it := range order.Items {
		wire.Items = append(wire.Items, orderItemWire{
			SKU:        it.SKU,
			Copies:     it.Copies,
			Sizing:     "fillPrintArea",
			Attributes: it.Attributes,
			Assets:     []assetWire{{PrintArea: "default", URL: it.AssetURL}},
		})
	}

	var out orderResponseWire
	if err := c.do(ctx, "create_order", http.MethodPost, "/v4.0/orders", wire, &out); err != nil {
		return fulfillment.OrderResult{}, err
	}
	result := fulfillment.OrderResult{
		ID:     out.Order.ID,
		Status: out.Order.Status.Stage,
	}
	if len(out.Order.Shipments) > 0 {
		s := out.Order.Shipments[0]
		result.TrackingNumber = s.Tracking.Number
		result.TrackingURL = s.Tracking.URL
		result.EstimatedDelivery = s.DispatchDate
	}
	return result, nil
}
