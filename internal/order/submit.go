// Package order prices orders into durable snapshots and hands paid orders to
// the fulfillment partner, substituting SKUs the partner no longer accepts.
package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/fulfillment"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/repo"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrNotPriced is returned when an order is submitted before it was priced.
var ErrNotPriced = common.NewAppError(common.KindValidation, "ORDER_NOT_PRICED", "order has no pricing snapshot", nil)

// SKUResolver swaps rejected SKUs for working alternatives. *sku.Resolver
// satisfies it.
type SKUResolver interface {
	Resolve(ctx context.Context, sku string) (string, error)
}

// SnapshotStore persists priced orders. *repo.Snapshots satisfies it.
type SnapshotStore interface {
	Save(ctx context.Context, orderID string, res pricing.Result, quote *shipping.Quote, estimated bool) error
	Get(ctx context.Context, orderID string) (repo.Snapshot, error)
}

// Line is one printable item of a submission.
type Line struct {
	SKU        string            `json:"sku" validate:"required"`
	Copies     int               `json:"copies" validate:"min=1,max=100"`
	AssetURL   string            `json:"assetUrl" validate:"required,url"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// SubmitRequest describes a paid order ready for fulfillment.
type SubmitRequest struct {
	OrderID        string                `json:"orderId" validate:"required,uuid"`
	Recipient      fulfillment.Recipient `json:"recipient"`
	ShippingMethod string                `json:"shippingMethod"`
	Lines          []Line                `json:"lines" validate:"required,min=1,dive"`
}

// Submission reports what was sent to the partner.
type Submission struct {
	Result        fulfillment.OrderResult `json:"result"`
	Substitutions map[string]string       `json:"substitutions,omitempty"`
}

// Submitter sends orders to the partner.
type Submitter struct {
	Orders    fulfillment.OrderClient
	Resolver  SKUResolver
	Snapshots SnapshotStore
	Logger    zerolog.Logger
}

// Submit validates req, resolves every SKU and creates the partner order. The
// order id doubles as the partner idempotency key so retries never duplicate
// a print run. When snapshots are configured the order must have been priced,
// and the priced shipping service is used unless the request names one.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	if s.Orders == nil {
		return Submission{}, common.NewAppError(common.KindUnavailable, "FULFILLMENT_UNAVAILABLE", "fulfillment partner not configured", nil)
	}
	if err := validate.Struct(req); err != nil {
		return Submission{}, common.NewAppError(common.KindValidation, "INVALID_ORDER", "invalid order submission", err)
	}
	if err := shipping.ValidateShippingAddress(req.Recipient.Address); err != nil {
		return Submission{}, err
	}

	method := req.ShippingMethod
	if s.Snapshots != nil {
		snap, err := s.Snapshots.Get(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, repo.ErrSnapshotNotFound) {
				return Submission{}, ErrNotPriced
			}
			return Submission{}, fmt.Errorf("order %s: load snapshot: %w", req.OrderID, err)
		}
		if method == "" && snap.Quote != nil {
			method = snap.Quote.Service
		}
	}

	order := fulfillment.Order{
		MerchantReference: req.OrderID,
		ShippingMethod:    method,
		Recipient:         req.Recipient,
		IdempotencyKey:    req.OrderID,
		Items:             make([]fulfillment.OrderItem, 0, len(req.Lines)),
	}
	subs := map[string]string{}
	for _, line := range req.Lines {
		sku := line.SKU
		if s.Resolver != nil {
			resolved, err := s.Resolver.Resolve(ctx, line.SKU)
			if err != nil {
				return Submission{}, err
			}
			if resolved != line.SKU {
				subs[line.SKU] = resolved
			}
			sku = resolved
		}
		order.Items = append(order.Items, fulfillment.OrderItem{
			SKU:        sku,
			Copies:     line.Copies,
			AssetURL:   line.AssetURL,
			Attributes: line.Attributes,
		})
	}

	res, err := s.Orders.CreateOrder(ctx, order)
	if err != nil {
		s.log(ctx).Error().Err(err).Str("order_id", req.OrderID).Msg("partner_order_failed")
		return Submission{}, fmt.Errorf("order %s: submit: %w", req.OrderID, err)
	}
	s.log(ctx).Info().
		Str("order_id", req.OrderID).
		Str("partner_order_id", res.ID).
		Int("substitutions", len(subs)).
		Msg("partner_order_submitted")
	out := Submission{Result: res}
	if len(subs) > 0 {
		out.Substitutions = subs
	}
	return out, nil
}

func (s *Submitter) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.Logger
}
