// Package repo persists pricing snapshots in Postgres.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/obs"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

// ErrSnapshotNotFound is returned by Get for unknown orders.
var ErrSnapshotNotFound = errors.New("pricing snapshot not found")

// Snapshot is the priced state of an order at checkout time.
type Snapshot struct {
	OrderID           string          `json:"orderId"`
	Result            pricing.Result  `json:"result"`
	Quote             *shipping.Quote `json:"quote,omitempty"`
	ShippingEstimated bool            `json:"shippingEstimated"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Snapshots stores one pricing snapshot per order.
type Snapshots struct {
	DB  DB
	Now func() time.Time
}

const upsertSnapshot = `
INSERT INTO order_pricing_snapshots (
	order_id, subtotal, tax_amount, shipping_amount, discount_amount, total,
	currency, item_count, breakdown, quote, shipping_estimated, created_at, updated_at
) VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12, $12)
ON CONFLICT (order_id) DO UPDATE SET
	subtotal = EXCLUDED.subtotal,
	tax_amount = EXCLUDED.tax_amount,
	shipping_amount = EXCLUDED.shipping_amount,
	discount_amount = EXCLUDED.discount_amount,
	total = EXCLUDED.total,
	currency = EXCLUDED.currency,
	item_count = EXCLUDED.item_count,
	breakdown = EXCLUDED.breakdown,
	quote = EXCLUDED.quote,
	shipping_estimated = EXCLUDED.shipping_estimated,
	updated_at = EXCLUDED.updated_at`

const selectSnapshot = `
SELECT subtotal::text, tax_amount::text, shipping_amount::text, discount_amount::text, total::text,
	currency, item_count, breakdown, quote, shipping_estimated, created_at, updated_at
FROM order_pricing_snapshots
WHERE order_id = $1`

// Save validates res and upserts it as the snapshot for orderID. Results that
// do not add up are never persisted.
func (s Snapshots) Save(ctx context.Context, orderID string, res pricing.Result, quote *shipping.Quote, estimated bool) error {
	outcome := "error"
	defer func() { obs.Inc(obs.PricingSnapshotTotal, outcome) }()

	id, err := uuidValue(orderID)
	if err != nil {
		outcome = "invalid"
		return common.NewAppError(common.KindValidation, "INVALID_ORDER_ID", "order id must be a UUID", err)
	}
	if err := pricing.ValidateResult(res); err != nil {
		outcome = "invalid"
		return err
	}
	breakdown, err := json.Marshal(res.Breakdown)
	if err != nil {
		return fmt.Errorf("repo: encode breakdown: %w", err)
	}
	var quoteJSON []byte
	if quote != nil {
		if quoteJSON, err = json.Marshal(quote); err != nil {
			return fmt.Errorf("repo: encode quote: %w", err)
		}
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	_, err = s.DB.Exec(ctx, upsertSnapshot,
		id,
		numericText(res.Subtotal),
		numericText(res.TaxAmount),
		numericText(res.ShippingAmount),
		numericText(res.DiscountAmount),
		numericText(res.Total),
		res.Currency,
		res.ItemCount,
		breakdown,
		quoteJSON,
		estimated,
		now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repo: save snapshot %s: %w", orderID, err)
	}
	outcome = "saved"
	return nil
}

// Get loads the snapshot for orderID.
func (s Snapshots) Get(ctx context.Context, orderID string) (Snapshot, error) {
	id, err := uuidValue(orderID)
	if err != nil {
		return Snapshot{}, err
	}
	var (
		subtotal, tax, ship, discount, total string
		breakdown, quoteJSON                 []byte
		created, updated                     pgtype.Timestamptz
	)
	snap := Snapshot{OrderID: orderID}
	err = s.DB.QueryRow(ctx, selectSnapshot, id).Scan(
		&subtotal, &tax, &ship, &discount, &total,
		&snap.Result.Currency, &snap.Result.ItemCount, &breakdown, &quoteJSON,
		&snap.ShippingEstimated, &created, &updated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, fmt.Errorf("repo: load snapshot %s: %w", orderID, err)
	}
	r := &snap.Result
	for _, n := range []struct {
		dst       *decimal.Decimal
		name, raw string
	}{
		{&r.Subtotal, "subtotal", subtotal},
		{&r.TaxAmount, "tax_amount", tax},
		{&r.ShippingAmount, "shipping_amount", ship},
		{&r.DiscountAmount, "discount_amount", discount},
		{&r.Total, "total", total},
	} {
		v, err := parseNumeric(n.name, n.raw)
		if err != nil {
			return Snapshot{}, err
		}
		*n.dst = v
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &r.Breakdown); err != nil {
			return Snapshot{}, fmt.Errorf("repo: decode breakdown: %w", err)
		}
	}
	if len(quoteJSON) > 0 {
		snap.Quote = &shipping.Quote{}
		if err := json.Unmarshal(quoteJSON, snap.Quote); err != nil {
			return Snapshot{}, fmt.Errorf("repo: decode quote: %w", err)
		}
	}
	snap.CreatedAt = created.Time
	snap.UpdatedAt = updated.Time
	return snap, nil
}
