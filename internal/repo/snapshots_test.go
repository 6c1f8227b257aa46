package repo_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-printshop/internal/common"
	"github.com/noah-isme/backend-printshop/internal/pricing"
	"github.com/noah-isme/backend-printshop/internal/repo"
	"github.com/noah-isme/backend-printshop/internal/shipping"
)

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: want %d columns, got %d", len(r.vals), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int:
			*p = r.vals[i].(int)
		case *bool:
			*p = r.vals[i].(bool)
		case *[]byte:
			*p = r.vals[i].([]byte)
		case *pgtype.Timestamptz:
			*p = r.vals[i].(pgtype.Timestamptz)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

type fakeDB struct {
	execSQL  string
	execArgs []any
	execErr  error
	row      fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = sql
	f.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func priced(t *testing.T) pricing.Result {
	t.Helper()
	calc := pricing.NewCalculator(pricing.DefaultConfig())
	res, err := calc.Total([]pricing.Item{
		{ID: uuid.NewString(), SKU: "GLOBAL-CAN-16X20", Price: dec("29.99"), Quantity: 1},
		{ID: uuid.NewString(), SKU: "GLOBAL-FAP-12X16", Price: dec("39.99"), Quantity: 2},
	}, &pricing.ShippingCharge{Cost: dec("9.99"), Service: "Standard"}, decimal.Zero)
	require.NoError(t, err)
	return res
}

func TestSaveUpsertsValidatedResult(t *testing.T) {
	db := &fakeDB{}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := repo.Snapshots{DB: db, Now: func() time.Time { return fixed }}
	orderID := uuid.NewString()

	quote := &shipping.Quote{Service: "Standard", Cost: dec("9.99"), Currency: "USD", EstimatedDays: 7}
	require.NoError(t, store.Save(context.Background(), orderID, priced(t), quote, true))

	require.Contains(t, db.execSQL, "ON CONFLICT (order_id) DO UPDATE")
	require.Len(t, db.execArgs, 12)
	id := db.execArgs[0].(pgtype.UUID)
	require.Equal(t, uuid.MustParse(orderID), uuid.UUID(id.Bytes))
	require.Equal(t, "109.97", db.execArgs[1])
	require.Equal(t, "8.80", db.execArgs[2])
	require.Equal(t, "128.76", db.execArgs[5])
	require.Equal(t, 3, db.execArgs[7])
	require.Contains(t, string(db.execArgs[9].([]byte)), `"service":"Standard"`)
	require.Equal(t, true, db.execArgs[10])
	require.Equal(t, fixed, db.execArgs[11])
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	db := &fakeDB{}
	store := repo.Snapshots{DB: db}

	err := store.Save(context.Background(), "not-a-uuid", priced(t), nil, false)
	require.Equal(t, common.KindValidation, common.KindOf(err))
	require.Empty(t, db.execSQL)

	res := priced(t)
	res.Total = res.Total.Add(dec("5"))
	err = store.Save(context.Background(), uuid.NewString(), res, nil, false)
	require.Equal(t, common.KindConsistency, common.KindOf(err))
	require.Empty(t, db.execSQL)

	db.execErr = errors.New("connection reset")
	err = store.Save(context.Background(), uuid.NewString(), priced(t), nil, false)
	require.ErrorContains(t, err, "connection reset")
}

func TestGetDecodesSnapshot(t *testing.T) {
	res := priced(t)
	breakdown, err := json.Marshal(res.Breakdown)
	require.NoError(t, err)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ts := pgtype.Timestamptz{Time: created, Valid: true}

	db := &fakeDB{row: fakeRow{vals: []any{
		"109.97", "8.80", "9.99", "0.00", "128.76",
		"USD", 3, breakdown, []byte(`{"service":"Express","cost":"19.99","currency":"USD","estimatedDays":3}`),
		false, ts, ts,
	}}}
	store := repo.Snapshots{DB: db}
	orderID := uuid.NewString()

	snap, err := store.Get(context.Background(), orderID)
	require.NoError(t, err)
	require.Equal(t, orderID, snap.OrderID)
	require.True(t, snap.Result.Total.Equal(dec("128.76")))
	require.Len(t, snap.Result.Breakdown.Items, 2)
	require.NoError(t, pricing.ValidateResult(snap.Result))
	require.Equal(t, "Express", snap.Quote.Service)
	require.Equal(t, created, snap.CreatedAt)

	db.row = fakeRow{err: pgx.ErrNoRows}
	_, err = store.Get(context.Background(), orderID)
	require.ErrorIs(t, err, repo.ErrSnapshotNotFound)

	_, err = store.Get(context.Background(), "bad")
	require.ErrorIs(t, err, repo.ErrInvalidID)
}
