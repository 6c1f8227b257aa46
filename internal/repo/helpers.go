package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ErrInvalidID indicates an identifier could not be parsed as a UUID.
var ErrInvalidID = errors.New("invalid id")

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func uuidValue(id string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	var out pgtype.UUID
	out.Bytes = parsed
	out.Valid = true
	return out, nil
}

// numeric columns are written and read as text to keep full decimal precision.
func numericText(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func parseNumeric(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("repo: %s: %w", field, err)
	}
	return d, nil
}
