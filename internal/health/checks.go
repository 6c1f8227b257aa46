package health

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-printshop/internal/resilience"
)

// Postgres checks the snapshot database pool.
func Postgres(pool *pgxpool.Pool) Check {
	return Check{Name: "db", Ping: func(ctx context.Context) error {
		return pool.Ping(ctx)
	}}
}

// Redis checks the catalog cache and lock backend. Catalog reads fall back to
// the partner or fixed options without it, so the check is optional.
func Redis(client *redis.Client) Check {
	return Check{Name: "redis", Optional: true, Ping: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// Breaker reports an open partner circuit as degraded.
func Breaker(name string, b *resilience.Breaker) Check {
	return Check{Name: name, Optional: true, Ping: func(context.Context) error {
		if state := b.State(); state == resilience.Open {
			return fmt.Errorf("circuit %s", state)
		}
		return nil
	}}
}
