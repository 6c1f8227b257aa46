// Package ratelimit throttles the public pricing endpoints per client.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-printshop/internal/common"
)

// NewStore returns a Redis store when rdb is set so limits are shared across
// instances, otherwise an in-process store.
func NewStore(rdb *redis.Client, prefix string) (limiter.Store, error) {
	opts := limiter.StoreOptions{Prefix: prefix + "ratelimit", CleanUpInterval: time.Minute}
	if rdb == nil {
		return memory.NewStoreWithOptions(opts), nil
	}
	return limiterredis.NewStoreWithOptions(rdb, opts)
}

// New builds a limiter from a formatted rate such as "120-M".
func New(rate string, store limiter.Store) (*limiter.Limiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: rate %q: %w", rate, err)
	}
	return limiter.New(store, parsed), nil
}

// Handler enforces the limiter before delegating to the next handler. Store
// errors let the request through.
type Handler struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
	Logger  zerolog.Logger
}

// Middleware implements chi middleware.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	keyOf := h.Key
	if keyOf == nil {
		keyOf = common.ClientIP
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc, err := h.Limiter.Get(r.Context(), keyOf(r))
		if err != nil {
			h.Logger.Warn().Err(err).Msg("ratelimit_store_error")
			next.ServeHTTP(w, r)
			return
		}
		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))
		if lc.Reached {
			retryAfter := max(lc.Reset-time.Now().Unix(), 0)
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
