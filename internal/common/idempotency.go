package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Idem rejects replays of write requests carrying an Idempotency-Key header
// while the first request with that key is in flight or within TTL of it.
// A nil client disables the check.
type Idem struct {
	R      *redis.Client
	Prefix string
	TTL    time.Duration
}

func (i Idem) key(r *http.Request, header string) string {
	sum := sha256.Sum256([]byte(r.Method + " " + r.URL.Path + " " + header))
	return i.Prefix + "idem:" + hex.EncodeToString(sum[:])
}

// Middleware enforces idempotency for non-GET requests.
func (i Idem) Middleware(next http.Handler) http.Handler {
	ttl := i.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		key := i.key(r, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", ttl).Result()
		if err != nil {
			WriteError(w, NewAppError(KindUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store error", err))
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// a panicking handler must not leave the key without a TTL
			_ = i.R.Expire(context.Background(), key, ttl).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
