package resilience

import (
	"math/rand/v2"
	"time"
)

// Backoff returns base*2^(attempt-1). A positive jitter spreads the delay by
// up to that fraction in either direction, so 0.2 means plus or minus 20%.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << max(attempt-1, 0)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
