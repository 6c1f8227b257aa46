// Package lock provides a Redis lock so only one instance refreshes the
// partner catalog at a time.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when MaxWait elapses while another holder owns
// the key.
var ErrNotAcquired = errors.New("lock: held by another instance")

// compare-and-delete so a holder whose TTL lapsed cannot free a newer lock
var unlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker serialises work across instances with SET NX PX and a random token.
type Locker struct {
	R            *redis.Client
	Prefix       string
	RetryBackoff time.Duration
	// MaxWait bounds how long WithLock polls for a held key. Zero waits until
	// ctx is done.
	MaxWait time.Duration
}

// WithLock runs fn while holding key and releases the lock afterwards.
// ErrNotAcquired reports that MaxWait passed without getting the lock.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	switch {
	case l.R == nil:
		return errors.New("lock: redis client not configured")
	case fn == nil:
		return errors.New("lock: nil callback")
	}
	key = l.Prefix + "lock:" + key
	token := uuid.NewString()
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	acquired, err := l.acquire(ctx, key, token, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}
	defer func() {
		_ = unlock.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	poll := l.RetryBackoff
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	if l.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, l.MaxWait, ErrNotAcquired)
		defer cancel()
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		switch {
		case ok:
			return true, nil
		case err != nil && context.Cause(ctx) == ErrNotAcquired:
			return false, nil
		case err != nil:
			return false, err
		}
		select {
		case <-ctx.Done():
			if context.Cause(ctx) == ErrNotAcquired {
				return false, nil
			}
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}
