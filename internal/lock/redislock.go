package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/shipquote/internal/resilience"
)

const (
	defaultLockTTL   = 30 * time.Second
	defaultRetryBase = 25 * time.Millisecond
	maxRetryDelay    = 250 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that another instance re-acquired is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a SET NX lock in Redis shared by every API instance.
type Locker struct {
	R            redis.UniversalClient
	Prefix       string
	RetryBackoff time.Duration
}

// WithLock runs fn while holding the lock for key, polling with capped
// exponential backoff until the lock is free or ctx ends. The lock expires
// after ttl even if the holder dies.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	key = l.Prefix + key
	token := uuid.NewString()

	if err := l.acquire(ctx, key, token, ttl); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key, token string, ttl time.Duration) error {
	base := l.RetryBackoff
	if base <= 0 {
		base = defaultRetryBase
	}
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return nil
		}
		delay := min(resilience.Backoff(base, attempt, 0.2), maxRetryDelay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
