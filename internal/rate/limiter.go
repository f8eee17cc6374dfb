package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned once a key exceeds its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps transport failures.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)

// Window is a fixed-window counter namespaced by Prefix.
type Window struct {
	redis  redis.UniversalClient
	prefix string
	limit  int
	period time.Duration
}

// NewWindow returns a window allowing limit hits per period for each key.
// A non-positive limit disables the window.
func NewWindow(client redis.UniversalClient, prefix string, limit int, period time.Duration) *Window {
	return &Window{
		redis:  client,
		prefix: prefix,
		limit:  limit,
		period: period,
	}
}

// Enabled reports whether the window counts anything.
func (w *Window) Enabled() bool {
	return w != nil && w.redis != nil && w.limit > 0 && w.period > 0
}

// Hit counts one event for key and fails once the budget is exceeded.
func (w *Window) Hit(ctx context.Context, key string) error {
	if !w.Enabled() || key == "" {
		return nil
	}

	count, err := w.incrementWithTTL(ctx, w.key(key))
	if err != nil {
		return err
	}
	if count > int64(w.limit) {
		return ErrRateLimited
	}
	return nil
}

// Check reports whether key is already over budget without counting.
func (w *Window) Check(ctx context.Context, key string) error {
	if !w.Enabled() || key == "" {
		return nil
	}

	count, err := w.redis.Get(ctx, w.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(w.limit) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counters of keys.
func (w *Window) Reset(ctx context.Context, keys ...string) error {
	if !w.Enabled() || len(keys) == 0 {
		return nil
	}

	full := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			full = append(full, w.key(k))
		}
	}
	if len(full) == 0 {
		return nil
	}
	if err := w.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *Window) key(k string) string {
	return w.prefix + ":" + k
}

func (w *Window) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := w.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := w.redis.Expire(ctx, key, w.period).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
