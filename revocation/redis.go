package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures of the Redis backend.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

const (
	defaultPrefix = "wrv"
	minTTL        = time.Second
)

// RedisConfig tunes the Redis registry.
type RedisConfig struct {
	// Prefix namespaces revocation keys. Defaults to "wrv".
	Prefix string
	// FallbackTTL is used when a token's expiry is unknown or already past.
	// It should be at least the refresh token lifetime.
	FallbackTTL time.Duration
}

// Redis stores revocations as keys whose TTL matches the remaining lifetime
// of the revoked token, so the set prunes itself once entries are moot.
// Keys hold a SHA-256 of the token rather than the token itself.
type Redis struct {
	redis  redis.UniversalClient
	config RedisConfig
	now    func() time.Time
}

// NewRedis creates a registry backed by the given client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &Redis{
		redis:  client,
		config: cfg,
		now:    time.Now,
	}
}

// Revoke records token until expiresAt. SET is idempotent, so concurrent
// revocations of the same token converge on one key.
func (r *Redis) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := r.ttl(expiresAt)
	if err := r.redis.Set(ctx, r.key(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether a live revocation key exists for token.
func (r *Redis) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

func (r *Redis) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.config.Prefix + ":" + hex.EncodeToString(sum[:])
}

func (r *Redis) ttl(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return r.fallback()
	}
	ttl := expiresAt.Sub(r.now())
	if ttl < minTTL {
		return r.fallback()
	}
	return ttl
}

func (r *Redis) fallback() time.Duration {
	// A zero TTL would make the key permanent, which is still correct.
	if r.config.FallbackTTL <= 0 {
		return 0
	}
	return r.config.FallbackTTL
}

var _ Registry = (*Redis)(nil)
