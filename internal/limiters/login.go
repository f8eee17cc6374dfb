package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/babymilooo/webster-backend/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLoginRateLimited      = errors.New("login rate limited")
	ErrLoginRedisUnavailable = errors.New("login limiter unavailable")
)

// LoginConfig bounds failed login attempts.
type LoginConfig struct {
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// LoginLimiter counts failed logins per email and optionally per IP. Only
// failures are counted; a successful login clears the email counter.
type LoginLimiter struct {
	identifier *rate.Window
	ip         *rate.Window
}

func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) *LoginLimiter {
	l := &LoginLimiter{
		identifier: rate.NewWindow(redisClient, "wlf", cfg.MaxAttempts, cfg.Cooldown),
	}
	if cfg.EnableIPThrottle {
		l.ip = rate.NewWindow(redisClient, "wlfip", cfg.MaxAttempts, cfg.Cooldown)
	}
	return l
}

// Check fails when identifier or ip already used up the failure budget.
func (l *LoginLimiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.identifier.Check(ctx, normalizeIdentifier(identifier)); err != nil {
		return mapWindowErr(err, ErrLoginRateLimited, ErrLoginRedisUnavailable)
	}
	if err := l.ip.Check(ctx, ip); err != nil {
		return mapWindowErr(err, ErrLoginRateLimited, ErrLoginRedisUnavailable)
	}
	return nil
}

// Failure records one failed attempt.
func (l *LoginLimiter) Failure(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	return mapWindowErr(
		hitAll(ctx, []*rate.Window{l.identifier, l.ip}, []string{normalizeIdentifier(identifier), ip}),
		ErrLoginRateLimited,
		ErrLoginRedisUnavailable,
	)
}

// Success clears the identifier counter.
func (l *LoginLimiter) Success(ctx context.Context, identifier string) error {
	if l == nil {
		return nil
	}
	return mapWindowErr(l.identifier.Reset(ctx, normalizeIdentifier(identifier)), ErrLoginRateLimited, ErrLoginRedisUnavailable)
}
