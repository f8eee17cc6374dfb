package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/babymilooo/webster-backend/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetConfig bounds reset requests and reset confirmations.
type PasswordResetConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxRequests              int
	// MaxConfirms limits token redemption attempts per IP.
	MaxConfirms int
}

// PasswordResetLimiter throttles the send-reset endpoint per email and IP and
// the redeem endpoint per IP.
type PasswordResetLimiter struct {
	identifier *rate.Window
	ip         *rate.Window
	confirmIP  *rate.Window
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	l := &PasswordResetLimiter{}
	if cfg.EnableIdentifierThrottle {
		l.identifier = rate.NewWindow(redisClient, "wpr", cfg.MaxRequests, cfg.Window)
	}
	if cfg.EnableIPThrottle {
		l.ip = rate.NewWindow(redisClient, "wprip", cfg.MaxRequests, cfg.Window)
		l.confirmIP = rate.NewWindow(redisClient, "wprcip", cfg.MaxConfirms, cfg.Window)
	}
	return l
}

// CheckRequest counts one reset request.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	return mapWindowErr(
		hitAll(ctx, []*rate.Window{l.identifier, l.ip}, []string{normalizeIdentifier(identifier), ip}),
		ErrResetRateLimited,
		ErrResetRedisUnavailable,
	)
}

// CheckConfirm counts one redemption attempt from ip.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil {
		return nil
	}
	return mapWindowErr(
		hitAll(ctx, []*rate.Window{l.confirmIP}, []string{ip}),
		ErrResetRateLimited,
		ErrResetRedisUnavailable,
	)
}
