package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/babymilooo/webster-backend/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrVerificationRateLimited        = errors.New("verification rate limited")
	ErrVerificationLimiterUnavailable = errors.New("verification limiter unavailable")
)

// EmailVerificationConfig bounds how often verification mails may be requested.
type EmailVerificationConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Window                   time.Duration
	MaxRequests              int
}

// EmailVerificationLimiter throttles the send-verification endpoint per email
// address and per client IP.
type EmailVerificationLimiter struct {
	identifier *rate.Window
	ip         *rate.Window
}

func NewEmailVerificationLimiter(redisClient redis.UniversalClient, cfg EmailVerificationConfig) *EmailVerificationLimiter {
	l := &EmailVerificationLimiter{}
	if cfg.EnableIdentifierThrottle {
		l.identifier = rate.NewWindow(redisClient, "wvr", cfg.MaxRequests, cfg.Window)
	}
	if cfg.EnableIPThrottle {
		l.ip = rate.NewWindow(redisClient, "wvrip", cfg.MaxRequests, cfg.Window)
	}
	return l
}

// CheckRequest counts one request for identifier and ip.
func (l *EmailVerificationLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	return mapWindowErr(
		hitAll(ctx, []*rate.Window{l.identifier, l.ip}, []string{normalizeIdentifier(identifier), ip}),
		ErrVerificationRateLimited,
		ErrVerificationLimiterUnavailable,
	)
}
