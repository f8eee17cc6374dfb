package webster

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/babymilooo/webster-backend/internal/audit"
	"github.com/babymilooo/webster-backend/internal/limiters"
	"github.com/babymilooo/webster-backend/password"
	"github.com/babymilooo/webster-backend/revocation"
	"github.com/babymilooo/webster-backend/session"
	"github.com/babymilooo/webster-backend/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store    IdentityStore
	hasher   password.Hasher
	mailer   Mailer
	registry revocation.Registry
	logger   *slog.Logger
	sink     AuditSink
	clock    func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the shared revocation registry and every throttle.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithIdentityStore(store IdentityStore) *Builder {
	b.store = store
	return b
}

// WithPasswordHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithPasswordHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithRevocationRegistry takes precedence over the registry WithRedis would
// create.
func (b *Builder) WithRevocationRegistry(r revocation.Registry) *Builder {
	b.registry = r
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source for token stamping. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and wires every component. A missing
// secret for a kind in use fails here rather than on first request.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, fmt.Errorf("%w: identity store required", ErrConfig)
	}
	if (cfg.EmailVerification.Enabled || cfg.PasswordReset.Enabled) && b.mailer == nil {
		return nil, fmt.Errorf("%w: email flows require a mailer", ErrConfig)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	// -------- REVOCATION --------
	registry := b.registry
	switch {
	case registry != nil:
	case b.redis != nil:
		registry = revocation.NewRedis(b.redis, revocation.RedisConfig{
			Prefix:      cfg.Revocation.RedisPrefix,
			FallbackTTL: cfg.Revocation.FallbackTTL,
		})
	default:
		registry = revocation.NewMemory()
	}

	// -------- TOKENS --------
	codec, err := token.NewCodec(cfg.Tokens.codecConfig(), registry, token.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		hasher, err = newHasher(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		hasher:   hasher,
		mailer:   b.mailer,
		codec:    codec,
		registry: registry,
		issuer:   session.NewIssuer(codec, registry, clock),
		cookies:  session.NewCookies(cfg.Cookie),
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    audit.NewDispatcher(cfg.auditConfig(logger), b.sink),
		now:      clock,
	}

	// -------- THROTTLES --------
	if b.redis != nil {
		if cfg.Security.EnableLoginThrottle {
			engine.loginLimiter = limiters.NewLoginLimiter(b.redis, cfg.loginLimiterConfig())
		}
		if cfg.EmailVerification.Enabled {
			engine.verificationLimiter = limiters.NewEmailVerificationLimiter(b.redis, cfg.verificationLimiterConfig())
		}
		if cfg.PasswordReset.Enabled {
			engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, cfg.resetLimiterConfig())
		}
	}

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	primary, err := password.NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	if !cfg.AcceptBcrypt {
		return password.Migrating{Primary: primary}, nil
	}
	legacy, err := password.NewBcrypt(0)
	if err != nil {
		return nil, err
	}
	return password.Migrating{Primary: primary, Legacy: []password.Algorithm{legacy}}, nil
}
