package webster

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/babymilooo/webster-backend/internal/audit"
	"github.com/babymilooo/webster-backend/internal/limiters"
	"github.com/babymilooo/webster-backend/password"
	"github.com/babymilooo/webster-backend/session"
	"github.com/babymilooo/webster-backend/token"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override what the deployment needs.
type Config struct {
	// ProductName prefixes outgoing email subjects.
	ProductName string
	// FrontendURL is where a confirmed email verification redirects to.
	FrontendURL string

	Tokens            TokensConfig
	Cookie            session.CookieConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	Security          SecurityConfig
	Revocation        RevocationConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
TOKENS CONFIG
====================================
*/

// TokensConfig holds one secret and one lifetime per token kind. A zero
// lifetime on a single-use kind produces tokens without an expiry.
type TokensConfig struct {
	AccessSecret        []byte
	RefreshSecret       []byte
	VerificationSecret  []byte
	PasswordResetSecret []byte
	TicketSecret        []byte

	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	VerificationTTL  time.Duration
	PasswordResetTTL time.Duration
	TicketTTL        time.Duration

	Issuer string
	Leeway time.Duration
}

func (t TokensConfig) codecConfig() token.Config {
	kinds := map[token.Kind]token.KindConfig{
		token.Access:  {Secret: t.AccessSecret, Expiry: t.AccessTTL},
		token.Refresh: {Secret: t.RefreshSecret, Expiry: t.RefreshTTL},
	}
	if len(t.VerificationSecret) > 0 {
		kinds[token.EmailVerification] = token.KindConfig{Secret: t.VerificationSecret, Expiry: t.VerificationTTL}
	}
	if len(t.PasswordResetSecret) > 0 {
		kinds[token.PasswordReset] = token.KindConfig{Secret: t.PasswordResetSecret, Expiry: t.PasswordResetTTL}
	}
	if len(t.TicketSecret) > 0 {
		kinds[token.ActionTicket] = token.KindConfig{Secret: t.TicketSecret, Expiry: t.TicketTTL}
	}
	return token.Config{
		Kinds:  kinds,
		Issuer: t.Issuer,
		Leeway: t.Leeway,
	}
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig controls hashing and the acceptance policy for new passwords.
type PasswordConfig struct {
	Argon2 password.Argon2Config
	Policy password.Policy
	// AcceptBcrypt verifies bcrypt hashes written by earlier deployments.
	AcceptBcrypt bool
	// UpgradeOnLogin rehashes legacy or weaker hashes after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
EMAIL FLOWS CONFIG
====================================
*/

// EmailVerificationConfig controls the email verification flow.
type EmailVerificationConfig struct {
	Enabled bool
	// LinkBaseURL is the public origin of this service; links point to
	// LinkBaseURL + "/auth/verify-email/<token>".
	LinkBaseURL              string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	RequestWindow            time.Duration
	MaxRequests              int
}

// PasswordResetConfig controls the password reset flow.
type PasswordResetConfig struct {
	Enabled                  bool
	LinkBaseURL              string
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	RequestWindow            time.Duration
	MaxRequests              int
	MaxConfirms              int
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig bounds repeated failed logins. Throttling needs redis.
type SecurityConfig struct {
	EnableLoginThrottle bool
	EnableIPThrottle    bool
	MaxLoginAttempts    int
	LoginCooldown       time.Duration
}

// RevocationConfig applies to the redis revocation registry only.
type RevocationConfig struct {
	RedisPrefix string
	FallbackTTL time.Duration
}

// AuditConfig controls asynchronous audit delivery.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults without secrets. Token secrets
// must be supplied before Build.
func DefaultConfig() Config {
	return Config{
		ProductName: "Webster",
		Tokens: TokensConfig{
			AccessTTL:        15 * time.Minute,
			RefreshTTL:       30 * 24 * time.Hour,
			VerificationTTL:  24 * time.Hour,
			PasswordResetTTL: time.Hour,
			TicketTTL:        10 * time.Minute,
		},
		Cookie: session.DefaultCookieConfig(),
		Password: PasswordConfig{
			Argon2:         password.DefaultArgon2Config(),
			Policy:         password.DefaultPolicy(),
			AcceptBcrypt:   true,
			UpgradeOnLogin: true,
		},
		EmailVerification: EmailVerificationConfig{
			Enabled:                  true,
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			RequestWindow:            15 * time.Minute,
			MaxRequests:              3,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  true,
			EnableIdentifierThrottle: true,
			EnableIPThrottle:         true,
			RequestWindow:            15 * time.Minute,
			MaxRequests:              3,
			MaxConfirms:              10,
		},
		Security: SecurityConfig{
			EnableLoginThrottle: true,
			EnableIPThrottle:    false,
			MaxLoginAttempts:    5,
			LoginCooldown:       15 * time.Minute,
		},
		Revocation: RevocationConfig{
			RedisPrefix: "wrv",
			FallbackTTL: 30 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.AccessSecret = cloneBytes(cfg.Tokens.AccessSecret)
	out.Tokens.RefreshSecret = cloneBytes(cfg.Tokens.RefreshSecret)
	out.Tokens.VerificationSecret = cloneBytes(cfg.Tokens.VerificationSecret)
	out.Tokens.PasswordResetSecret = cloneBytes(cfg.Tokens.PasswordResetSecret)
	out.Tokens.TicketSecret = cloneBytes(cfg.Tokens.TicketSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem. Every returned error
// wraps [ErrConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// Tokens
	if len(c.Tokens.AccessSecret) == 0 {
		return errors.New("Tokens AccessSecret must be set")
	}
	if len(c.Tokens.RefreshSecret) == 0 {
		return errors.New("Tokens RefreshSecret must be set")
	}
	if c.Tokens.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL <= 0 {
		return errors.New("Tokens RefreshTTL must be > 0")
	}
	if c.Tokens.RefreshTTL < c.Tokens.AccessTTL {
		return errors.New("Tokens RefreshTTL must be >= AccessTTL")
	}
	if c.Tokens.VerificationTTL < 0 || c.Tokens.PasswordResetTTL < 0 || c.Tokens.TicketTTL < 0 {
		return errors.New("token lifetimes must be >= 0")
	}

	// Cookie
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Password
	if c.Password.Policy.MinLength < 1 {
		return errors.New("Password Policy MinLength must be >= 1")
	}
	if c.Password.Policy.MaxBytes > 0 && c.Password.Policy.MaxBytes < c.Password.Policy.MinLength {
		return errors.New("Password Policy MaxBytes must be >= MinLength")
	}

	// Email verification
	if c.EmailVerification.Enabled {
		if len(c.Tokens.VerificationSecret) == 0 {
			return errors.New("EmailVerification requires Tokens VerificationSecret")
		}
		if err := validateBaseURL("EmailVerification LinkBaseURL", c.EmailVerification.LinkBaseURL); err != nil {
			return err
		}
		if c.EmailVerification.MaxRequests < 0 || c.EmailVerification.RequestWindow < 0 {
			return errors.New("EmailVerification throttle values must be >= 0")
		}
	}

	// Password reset
	if c.PasswordReset.Enabled {
		if len(c.Tokens.PasswordResetSecret) == 0 {
			return errors.New("PasswordReset requires Tokens PasswordResetSecret")
		}
		if c.Tokens.PasswordResetTTL <= 0 {
			return errors.New("PasswordReset requires Tokens PasswordResetTTL > 0")
		}
		if err := validateBaseURL("PasswordReset LinkBaseURL", c.PasswordReset.LinkBaseURL); err != nil {
			return err
		}
		if c.PasswordReset.MaxRequests < 0 || c.PasswordReset.MaxConfirms < 0 || c.PasswordReset.RequestWindow < 0 {
			return errors.New("PasswordReset throttle values must be >= 0")
		}
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldown <= 0 {
			return errors.New("Security LoginCooldown must be > 0")
		}
	}

	// Revocation
	if strings.TrimSpace(c.Revocation.RedisPrefix) == "" {
		return errors.New("Revocation RedisPrefix must be set")
	}
	if c.Revocation.FallbackTTL < 0 {
		return errors.New("Revocation FallbackTTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.FrontendURL != "" {
		if err := validateBaseURL("FrontendURL", c.FrontendURL); err != nil {
			return err
		}
	}
	return nil
}

func validateBaseURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s must be set", name)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", name)
	}
	return nil
}

func (c Config) auditConfig(logger *slog.Logger) audit.Config {
	return audit.Config{
		Enabled:    c.Audit.Enabled,
		BufferSize: c.Audit.BufferSize,
		DropIfFull: c.Audit.DropIfFull,
		Logger:     logger,
	}
}

func (c Config) verificationLimiterConfig() limiters.EmailVerificationConfig {
	return limiters.EmailVerificationConfig{
		EnableIdentifierThrottle: c.EmailVerification.EnableIdentifierThrottle,
		EnableIPThrottle:         c.EmailVerification.EnableIPThrottle,
		Window:                   c.EmailVerification.RequestWindow,
		MaxRequests:              c.EmailVerification.MaxRequests,
	}
}

func (c Config) resetLimiterConfig() limiters.PasswordResetConfig {
	return limiters.PasswordResetConfig{
		EnableIdentifierThrottle: c.PasswordReset.EnableIdentifierThrottle,
		EnableIPThrottle:         c.PasswordReset.EnableIPThrottle,
		Window:                   c.PasswordReset.RequestWindow,
		MaxRequests:              c.PasswordReset.MaxRequests,
		MaxConfirms:              c.PasswordReset.MaxConfirms,
	}
}

func (c Config) loginLimiterConfig() limiters.LoginConfig {
	return limiters.LoginConfig{
		EnableIPThrottle: c.Security.EnableIPThrottle,
		MaxAttempts:      c.Security.MaxLoginAttempts,
		Cooldown:         c.Security.LoginCooldown,
	}
}
