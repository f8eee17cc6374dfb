// Package config loads the process configuration of the webster-auth
// service from a YAML file and the environment, with a .env file applied
// first for local development.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/mail"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the root configuration. Values are resolved in this order:
//  1. explicit path (the --config flag);
//  2. path in CONFIG_PATH;
//  3. environment only.
//
// Environment variables always override file values. A .env file in the
// working directory is loaded first and never overrides variables that are
// already set.
type Config struct {
	Env         string `yaml:"env" env:"ENV" env-default:"local"`
	FrontendURL string `yaml:"frontend_url" env:"FRONTEND_URL" env-required:"true"`
	BackendURL  string `yaml:"backend_url" env:"BACKEND_URL" env-required:"true"`

	HTTP    HTTPConfig    `yaml:"http"`
	Tokens  TokensConfig  `yaml:"tokens"`
	Store   StoreConfig   `yaml:"store"`
	Redis   RedisConfig   `yaml:"redis"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Limits  LimitsConfig  `yaml:"limits"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"8000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy   bool   `yaml:"trust_proxy" env:"TRUST_PROXY" env-default:"false"`
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN"`
	CookieSecure bool   `yaml:"cookie_secure" env:"COOKIE_SECURE" env-default:"true"`
	// CookieSameSite is one of none, lax or strict. None requires CookieSecure.
	CookieSameSite string `yaml:"cookie_samesite" env:"COOKIE_SAMESITE" env-default:"none"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// SameSite parses CookieSameSite.
func (h HTTPConfig) SameSite() (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(h.CookieSameSite)) {
	case "", "none":
		return http.SameSiteNoneMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	default:
		return 0, fmt.Errorf("config: unknown COOKIE_SAMESITE %q", h.CookieSameSite)
	}
}

// TokensConfig holds one secret and lifetime per token kind. Verification,
// password reset and ticket secrets may be empty when the matching feature
// is not used.
type TokensConfig struct {
	AccessSecret        string `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret       string `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	VerificationSecret  string `yaml:"verification_secret" env:"VERIFICATION_TOKEN_SECRET"`
	PasswordResetSecret string `yaml:"password_reset_secret" env:"PASSWORD_RESET_TOKEN_SECRET"`
	TicketSecret        string `yaml:"ticket_secret" env:"TICKET_TOKEN_SECRET"`

	AccessTTL        time.Duration `yaml:"access_ttl" env:"ACCESS_TOKEN_EXPIRES_IN" env-default:"15m"`
	RefreshTTL       time.Duration `yaml:"refresh_ttl" env:"REFRESH_TOKEN_EXPIRES_IN" env-default:"720h"`
	VerificationTTL  time.Duration `yaml:"verification_ttl" env:"VERIFICATION_TOKEN_EXPIRES_IN" env-default:"24h"`
	PasswordResetTTL time.Duration `yaml:"password_reset_ttl" env:"PASSWORD_RESET_TOKEN_EXPIRES_IN" env-default:"1h"`
	TicketTTL        time.Duration `yaml:"ticket_ttl" env:"TICKET_TOKEN_EXPIRES_IN" env-default:"10m"`

	Issuer string        `yaml:"issuer" env:"TOKEN_ISSUER" env-default:"webster"`
	Leeway time.Duration `yaml:"leeway" env:"TOKEN_LEEWAY" env-default:"0s"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver" env:"STORE_DRIVER" env-default:"mongo"`
	MongoURI    string `yaml:"mongodb_uri" env:"MONGODB_URI"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	// Migrate applies the embedded Postgres schema on start.
	Migrate bool `yaml:"migrate" env:"DB_MIGRATE" env-default:"true"`
}

// RedisConfig is optional. Without it revocations stay in process memory
// and request throttling is off.
type RedisConfig struct {
	URL    string `yaml:"url" env:"REDIS_URL"`
	Prefix string `yaml:"prefix" env:"REDIS_PREFIX" env-default:"wrv"`
}

// SMTPConfig configures outgoing mail. An empty Host logs messages instead
// of sending them, which only Validate allows outside production.
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"smtp.gmail.com"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"GMAIL_USERNAME"`
	Password string `yaml:"password" env:"GMAIL_APP_PASSWORD"`
	From     string `yaml:"from" env:"MAIL_FROM"`
}

type LimitsConfig struct {
	MaxLoginAttempts  int           `yaml:"max_login_attempts" env:"MAX_LOGIN_ATTEMPTS" env-default:"5"`
	LoginCooldown     time.Duration `yaml:"login_cooldown" env:"LOGIN_COOLDOWN" env-default:"15m"`
	MailWindow        time.Duration `yaml:"mail_window" env:"MAIL_REQUEST_WINDOW" env-default:"15m"`
	MaxMailRequests   int           `yaml:"max_mail_requests" env:"MAX_MAIL_REQUESTS" env-default:"3"`
	MaxResetConfirms  int           `yaml:"max_reset_confirms" env:"MAX_RESET_CONFIRMS" env-default:"10"`
	EnableIPThrottles bool          `yaml:"enable_ip_throttles" env:"ENABLE_IP_THROTTLES" env-default:"true"`
}

type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUDIT_ENABLED" env-default:"false"`
	BufferSize int  `yaml:"buffer_size" env:"AUDIT_BUFFER" env-default:"1024"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "prod") || strings.EqualFold(c.Env, "production")
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads .env, then the YAML file (explicit path or CONFIG_PATH) with
// the environment overlaid, or the environment alone. The result is
// validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH or env vars: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the cross-field rules cleanenv cannot express.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Tokens.AccessSecret) == "" || strings.TrimSpace(c.Tokens.RefreshSecret) == "" {
		return errors.New("config: access and refresh token secrets are required")
	}
	switch c.Store.Driver {
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("config: MONGODB_URI is required for the mongo store")
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres store")
		}
	case DriverMemory:
		if c.IsProduction() {
			return errors.New("config: the memory store is not allowed in production")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	sameSite, err := c.HTTP.SameSite()
	if err != nil {
		return err
	}
	if sameSite == http.SameSiteNoneMode && !c.HTTP.CookieSecure {
		return errors.New("config: COOKIE_SAMESITE=none requires COOKIE_SECURE")
	}
	if c.IsProduction() && c.SMTP.Username == "" {
		return errors.New("config: GMAIL_USERNAME is required in production")
	}
	return nil
}

// MailEnabled reports whether SMTP delivery is configured.
func (c *Config) MailEnabled() bool {
	return c.SMTP.Host != "" && c.SMTP.Username != ""
}

// SMTPSender returns the gomail-backed sender configuration.
func (c *Config) SMTPSender() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
	}
}

// Engine translates the process configuration into the engine's. Email
// flows are enabled only when their secret is set.
func (c *Config) Engine() webster.Config {
	cfg := webster.DefaultConfig()
	cfg.FrontendURL = c.FrontendURL

	cfg.Tokens.AccessSecret = []byte(c.Tokens.AccessSecret)
	cfg.Tokens.RefreshSecret = []byte(c.Tokens.RefreshSecret)
	cfg.Tokens.VerificationSecret = secretBytes(c.Tokens.VerificationSecret)
	cfg.Tokens.PasswordResetSecret = secretBytes(c.Tokens.PasswordResetSecret)
	cfg.Tokens.TicketSecret = secretBytes(c.Tokens.TicketSecret)
	cfg.Tokens.AccessTTL = c.Tokens.AccessTTL
	cfg.Tokens.RefreshTTL = c.Tokens.RefreshTTL
	cfg.Tokens.VerificationTTL = c.Tokens.VerificationTTL
	cfg.Tokens.PasswordResetTTL = c.Tokens.PasswordResetTTL
	cfg.Tokens.TicketTTL = c.Tokens.TicketTTL
	cfg.Tokens.Issuer = c.Tokens.Issuer
	cfg.Tokens.Leeway = c.Tokens.Leeway

	cfg.Cookie.Domain = c.HTTP.CookieDomain
	cfg.Cookie.Secure = c.HTTP.CookieSecure
	if sameSite, err := c.HTTP.SameSite(); err == nil {
		cfg.Cookie.SameSite = sameSite
	}
	cfg.Cookie.MaxAge = c.Tokens.RefreshTTL

	cfg.EmailVerification.Enabled = c.Tokens.VerificationSecret != ""
	cfg.EmailVerification.LinkBaseURL = c.BackendURL
	cfg.EmailVerification.EnableIPThrottle = c.Limits.EnableIPThrottles
	cfg.EmailVerification.RequestWindow = c.Limits.MailWindow
	cfg.EmailVerification.MaxRequests = c.Limits.MaxMailRequests

	cfg.PasswordReset.Enabled = c.Tokens.PasswordResetSecret != ""
	cfg.PasswordReset.LinkBaseURL = c.BackendURL
	cfg.PasswordReset.EnableIPThrottle = c.Limits.EnableIPThrottles
	cfg.PasswordReset.RequestWindow = c.Limits.MailWindow
	cfg.PasswordReset.MaxRequests = c.Limits.MaxMailRequests
	cfg.PasswordReset.MaxConfirms = c.Limits.MaxResetConfirms

	cfg.Security.EnableIPThrottle = c.Limits.EnableIPThrottles
	cfg.Security.MaxLoginAttempts = c.Limits.MaxLoginAttempts
	cfg.Security.LoginCooldown = c.Limits.LoginCooldown

	cfg.Revocation.RedisPrefix = c.Redis.Prefix
	cfg.Revocation.FallbackTTL = c.Tokens.RefreshTTL

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = c.Metrics.Enabled
	return cfg
}

func secretBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
