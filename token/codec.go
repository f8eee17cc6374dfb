package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/babymilooo/webster-backend/revocation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Reserved claim names. Callers may not override them through a payload.
const (
	ClaimSubject        = "id"
	ClaimTimestamp      = "timestamp"
	ClaimPasswordAnchor = "pwh"
	ClaimKind           = "knd"
	ClaimTokenID        = "jti"
)

const maxLeeway = 2 * time.Minute

// Option customizes a [Codec].
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp stamping and
// expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec signs and verifies tokens for every configured [Kind].
//
// Codec is immutable after construction and safe for concurrent use as long
// as the revocation checker is.
type Codec struct {
	config      Config
	revocations revocation.Checker
	now         func() time.Time
}

// NewCodec validates cfg and returns a codec. Access and Refresh must be
// configured with a secret and a positive expiry; the remaining kinds are
// optional and fail with [ErrConfig] when used without configuration.
func NewCodec(cfg Config, revocations revocation.Checker, opts ...Option) (*Codec, error) {
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, fmt.Errorf("%w: leeway must be within [0, %s]", ErrConfig, maxLeeway)
	}
	for kind, kc := range cfg.Kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrConfig, kind)
		}
		if len(kc.Secret) == 0 {
			return nil, fmt.Errorf("%w: %s secret is empty", ErrConfig, kind)
		}
		if kc.Expiry < 0 {
			return nil, fmt.Errorf("%w: %s expiry is negative", ErrConfig, kind)
		}
	}
	for _, kind := range []Kind{Access, Refresh} {
		kc, ok := cfg.Kinds[kind]
		if !ok {
			return nil, fmt.Errorf("%w: %s secret not set", ErrConfig, kind)
		}
		if kc.Expiry <= 0 {
			return nil, fmt.Errorf("%w: %s requires an expiry", ErrConfig, kind)
		}
	}

	c := &Codec{
		config:      cfg.clone(),
		revocations: revocations,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Configured reports whether kind has a signing secret.
func (c *Codec) Configured(kind Kind) bool {
	_, err := c.kindConfig(kind)
	return err == nil
}

// Expiry returns the configured lifetime of kind (zero when non-expiring).
func (c *Codec) Expiry(kind Kind) time.Duration {
	kc, err := c.kindConfig(kind)
	if err != nil {
		return 0
	}
	return kc.Expiry
}

// Sign mints a token of the given kind carrying payload. Reserved claims in
// payload are overwritten.
func (c *Codec) Sign(kind Kind, payload Payload) (string, error) {
	kc, err := c.kindConfig(kind)
	if err != nil {
		return "", err
	}

	now := c.now()
	claims := make(jwt.MapClaims, len(payload)+5)
	for k, v := range payload {
		claims[k] = v
	}
	claims[ClaimKind] = kind.String()
	claims[ClaimTokenID] = uuid.NewString()
	claims["iat"] = now.Unix()
	if kc.Expiry > 0 {
		claims["exp"] = now.Add(kc.Expiry).Unix()
	} else {
		delete(claims, "exp")
	}
	if c.config.Issuer != "" {
		claims["iss"] = c.config.Issuer
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(kc.Secret)
}

// Verify checks tokenStr against kind and returns its payload.
//
// Refresh tokens are looked up in the revocation registry before any
// cryptographic work, so a revoked token short-circuits with [ErrRevoked].
func (c *Codec) Verify(ctx context.Context, kind Kind, tokenStr string) (Payload, error) {
	if kind == Refresh && c.revocations != nil {
		revoked, err := c.revocations.IsRevoked(ctx, tokenStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	kc, err := c.kindConfig(kind)
	if err != nil {
		return nil, err
	}

	claims := &payloadClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	_, err = parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return kc.Secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.values == nil {
		return nil, ErrMalformedPayload
	}

	if err := c.validator(kc).Validate(claims.values); err != nil {
		return nil, classify(err)
	}
	if got, _ := claims.values[ClaimKind].(string); got != kind.String() {
		return nil, fmt.Errorf("%w: token issued for %q", ErrInvalidSignature, got)
	}

	return Payload(claims.values), nil
}

// ExpiresAt reads the exp claim without verifying the signature. It is only
// suitable for sizing bookkeeping such as revocation TTLs.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (c *Codec) kindConfig(kind Kind) (KindConfig, error) {
	if !kind.Valid() {
		return KindConfig{}, fmt.Errorf("%w: %s", ErrConfig, kind)
	}
	kc, ok := c.config.Kinds[kind]
	if !ok || len(kc.Secret) == 0 {
		return KindConfig{}, fmt.Errorf("%w: %s secret not set", ErrConfig, kind)
	}
	return kc, nil
}

func (c *Codec) validator(kc KindConfig) *jwt.Validator {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuedAt(),
	}
	if c.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(c.config.Leeway))
	}
	if kc.Expiry > 0 {
		opts = append(opts, jwt.WithExpirationRequired())
	}
	if c.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.config.Issuer))
	}
	return jwt.NewValidator(opts...)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
}

// payloadClaims accepts any JSON payload during parsing so that a
// non-object payload is reported as malformed only after the signature
// has been checked.
type payloadClaims struct {
	values jwt.MapClaims
}

func (p *payloadClaims) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		p.values = nil
		return nil
	}
	p.values = m
	return nil
}

func (p *payloadClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return p.values.GetExpirationTime()
}

func (p *payloadClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return p.values.GetIssuedAt()
}

func (p *payloadClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return p.values.GetNotBefore()
}

func (p *payloadClaims) GetIssuer() (string, error) {
	return p.values.GetIssuer()
}

func (p *payloadClaims) GetSubject() (string, error) {
	return p.values.GetSubject()
}

func (p *payloadClaims) GetAudience() (jwt.ClaimStrings, error) {
	return p.values.GetAudience()
}
