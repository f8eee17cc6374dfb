package token

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies what a token authorizes. The set is closed.
type Kind uint8

const (
	// Access proves identity for a single request window.
	Access Kind = iota + 1
	// Refresh mints new access tokens without re-authentication.
	Refresh
	// EmailVerification confirms ownership of an email address.
	EmailVerification
	// PasswordReset authorizes exactly one password change.
	PasswordReset
	// ActionTicket authorizes a one-off action (e.g. a printed QR ticket).
	ActionTicket
)

var kindNames = [...]string{
	Access:            "access",
	Refresh:           "refresh",
	EmailVerification: "email_verification",
	PasswordReset:     "password_reset",
	ActionTicket:      "action_ticket",
}

// Kinds lists every supported kind in declaration order.
func Kinds() []Kind {
	return []Kind{Access, Refresh, EmailVerification, PasswordReset, ActionTicket}
}

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Access && k <= ActionTicket
}

// ParseKind resolves the wire name of a kind.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, k := range Kinds() {
		if kindNames[k] == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown token kind %q", s)
}

// KindConfig is the signing configuration of a single kind.
//
// A zero Expiry produces tokens without an exp claim. Access and Refresh
// must always carry an expiry.
type KindConfig struct {
	Secret []byte
	Expiry time.Duration
}

// Config holds the per-kind configuration consumed by [NewCodec].
type Config struct {
	Kinds  map[Kind]KindConfig
	Issuer string
	Leeway time.Duration
}

func (c Config) clone() Config {
	out := Config{
		Kinds:  make(map[Kind]KindConfig, len(c.Kinds)),
		Issuer: c.Issuer,
		Leeway: c.Leeway,
	}
	for k, kc := range c.Kinds {
		secret := make([]byte, len(kc.Secret))
		copy(secret, kc.Secret)
		out.Kinds[k] = KindConfig{Secret: secret, Expiry: kc.Expiry}
	}
	return out
}
