package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/babymilooo/webster-backend/revocation"
	"github.com/babymilooo/webster-backend/token"
)

// ErrEmptyIdentity is returned when a pair is requested for an empty subject.
var ErrEmptyIdentity = errors.New("session identity is empty")

// Pair is the access/refresh token pair that makes up a session.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints and destroys sessions on top of a [token.Codec].
type Issuer struct {
	codec    *token.Codec
	registry revocation.Registry
	now      func() time.Time
}

// NewIssuer wires an issuer. A nil clock defaults to time.Now.
func NewIssuer(codec *token.Codec, registry revocation.Registry, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		codec:    codec,
		registry: registry,
		now:      now,
	}
}

// Login mints a fresh access and refresh token for identity.
func (i *Issuer) Login(identity string) (Pair, error) {
	if identity == "" {
		return Pair{}, ErrEmptyIdentity
	}

	payload := i.payload(identity)
	access, err := i.codec.Sign(token.Access, payload)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.codec.Sign(token.Refresh, payload)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh mints a new access token for identity and returns refresh unchanged.
// The refresh token is not rotated: its lifetime bounds the session.
func (i *Issuer) Refresh(identity, refresh string) (Pair, error) {
	if identity == "" {
		return Pair{}, ErrEmptyIdentity
	}

	access, err := i.codec.Sign(token.Access, i.payload(identity))
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout revokes refresh. An empty token is a no-op and revoking twice is
// harmless.
func (i *Issuer) Logout(ctx context.Context, refresh string) error {
	if refresh == "" || i.registry == nil {
		return nil
	}

	expiresAt, _ := token.ExpiresAt(refresh)
	if err := i.registry.Revoke(ctx, refresh, expiresAt); err != nil {
		return fmt.Errorf("%w: %v", token.ErrRevocationUnavailable, err)
	}
	return nil
}

func (i *Issuer) payload(identity string) token.Payload {
	return token.Payload{
		token.ClaimSubject:   identity,
		token.ClaimTimestamp: i.now().UnixMilli(),
	}
}
