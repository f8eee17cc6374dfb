package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/babymilooo/webster-backend/revocation"
	"github.com/babymilooo/webster-backend/token"
)

func newTestIssuer(t *testing.T) (*Issuer, *token.Codec, *revocation.Memory) {
	t.Helper()

	reg := revocation.NewMemory()
	codec, err := token.NewCodec(token.Config{
		Kinds: map[token.Kind]token.KindConfig{
			token.Access:  {Secret: []byte("access-secret"), Expiry: time.Minute},
			token.Refresh: {Secret: []byte("refresh-secret"), Expiry: time.Hour},
		},
	}, reg)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return NewIssuer(codec, reg, nil), codec, reg
}

func TestLoginMintsVerifiablePair(t *testing.T) {
	iss, codec, _ := newTestIssuer(t)
	ctx := context.Background()

	pair, err := iss.Login("user-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	for kind, tok := range map[token.Kind]string{token.Access: pair.AccessToken, token.Refresh: pair.RefreshToken} {
		p, err := codec.Verify(ctx, kind, tok)
		if err != nil {
			t.Fatalf("verify %s failed: %v", kind, err)
		}
		if sub, _ := p.Subject(); sub != "user-1" {
			t.Fatalf("%s subject = %q", kind, sub)
		}
		if _, ok := p[token.ClaimTimestamp]; !ok {
			t.Fatalf("%s token missing timestamp", kind)
		}
	}
}

func TestLoginRejectsEmptyIdentity(t *testing.T) {
	iss, _, _ := newTestIssuer(t)
	if _, err := iss.Login(""); !errors.Is(err, ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
}

func TestRefreshReusesRefreshToken(t *testing.T) {
	iss, codec, _ := newTestIssuer(t)

	first, err := iss.Login("user-1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	next, err := iss.Refresh("user-1", first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if next.RefreshToken != first.RefreshToken {
		t.Fatal("refresh token must be returned verbatim")
	}
	if next.AccessToken == first.AccessToken {
		t.Fatal("expected a new access token")
	}
	if _, err := codec.Verify(context.Background(), token.Access, next.AccessToken); err != nil {
		t.Fatalf("new access token does not verify: %v", err)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	iss, codec, reg := newTestIssuer(t)
	ctx := context.Background()

	pair, _ := iss.Login("user-1")
	if err := iss.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if err := iss.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected one revoked token, got %d", reg.Len())
	}

	if _, err := codec.Verify(ctx, token.Refresh, pair.RefreshToken); !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("expected ErrRevoked after logout, got %v", err)
	}
	// The access token stays valid until it expires.
	if _, err := codec.Verify(ctx, token.Access, pair.AccessToken); err != nil {
		t.Fatalf("access token should outlive logout: %v", err)
	}
}

func TestLogoutEmptyTokenIsNoop(t *testing.T) {
	iss, _, reg := newTestIssuer(t)
	if err := iss.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if reg.Len() != 0 {
		t.Fatal("empty token must not be recorded")
	}
}
