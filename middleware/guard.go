package middleware

import (
	"context"
	"log/slog"
	"net/http"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/internal/apierror"
	"github.com/babymilooo/webster-backend/internal/logctx"
	"github.com/babymilooo/webster-backend/session"
)

// Authenticator verifies access tokens. *webster.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (webster.Principal, error)
}

type principalContextKey struct{}
type credentialsContextKey struct{}

// PrincipalFromContext returns the principal attached by [AccessGuard] or
// [OptionalIdentity].
func PrincipalFromContext(ctx context.Context) (webster.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(webster.Principal)
	return p, ok
}

// CredentialsFromContext returns the raw cookie pair attached by [AccessGuard].
func CredentialsFromContext(ctx context.Context) (session.Pair, bool) {
	p, ok := ctx.Value(credentialsContextKey{}).(session.Pair)
	return p, ok
}

// WithPrincipal attaches p and pair to ctx the same way [AccessGuard] does.
func WithPrincipal(ctx context.Context, p webster.Principal, pair session.Pair) context.Context {
	ctx = context.WithValue(ctx, principalContextKey{}, p)
	return context.WithValue(ctx, credentialsContextKey{}, pair)
}

// AccessGuard rejects any request that does not carry both session cookies
// and a valid access token. A panic while checking is answered with 401 as
// well; the request never reaches next half-authenticated.
func AccessGuard(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, pair, ok := checkAccess(r, auth)
			if !ok {
				apierror.WriteError(w, r, webster.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal, pair)))
		})
	}
}

// OptionalIdentity attaches the principal when the request carries a valid
// session and passes it through untouched otherwise.
func OptionalIdentity(auth Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal, pair, ok := checkAccess(r, auth); ok {
				r = r.WithContext(WithPrincipal(r.Context(), principal, pair))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkAccess(r *http.Request, auth Authenticator) (principal webster.Principal, pair session.Pair, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logctx.From(r.Context()).LogAttrs(r.Context(), slog.LevelError, "panic in access guard",
				slog.String("path", r.URL.Path),
				slog.Any("reason", rec),
			)
			principal, pair, ok = webster.Principal{}, session.Pair{}, false
		}
	}()

	if auth == nil {
		return webster.Principal{}, session.Pair{}, false
	}
	creds := session.ExtractCredentials(r, session.RequireBoth)
	if creds == nil {
		return webster.Principal{}, session.Pair{}, false
	}
	principal, err := auth.Authenticate(r.Context(), creds.AccessToken)
	if err != nil {
		return webster.Principal{}, session.Pair{}, false
	}
	return principal, *creds, true
}
