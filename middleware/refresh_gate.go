package middleware

import (
	"context"
	"errors"
	"net/http"

	webster "github.com/babymilooo/webster-backend"
	"github.com/babymilooo/webster-backend/internal/apierror"
	"github.com/babymilooo/webster-backend/session"
)

// AccessRotator re-mints access tokens. *webster.Engine implements it.
type AccessRotator interface {
	RotateAccess(ctx context.Context, userID, refreshToken string) (session.Pair, error)
}

// RefreshGate must run after [AccessGuard]. It mints a new access token from
// the request's refresh token, writes both cookies and continues with the
// new pair in context.
//
// A request without a guard principal is a wiring bug and is answered with
// 500. A refresh token that no longer verifies yields 401; a mint failure is
// a server fault.
func RefreshGate(rot AccessRotator, cookies session.Cookies) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			pair, hasPair := CredentialsFromContext(r.Context())
			if !ok || !hasPair || rot == nil {
				apierror.WriteError(w, r, errors.New("refresh gate without access guard"))
				return
			}

			fresh, err := rot.RotateAccess(r.Context(), principal.UserID, pair.RefreshToken)
			if err != nil {
				apierror.WriteError(w, r, gateError(err))
				return
			}

			cookies.Write(w, fresh)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal, fresh)))
		})
	}
}

// gateError keeps verification failures uniform and lets server faults
// through unchanged.
func gateError(err error) error {
	switch {
	case errors.Is(err, webster.ErrRevocationUnavailable),
		errors.Is(err, webster.ErrSessionCreationFailed),
		errors.Is(err, webster.ErrEngineNotReady):
		return err
	default:
		return webster.ErrUnauthorized
	}
}
