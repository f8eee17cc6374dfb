// Package revocation tracks refresh tokens that must no longer be honored.
//
// Revocation is by exact token string: each distinct refresh token issued is
// tracked on its own, with no notion of a session family. [Memory] keeps the
// set in-process and never prunes it; [Redis] shares the set between
// instances and lets each entry expire together with the token it shadows.
package revocation

import (
	"context"
	"time"
)

// Checker is the read side consumed by token verification.
type Checker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Registry records and answers revocations. Implementations must be safe for
// concurrent Revoke and IsRevoked calls, and Revoke must be idempotent.
//
// expiresAt is the revoked token's own expiry. Implementations that prune
// use it to bound retention; a zero value means "unknown".
type Registry interface {
	Checker
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
}
