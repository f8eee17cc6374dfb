package token

import "errors"

var (
	// ErrConfig reports a kind without a usable secret or expiry.
	ErrConfig = errors.New("token kind not configured")
	// ErrInvalidSignature covers forged, tampered, wrong-kind and unverifiable tokens.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired reports a well-formed token past its exp claim.
	ErrExpired = errors.New("token expired")
	// ErrRevoked reports a refresh token present in the revocation registry.
	ErrRevoked = errors.New("token revoked")
	// ErrMalformedPayload reports a token whose payload is not a claim mapping.
	ErrMalformedPayload = errors.New("token payload malformed")
	// ErrRevocationUnavailable reports a revocation backend failure; verification fails closed.
	ErrRevocationUnavailable = errors.New("revocation backend unavailable")
)
