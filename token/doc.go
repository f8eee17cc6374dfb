// Package token signs and verifies the self-contained credentials used by the
// session lifecycle: access and refresh tokens, plus the single-use kinds
// (email verification, password reset, action tickets).
//
// # Kinds
//
// Every [Kind] maps to exactly one [KindConfig] (secret + optional expiry).
// The kind is also written into the token itself, so a token minted for one
// kind never verifies as another even when two kinds share a secret.
//
// # Architecture boundaries
//
// This package owns the kind→config lookup and the mapping of signature
// library failures onto a small error taxonomy ([ErrInvalidSignature],
// [ErrExpired], [ErrRevoked], [ErrMalformedPayload], [ErrConfig]). It does NOT
// write cookies, look up users, or decide HTTP status codes.
//
// # What this package must NOT do
//
//   - Import webster, session, or middleware (no upward imports).
//   - Store revocation state itself; it only consults a [revocation.Checker].
package token
