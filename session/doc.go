// Package session mints, rotates and destroys cookie-borne token pairs.
//
// # Session shape
//
// A session is a [Pair] of an access token and a refresh token, carried as two
// independent cookies named accessToken and refreshToken. [Issuer.Login] mints a
// fresh pair, [Issuer.Refresh] mints a new access token and hands the refresh token
// back verbatim, and [Issuer.Logout] places the refresh token in the revocation
// registry.
//
// # Cookies
//
// [Cookies] writes and clears both cookies from one [CookieConfig]. Browsers only
// drop a cookie when the clearing Set-Cookie carries the same path and domain as the
// one that set it, so both directions share the same attributes.
//
// # Architecture boundaries
//
// This package owns the pair lifecycle and its HTTP transport. It does NOT look up
// identities, compare passwords, or decide whether a request is authorized.
//
// # What this package must NOT do
//
//   - Import webster or middleware (no upward imports).
//   - Persist sessions; state lives in the tokens and the revocation registry.
package session
