// Package webster is the session and account engine of the Webster backend:
// short-lived access tokens, long-lived refresh tokens carried as cookies, a
// revocation registry for logged-out refresh tokens, and the single-use
// email-verification and password-reset flows.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// webster is the composition root. It wires [token.Codec],
// [revocation.Registry] and [session.Issuer] together with an
// [IdentityStore], a [password.Hasher] and a [Mailer]. HTTP concerns
// (guards, cookies on the wire, status codes) live in the middleware and
// internal/httpapi packages; throttling and audit delivery live under
// internal/.
//
// # What this package must NOT do
//
//   - Import middleware, storage or any package that re-imports webster.
//   - Expose redis clients or limiter internals in its public API.
//   - Reveal through its return values whether an email is registered in
//     the two send-mail flows.
package webster
