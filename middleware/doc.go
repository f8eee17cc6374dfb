// Package middleware exposes the net/http adapters that put a webster.Engine
// in front of route handlers.
//
// # Guards
//
//   - [AccessGuard]: requires both session cookies and a valid access token.
//   - [OptionalIdentity]: attaches the principal when the access token is
//     valid and otherwise lets the request through anonymously.
//   - [RefreshGate]: runs after [AccessGuard] and re-mints the access token
//     from the refresh token on every request.
//
// Guards read cookies, call the engine, and inject [webster.Principal] and
// the raw [session.Pair] into the request context.
//
// # Plumbing
//
// [RequestID], [ClientIP], [Logging] and [Recover] are composed with [Chain].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; every decision is delegated to
// Engine.Authenticate and Engine.RotateAccess.
//
// # What this package must NOT do
//
//   - Parse or sign tokens directly.
//   - Access Redis or the identity store.
//   - Tell the client why a credential was rejected. Every guard failure is
//     the same 401 body.
package middleware
