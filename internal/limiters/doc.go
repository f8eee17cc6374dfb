// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate fixed-window counter.
//
// # Limiters
//
//   - [EmailVerificationLimiter]: per-email + per-IP throttle for verification mails.
//   - [PasswordResetLimiter]: per-email + per-IP for reset mails, per-IP for redemption.
//   - [LoginLimiter]: failed-login budget per email and optionally per IP.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import webster or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting; the engine decides consequences.
package limiters
