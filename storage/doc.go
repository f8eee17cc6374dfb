// Package storage holds the [webster.IdentityStore] implementations.
//
//   - memory: process-local map, for tests and single-node development.
//   - postgres: pgx pool over the identities table (schema embedded and
//     applied by Migrate).
//   - mongo: the users collection layout of the original Webster service,
//     so existing documents keep working.
//
// Every implementation reports a lookup miss as [webster.ErrUserNotFound]
// and a duplicate email as [webster.ErrAccountExists], wrapped with the
// failing operation name. Emails are stored exactly as given; the engine
// lower-cases them before any call.
package storage
