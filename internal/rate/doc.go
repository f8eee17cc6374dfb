// Package rate provides the Redis fixed-window counter that the domain limiters
// in internal/limiters are built from.
//
// # Window semantics
//
// INCR on every hit, EXPIRE on the first hit of a window. A window therefore
// starts at the first counted event and the key disappears once it closes.
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in internal/limiters).
//   - Store anything but integer counters.
package rate
