// Package audit delivers security events (logins, refreshes, logouts, email
// flows, rate-limit hits) to a pluggable Sink off the request path.
//
// The engine decides which events exist. This package only buffers them and
// hands them to the sink one at a time, counting what it had to drop.
package audit
