// Package internaldefs holds the metric names shared by the exporters so the
// Prometheus and OTel views of the engine stay identical.
package internaldefs

import (
	webster "github.com/babymilooo/webster-backend"
)

type CounterDef struct {
	ID   webster.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   webster.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: webster.MetricLoginSuccess, Name: "webster_login_success_total", Help: "Successful logins."},
	{ID: webster.MetricLoginFailure, Name: "webster_login_failure_total", Help: "Failed logins."},
	{ID: webster.MetricLoginRateLimited, Name: "webster_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: webster.MetricRefreshSuccess, Name: "webster_refresh_success_total", Help: "Successful session refreshes."},
	{ID: webster.MetricRefreshFailure, Name: "webster_refresh_failure_total", Help: "Rejected session refreshes."},
	{ID: webster.MetricAuthenticateSuccess, Name: "webster_authenticate_success_total", Help: "Access tokens accepted."},
	{ID: webster.MetricAuthenticateFailure, Name: "webster_authenticate_failure_total", Help: "Access tokens rejected."},
	{ID: webster.MetricLogout, Name: "webster_logout_total", Help: "Logouts."},
	{ID: webster.MetricRevocationUnavailable, Name: "webster_revocation_unavailable_total", Help: "Requests failed closed because the revocation registry was unreachable."},
	{ID: webster.MetricAccountCreationSuccess, Name: "webster_account_creation_success_total", Help: "Created accounts."},
	{ID: webster.MetricAccountCreationDuplicate, Name: "webster_account_creation_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: webster.MetricAccountDeleted, Name: "webster_account_deleted_total", Help: "Deleted accounts."},
	{ID: webster.MetricProfileUpdated, Name: "webster_profile_updated_total", Help: "Profile updates."},
	{ID: webster.MetricPasswordChangeSuccess, Name: "webster_password_change_success_total", Help: "Password changes."},
	{ID: webster.MetricPasswordChangeInvalidOld, Name: "webster_password_change_invalid_old_total", Help: "Password changes rejected for a wrong current password."},
	{ID: webster.MetricPasswordResetRequest, Name: "webster_password_reset_request_total", Help: "Password reset emails requested."},
	{ID: webster.MetricPasswordResetConfirmSuccess, Name: "webster_password_reset_confirm_success_total", Help: "Completed password resets."},
	{ID: webster.MetricPasswordResetConfirmFailure, Name: "webster_password_reset_confirm_failure_total", Help: "Rejected password reset confirmations."},
	{ID: webster.MetricPasswordResetReplay, Name: "webster_password_reset_replay_total", Help: "Reset links presented after they were used."},
	{ID: webster.MetricEmailVerificationRequest, Name: "webster_email_verification_request_total", Help: "Verification emails requested."},
	{ID: webster.MetricEmailVerificationSuccess, Name: "webster_email_verification_success_total", Help: "Confirmed email addresses."},
	{ID: webster.MetricEmailVerificationFailure, Name: "webster_email_verification_failure_total", Help: "Rejected verification links."},
	{ID: webster.MetricMailFailure, Name: "webster_mail_failure_total", Help: "Emails the mailer failed to send."},
	{ID: webster.MetricRateLimitHit, Name: "webster_rate_limit_hit_total", Help: "Requests denied by any limiter."},
	{ID: webster.MetricTicketIssued, Name: "webster_ticket_issued_total", Help: "Action tickets issued."},
	{ID: webster.MetricTicketVerified, Name: "webster_ticket_verified_total", Help: "Action tickets accepted."},
}

var HistogramDefs = []HistogramDef{
	{ID: webster.MetricValidateLatency, Name: "webster_validate_latency_seconds", Help: "Access token verification latency."},
}

// HistogramBounds are the upper bounds in seconds of the engine's latency
// buckets. The last engine bucket is +Inf and has no entry.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each engine bucket, +Inf included, for
// exporters that flatten buckets into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// AuditDroppedName counts audit events the dispatcher discarded.
const (
	AuditDroppedName = "webster_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."
)

// NormalizeBuckets pads or truncates raw to the engine's bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// ApproxSum estimates the histogram sum from bucket upper bounds. Samples in
// the +Inf bucket count at the last finite bound.
func ApproxSum(raw [8]uint64) float64 {
	var sum float64
	for i, n := range raw {
		bound := HistogramBounds[len(HistogramBounds)-1]
		if i < len(HistogramBounds) {
			bound = HistogramBounds[i]
		}
		sum += float64(n) * bound
	}
	return sum
}
