package internaldefs

import (
	"github.com/MrEthical07/authflow"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Logins that stored a session."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Failed login attempts."},
	{ID: authflow.MetricRegisterSuccess, Name: "authflow_register_success_total", Help: "Accepted registration submissions."},
	{ID: authflow.MetricRegisterFailure, Name: "authflow_register_failure_total", Help: "Rejected registration submissions."},
	{ID: authflow.MetricRegistrationComplete, Name: "authflow_registration_complete_total", Help: "Registrations completed with an action token."},
	{ID: authflow.MetricOTPVerifySuccess, Name: "authflow_otp_verify_success_total", Help: "OTP verifications that returned an action token."},
	{ID: authflow.MetricOTPVerifyFailure, Name: "authflow_otp_verify_failure_total", Help: "Failed OTP verifications."},
	{ID: authflow.MetricPasswordResetRequest, Name: "authflow_password_reset_request_total", Help: "Password reset OTP requests."},
	{ID: authflow.MetricPasswordResetComplete, Name: "authflow_password_reset_complete_total", Help: "Completed password resets."},
	{ID: authflow.MetricRefreshSuccess, Name: "authflow_refresh_success_total", Help: "Refreshes that stored a new access token."},
	{ID: authflow.MetricRefreshFailure, Name: "authflow_refresh_failure_total", Help: "Failed refreshes."},
	{ID: authflow.MetricRefreshDeduplicated, Name: "authflow_refresh_deduplicated_total", Help: "Queued refreshes served by a refresh that finished while they waited."},
	{ID: authflow.MetricProfileRefresh, Name: "authflow_profile_refresh_total", Help: "Profile fetches merged into the stored session."},
	{ID: authflow.MetricSessionValidated, Name: "authflow_session_validated_total", Help: "Sessions confirmed by the server."},
	{ID: authflow.MetricSessionExpired, Name: "authflow_session_expired_total", Help: "Sessions rejected locally as expired."},
	{ID: authflow.MetricLogout, Name: "authflow_logout_total", Help: "Logouts."},
	{ID: authflow.MetricRateLimitHit, Name: "authflow_rate_limit_hit_total", Help: "Attempts denied by the local limiter."},
	{ID: authflow.MetricTransportRetry, Name: "authflow_transport_retry_total", Help: "Retried transport attempts."},
	{ID: authflow.MetricSessionReadStrict, Name: "authflow_session_read_strict_total", Help: "Stored sessions read through the strict schema."},
	{ID: authflow.MetricSessionReadLegacy, Name: "authflow_session_read_legacy_total", Help: "Stored sessions recovered from a legacy format."},
	{ID: authflow.MetricSessionReadDiscarded, Name: "authflow_session_read_discarded_total", Help: "Stored values discarded as malformed."},
}

// HistogramDefs lists every histogram in exposition order.
var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricGatewayLatency, Name: "authflow_gateway_latency_seconds", Help: "Gateway request latency, retries included."},
}

// HistogramBounds are the upper bucket bounds in seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds spelled for instrument names.
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

// AuditDroppedName is the counter for audit events dropped under backpressure.
const (
	AuditDroppedName = "authflow_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped under dispatcher backpressure."
)

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the running totals
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
