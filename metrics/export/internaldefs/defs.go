package internaldefs

import (
	"github.com/sehatbridge/sehatauth"
)

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   sehatauth.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram to its exported name.
type HistogramDef struct {
	ID   sehatauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: sehatauth.MetricRegisterSuccess, Name: "sehatauth_register_success_total", Help: "Accounts registered."},
	{ID: sehatauth.MetricRegisterDuplicate, Name: "sehatauth_register_duplicate_total", Help: "Registrations rejected for an already registered email."},
	{ID: sehatauth.MetricRegisterInvalid, Name: "sehatauth_register_invalid_total", Help: "Registrations rejected by validation."},
	{ID: sehatauth.MetricLoginSuccess, Name: "sehatauth_login_success_total", Help: "Successful logins."},
	{ID: sehatauth.MetricLoginFailure, Name: "sehatauth_login_failure_total", Help: "Logins rejected for invalid credentials."},
	{ID: sehatauth.MetricLoginRateLimited, Name: "sehatauth_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: sehatauth.MetricOTPIssued, Name: "sehatauth_otp_issued_total", Help: "Password reset codes issued."},
	{ID: sehatauth.MetricOTPDeliveryFailed, Name: "sehatauth_otp_delivery_failed_total", Help: "Password reset codes that could not be delivered."},
	{ID: sehatauth.MetricOTPRequestRateLimited, Name: "sehatauth_otp_request_rate_limited_total", Help: "Reset code requests refused by the limiter."},
	{ID: sehatauth.MetricOTPVerifySuccess, Name: "sehatauth_otp_verify_success_total", Help: "Reset codes verified."},
	{ID: sehatauth.MetricOTPVerifyFailure, Name: "sehatauth_otp_verify_failure_total", Help: "Reset codes rejected as wrong or expired."},
	{ID: sehatauth.MetricOTPVerifyRateLimited, Name: "sehatauth_otp_verify_rate_limited_total", Help: "Reset code checks refused by the limiter."},
	{ID: sehatauth.MetricPasswordResetSuccess, Name: "sehatauth_password_reset_success_total", Help: "Completed password resets."},
	{ID: sehatauth.MetricPasswordResetFailure, Name: "sehatauth_password_reset_failure_total", Help: "Failed password resets."},
	{ID: sehatauth.MetricPasswordRehashed, Name: "sehatauth_password_rehashed_total", Help: "Password digests upgraded at login."},
	{ID: sehatauth.MetricExternalSignIn, Name: "sehatauth_external_sign_in_total", Help: "External identity sign-ins."},
	{ID: sehatauth.MetricExternalProvisioned, Name: "sehatauth_external_provisioned_total", Help: "Accounts created from an external identity."},
	{ID: sehatauth.MetricIntakeSubmitted, Name: "sehatauth_opd_registration_total", Help: "OPD registrations stored."},
	{ID: sehatauth.MetricIntakeFailed, Name: "sehatauth_opd_registration_failed_total", Help: "OPD registrations that failed after validation."},
	{ID: sehatauth.MetricTokenRejected, Name: "sehatauth_token_rejected_total", Help: "Session tokens rejected as invalid or expired."},
	{ID: sehatauth.MetricStoreUnavailable, Name: "sehatauth_store_unavailable_total", Help: "Operations failed by an unavailable backing store."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: sehatauth.MetricLoginLatency, Name: "sehatauth_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's
// latency buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
