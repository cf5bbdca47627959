package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/sessionkit"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets in a snapshot, +Inf included.
const BucketCount = len(sessionkit.HistogramBucketBounds) + 1

var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricIssueSuccess, Name: "sessionkit_issue_success_total", Help: "Token pairs issued with a stored refresh record."},
	{ID: sessionkit.MetricIssueFailure, Name: "sessionkit_issue_failure_total", Help: "Issue attempts that returned no token pair."},
	{ID: sessionkit.MetricRefreshSuccess, Name: "sessionkit_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: sessionkit.MetricRefreshFailure, Name: "sessionkit_refresh_failure_total", Help: "Rejected or failed refresh attempts."},
	{ID: sessionkit.MetricRefreshReplay, Name: "sessionkit_refresh_replay_total", Help: "Refresh tokens presented after their record was consumed, revoked or expired."},
	{ID: sessionkit.MetricFingerprintMismatch, Name: "sessionkit_fingerprint_mismatch_total", Help: "Refresh tokens whose fingerprint did not match the stored record."},
	{ID: sessionkit.MetricLogout, Name: "sessionkit_logout_total", Help: "Logout calls."},
	{ID: sessionkit.MetricLogoutInvalidToken, Name: "sessionkit_logout_invalid_token_total", Help: "Logout calls carrying an unusable refresh token."},
	{ID: sessionkit.MetricSignupSuccess, Name: "sessionkit_signup_success_total", Help: "Accounts created."},
	{ID: sessionkit.MetricSignupDuplicate, Name: "sessionkit_signup_duplicate_total", Help: "Signups rejected for a taken email or username."},
	{ID: sessionkit.MetricSigninSuccess, Name: "sessionkit_signin_success_total", Help: "Successful signins."},
	{ID: sessionkit.MetricSigninFailure, Name: "sessionkit_signin_failure_total", Help: "Failed signins."},
	{ID: sessionkit.MetricAccountDisabled, Name: "sessionkit_account_disabled_total", Help: "Requests rejected because the account is inactive."},
	{ID: sessionkit.MetricValidateFailure, Name: "sessionkit_validate_failure_total", Help: "Rejected access tokens."},
	{ID: sessionkit.MetricRateLimited, Name: "sessionkit_rate_limited_total", Help: "Requests denied by the rate limiter."},
	{ID: sessionkit.MetricRateLimitFailOpen, Name: "sessionkit_rate_limit_fail_open_total", Help: "Requests admitted because the rate limit store failed."},
	{ID: sessionkit.MetricStoreUnavailable, Name: "sessionkit_store_unavailable_total", Help: "Operations that failed on the revocation store."},
}

var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricValidateLatency, Name: "sessionkit_validate_latency_seconds", Help: "Access token validation latency."},
	{ID: sessionkit.MetricRefreshLatency, Name: "sessionkit_refresh_latency_seconds", Help: "Refresh rotation latency."},
}

// EventsDroppedName is the counter of lifecycle events lost to a full buffer.
const EventsDroppedName = "sessionkit_events_dropped_total"

// UpperBoundsSeconds returns the finite bucket bounds in seconds.
func UpperBoundsSeconds() []float64 {
	out := make([]float64, len(sessionkit.HistogramBucketBounds))
	for i, d := range sessionkit.HistogramBucketBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BoundSuffix returns a metric-name-safe label for bucket i, "inf" for the
// last one.
func BoundSuffix(i int) string {
	if i >= len(sessionkit.HistogramBucketBounds) {
		return "inf"
	}
	ms := sessionkit.HistogramBucketBounds[i].Milliseconds()
	return strconv.FormatInt(ms, 10) + "ms"
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
