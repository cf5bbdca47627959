package sessionkit

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricIssueSuccess counts token pairs issued with a stored record.
	MetricIssueSuccess MetricID = iota
	// MetricIssueFailure counts issue attempts that returned no pair.
	MetricIssueFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshReplay counts refresh tokens presented after their
	// record was already consumed, revoked or expired.
	MetricRefreshReplay
	MetricFingerprintMismatch
	MetricLogout
	// MetricLogoutInvalidToken counts logouts that carried an unusable token.
	MetricLogoutInvalidToken
	MetricSignupSuccess
	MetricSignupDuplicate
	MetricSigninSuccess
	MetricSigninFailure
	MetricAccountDisabled
	MetricValidateFailure
	MetricRateLimited
	// MetricRateLimitFailOpen counts requests admitted because the counter
	// store could not be reached.
	MetricRateLimitFailOpen
	MetricStoreUnavailable
	MetricValidateLatency
	MetricRefreshLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricIssueSuccess:        "issue_success",
	MetricIssueFailure:        "issue_failure",
	MetricRefreshSuccess:      "refresh_success",
	MetricRefreshFailure:      "refresh_failure",
	MetricRefreshReplay:       "refresh_replay",
	MetricFingerprintMismatch: "fingerprint_mismatch",
	MetricLogout:              "logout",
	MetricLogoutInvalidToken:  "logout_invalid_token",
	MetricSignupSuccess:       "signup_success",
	MetricSignupDuplicate:     "signup_duplicate",
	MetricSigninSuccess:       "signin_success",
	MetricSigninFailure:       "signin_failure",
	MetricAccountDisabled:     "account_disabled",
	MetricValidateFailure:     "validate_failure",
	MetricRateLimited:         "rate_limited",
	MetricRateLimitFailOpen:   "rate_limit_fail_open",
	MetricStoreUnavailable:    "store_unavailable",
	MetricValidateLatency:     "validate_latency",
	MetricRefreshLatency:      "refresh_latency",
}

// String returns the snake_case metric name used by exporters.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the inclusive upper bounds of the latency
// histogram buckets. The last bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and latency histograms.
//
// A nil or disabled *Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only latency metrics keep
// histograms; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || !isLatencyMetric(id) {
		return
	}
	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histograms.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if isLatencyMetric(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range [...]MetricID{MetricValidateLatency, MetricRefreshLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}
	return s
}

func isLatencyMetric(id MetricID) bool {
	return id == MetricValidateLatency || id == MetricRefreshLatency
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
