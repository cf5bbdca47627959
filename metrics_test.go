package sessionkit

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricRefreshSuccess)
	m.Inc(MetricRefreshSuccess)
	m.Inc(MetricRateLimited)

	snap := m.Snapshot()
	if snap.Counters[MetricRefreshSuccess] != 2 {
		t.Fatalf("refresh_success = %d", snap.Counters[MetricRefreshSuccess])
	}
	if snap.Counters[MetricRateLimited] != 1 {
		t.Fatalf("rate_limited = %d", snap.Counters[MetricRateLimited])
	}
	if _, ok := snap.Counters[MetricValidateLatency]; ok {
		t.Fatal("latency ids must not appear as counters")
	}
	if len(snap.Histograms) != 0 {
		t.Fatal("histograms disabled")
	}
}

func TestMetricsDisabledIgnoresUpdates(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLogout)
	m.Observe(MetricValidateLatency, time.Millisecond)
	if m.Value(MetricLogout) != 0 {
		t.Fatal("disabled metrics counted")
	}
	if m.LatencyEnabled() {
		t.Fatal("latency requires metrics enabled")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLogout)
	if nilMetrics.Enabled() || len(nilMetrics.Snapshot().Counters) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricValidateLatency, 2*time.Millisecond)
	m.Observe(MetricValidateLatency, 5*time.Millisecond)
	m.Observe(MetricValidateLatency, 40*time.Millisecond)
	m.Observe(MetricRefreshLatency, 2*time.Second)
	m.Observe(MetricLogout, time.Millisecond)

	snap := m.Snapshot()
	v := snap.Histograms[MetricValidateLatency]
	if len(v) != histBucketCount || v[0] != 2 || v[3] != 1 {
		t.Fatalf("validate buckets = %v", v)
	}
	r := snap.Histograms[MetricRefreshLatency]
	if r[histBucketCount-1] != 1 {
		t.Fatalf("refresh buckets = %v", r)
	}
	if _, ok := snap.Histograms[MetricLogout]; ok {
		t.Fatal("non-latency ids keep no histogram")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricIssueSuccess)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricIssueSuccess); got != 8000 {
		t.Fatalf("issue_success = %d", got)
	}
}

func TestMetricIDString(t *testing.T) {
	for id := MetricID(0); id < metricIDCount; id++ {
		if id.String() == "" {
			t.Fatalf("metric %d has no name", id)
		}
	}
	if MetricRefreshReplay.String() != "refresh_replay" {
		t.Fatalf("unexpected name %q", MetricRefreshReplay.String())
	}
	if metricIDCount.String() != "unknown" {
		t.Fatal("out of range id should be unknown")
	}
}
