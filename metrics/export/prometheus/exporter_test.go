package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/sessionkit"
	"github.com/MrEthical07/sessionkit/store"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot sessionkit.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() sessionkit.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) EventsDropped() uint64                       { return f.dropped }

func gather(t *testing.T, src MetricsSource) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollectorFromSource(src)))
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectorCounters(t *testing.T) {
	src := &fakeSource{
		snapshot: sessionkit.MetricsSnapshot{
			Counters: map[sessionkit.MetricID]uint64{
				sessionkit.MetricRefreshSuccess: 4,
				sessionkit.MetricRefreshReplay:  1,
			},
		},
		dropped: 2,
	}
	families := gather(t, src)

	assert.EqualValues(t, 4, families["sessionkit_refresh_success_total"].GetMetric()[0].GetCounter().GetValue())
	assert.EqualValues(t, 1, families["sessionkit_refresh_replay_total"].GetMetric()[0].GetCounter().GetValue())
	assert.EqualValues(t, 0, families["sessionkit_logout_total"].GetMetric()[0].GetCounter().GetValue())
	assert.EqualValues(t, 2, families["sessionkit_events_dropped_total"].GetMetric()[0].GetCounter().GetValue())
	_, hasHist := families["sessionkit_validate_latency_seconds"]
	assert.False(t, hasHist, "histograms absent from the snapshot are not exported")
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	src := &fakeSource{
		snapshot: sessionkit.MetricsSnapshot{
			Counters: map[sessionkit.MetricID]uint64{},
			Histograms: map[sessionkit.MetricID][]uint64{
				sessionkit.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
	}
	families := gather(t, src)

	h := families["sessionkit_validate_latency_seconds"].GetMetric()[0].GetHistogram()
	assert.EqualValues(t, 8, h.GetSampleCount())
	buckets := h.GetBucket()
	require.Len(t, buckets, 7)
	assert.InDelta(t, 0.005, buckets[0].GetUpperBound(), 1e-9)
	assert.EqualValues(t, 1, buckets[0].GetCumulativeCount())
	assert.EqualValues(t, 7, buckets[6].GetCumulativeCount())
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	cfg := sessionkit.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(strings.Repeat("p", 32))
	engine, err := sessionkit.New().WithConfig(cfg).WithStore(store.NewMemory()).Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Issue(t.Context(), "u1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Handler(engine).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sessionkit_issue_success_total 1")
	assert.Contains(t, string(body), "go_goroutines")
}
