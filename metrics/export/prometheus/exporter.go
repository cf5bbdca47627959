package prometheus

import (
	"net/http"

	"github.com/MrEthical07/sessionkit"
	"github.com/MrEthical07/sessionkit/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSource is satisfied by *sessionkit.Engine.
type MetricsSource interface {
	MetricsSnapshot() sessionkit.MetricsSnapshot
	EventsDropped() uint64
}

type histogramDesc struct {
	id   sessionkit.MetricID
	desc *prometheus.Desc
}

// Collector turns engine snapshots into Prometheus const metrics on every
// scrape.
type Collector struct {
	source     MetricsSource
	counters   map[sessionkit.MetricID]*prometheus.Desc
	order      []sessionkit.MetricID
	histograms []histogramDesc
	dropped    *prometheus.Desc
	bounds     []float64
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector reads from the given engine.
func NewCollector(engine *sessionkit.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

func NewCollectorFromSource(source MetricsSource) *Collector {
	c := &Collector{
		source:   source,
		counters: make(map[sessionkit.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		bounds:   internaldefs.UpperBoundsSeconds(),
		dropped: prometheus.NewDesc(
			internaldefs.EventsDroppedName,
			"Lifecycle events dropped because the dispatcher buffer was full.",
			nil, nil,
		),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
		c.order = append(c.order, def.ID)
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, id := range c.order {
		ch <- c.counters[id]
	}
	for _, h := range c.histograms {
		ch <- h.desc
	}
	ch <- c.dropped
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for _, id := range c.order {
		ch <- prometheus.MustNewConstMetric(c.counters[id], prometheus.CounterValue, float64(snapshot.Counters[id]))
	}

	for _, h := range c.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for i, le := range c.bounds {
			buckets[le] = cumulative[i]
		}
		// the engine keeps no sum
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.source.EventsDropped()))
}

// Handler returns a /metrics handler backed by a private registry holding
// only this collector plus the Go runtime and process collectors.
func Handler(engine *sessionkit.Engine) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
