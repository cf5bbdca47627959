// Package prometheus exposes sessionkit engine metrics through
// client_golang.
//
// [Collector] implements prometheus.Collector and reads
// Engine.MetricsSnapshot on every scrape. Counters are named
// sessionkit_*_total; latency histograms are sessionkit_*_latency_seconds.
// [Handler] serves a private registry, never the global one.
package prometheus
