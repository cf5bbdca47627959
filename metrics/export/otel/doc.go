// Package otel binds sessionkit engine metrics to an OpenTelemetry Meter.
//
// [New] registers an Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per histogram bucket. The caller owns the
// MeterProvider.
package otel
