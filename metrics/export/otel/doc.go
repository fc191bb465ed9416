// Package otel exposes the identity service metrics to an OpenTelemetry
// MeterProvider owned by the caller. Counters keep the names used by the
// Prometheus endpoint; the login latency histogram is split into one gauge
// per bucket bound.
package otel
