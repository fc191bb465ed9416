// Package prometheus renders engine metrics in the Prometheus text exposition
// format. Counters are named sehatauth_*_total; the single histogram is
// sehatauth_login_latency_seconds.
//
// The exporter never touches a global registry; callers mount [Exporter.Handler]
// or serve [Exporter.Render] from their own router.
package prometheus
