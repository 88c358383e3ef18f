// Package prometheus renders authflow metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] reads [authflow.Client.MetricsSnapshot] on every
// scrape. Counters are named authflow_*_total; the single histogram is
// authflow_gateway_latency_seconds.
//
// The exporter never registers with a global registry. Callers mount
// [PrometheusExporter.Handler] wherever they serve metrics.
package prometheus
