// Package otel exposes authflow metrics through an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket, all fed by a single callback
// reading [authflow.Client.MetricsSnapshot]. Callers own the MeterProvider.
package otel
