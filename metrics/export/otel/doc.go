// Package otel registers engine metrics as OpenTelemetry observable
// instruments on a caller-supplied Meter.
//
// Each counter becomes an Int64ObservableCounter. The latency histogram is
// flattened into one cumulative gauge per bucket plus a count gauge, since
// observable histograms do not exist in the metric API. One callback reads a
// snapshot per collection cycle.
package otel
