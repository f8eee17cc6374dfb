// Package prometheus exposes engine metrics through a client_golang
// Collector.
//
// Counters are named webster_*_total. The single histogram is
// webster_validate_latency_seconds; its sum is estimated from bucket upper
// bounds because the engine keeps only bucket counts.
//
// The exporter never registers into the global registry. Callers either
// mount [Exporter.Handler] or register the exporter into their own registry.
package prometheus
