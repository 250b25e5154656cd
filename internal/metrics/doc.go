// Package metrics exposes bot counters and latencies to Prometheus.
//
// The engine reports turn outcomes, dropped redeliveries, failed effects and
// plan redirects; the provider transport reports every upstream request.
// Nop is used when metrics are disabled in config.
package metrics
