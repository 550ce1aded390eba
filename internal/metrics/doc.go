// Package metrics exposes request and job counters in Prometheus format.
//
// Callers depend on the Recorder interface; the daemon installs Prom when
// metrics are enabled and Noop otherwise.
package metrics
