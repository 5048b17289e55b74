// Package metrics defines the Prometheus collectors splicer exports on
// /metrics and a Collector that samples queue depth on an interval.
package metrics
