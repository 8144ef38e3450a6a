// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Feed connection state and observation rates
//   - Ingestion accept/duplicate/reject counts
//   - Buffer and store sizes, flush and sweep activity
//   - Query hit rates by tier
//   - HTTP request latencies
package metrics
