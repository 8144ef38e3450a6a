// Package ingest implements the ingestion pipeline.
//
// The pipeline:
//   - Validates and normalizes observations from any feed adapter
//   - Stamps ingest time once at acceptance
//   - Deduplicates on (symbol, sequence) against the durable tier
//   - Fans accepted observations into the memory buffer and the store
//   - Tracks per-symbol last-seen times for health reporting
//
// Poller drives poll-style sources on a fixed interval with bounded
// concurrency; Streamer drains push-style sources.
package ingest
