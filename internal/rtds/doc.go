// Package rtds implements the push-feed source.
//
// The source:
//   - Maintains one WebSocket connection to the real-time data stream
//   - Subscribes to the configured price topic after each dial
//   - Sends an application-level ping at a fixed interval
//   - Reconnects and resubscribes after a fixed delay on any failure
//   - Emits observations for configured symbols to the ingest pipeline
package rtds
