// Package httpapi serves the collector's query API.
//
// Routes (all GET, JSON):
//   - /collector/price/{symbol}?timestamp=&tolerance=  point lookup
//   - /collector/latest                                newest price per symbol
//   - /collector/health                                liveness + per-symbol last-seen
//   - /collector/timezones                             display-zone reference
//   - metrics path                                     Prometheus scrape
//
// Every response carries an X-Request-ID header, generated when the caller
// does not send one.
package httpapi
