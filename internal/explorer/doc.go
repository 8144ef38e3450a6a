// Package explorer provides a client for Etherscan-V2-style block explorer
// APIs. It paginates account transaction listings and retries transparently
// on explorer-side rate limiting, which the API reports in-band rather than
// through HTTP status codes.
package explorer
