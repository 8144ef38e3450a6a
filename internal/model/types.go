package model

import (
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Observation Types
// -----------------------------------------------------------------------------

// PriceObservation is the atomic unit of ingested price data.
type PriceObservation struct {
	Symbol     string          `json:"symbol"`      // Canonical symbol (e.g. "BTCUSDT")
	Price      decimal.Decimal `json:"price"`       // Non-negative price value
	ObservedAt int64           `json:"observed_at"` // Source-claimed validity time (s since epoch, UTC)
	Seq        uint64          `json:"seq"`         // Source round number; 0 = source has none
	IngestedAt int64           `json:"ingested_at"` // Acceptance time (s since epoch); drives retention
}

// Key returns the observation's dedup key.
func (o PriceObservation) Key() DedupKey {
	return DedupKey{Symbol: o.Symbol, Seq: o.Seq}
}

// DedupKey identifies a unique observation from a sequenced source.
//
// A Seq of 0 means the source provides no sequence numbers; such observations
// carry no dedup key and are always inserted. This mirrors the upstream feeds:
// round-based oracles publish monotonic round ids, push feeds publish none.
type DedupKey struct {
	Symbol string
	Seq    uint64
}

// Zero reports whether the key carries no sequence number and therefore
// cannot deduplicate.
func (k DedupKey) Zero() bool {
	return k.Seq == 0
}

// -----------------------------------------------------------------------------
// Query Types
// -----------------------------------------------------------------------------

// Tier identifies which storage tier answered a query.
type Tier string

const (
	// TierMemory is the fast, ephemeral in-memory window.
	TierMemory Tier = "memory"

	// TierDurable is the persisted, authoritative record set.
	TierDurable Tier = "durable"
)

// PriceMatch is a successful tiered lookup result.
type PriceMatch struct {
	Observation PriceObservation // The matched observation
	Tier        Tier             // Tier that produced the match
	RequestedAt int64            // Target timestamp the caller asked for
}

// -----------------------------------------------------------------------------
// Ingestion Types
// -----------------------------------------------------------------------------

// AcceptResult is the outcome of offering an observation to the pipeline.
type AcceptResult int

const (
	// Accepted means the observation was new and written to both tiers.
	Accepted AcceptResult = iota

	// Duplicate means the dedup key already exists; nothing was written.
	Duplicate

	// Rejected means the observation failed validation and was dropped.
	Rejected
)

// String returns the lowercase label used in logs and metrics.
func (r AcceptResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}
