package model

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

// TestPriceObservationKey validates dedup key derivation.
func TestPriceObservationKey(t *testing.T) {
	obs := PriceObservation{
		Symbol:     "BTCUSDT",
		Price:      decimal.NewFromFloat(50000.25),
		ObservedAt: 1733240000,
		Seq:        1042,
		IngestedAt: 1733240001,
	}

	key := obs.Key()
	if key.Symbol != "BTCUSDT" {
		t.Errorf("Key.Symbol = %q, want %q", key.Symbol, "BTCUSDT")
	}
	if key.Seq != 1042 {
		t.Errorf("Key.Seq = %d, want %d", key.Seq, 1042)
	}
	if key.Zero() {
		t.Error("Zero() = true for non-zero seq, want false")
	}
}

// TestDedupKeyZero validates the no-sequence special case.
func TestDedupKeyZero(t *testing.T) {
	key := DedupKey{Symbol: "ETHUSDT", Seq: 0}
	if !key.Zero() {
		t.Error("Zero() = false for seq 0, want true")
	}
}

// TestDedupKeyComparable validates that keys work as map keys.
func TestDedupKeyComparable(t *testing.T) {
	seen := map[DedupKey]struct{}{
		{Symbol: "BTCUSDT", Seq: 1}: {},
	}

	if _, ok := seen[DedupKey{Symbol: "BTCUSDT", Seq: 1}]; !ok {
		t.Error("identical key not found in map")
	}
	if _, ok := seen[DedupKey{Symbol: "BTCUSDT", Seq: 2}]; ok {
		t.Error("distinct key found in map")
	}
}

// TestPriceObservationJSON validates the persisted field layout.
func TestPriceObservationJSON(t *testing.T) {
	obs := PriceObservation{
		Symbol:     "SOLUSDT",
		Price:      decimal.RequireFromString("104.37"),
		ObservedAt: 1733240000,
		Seq:        0,
		IngestedAt: 1733240002,
	}

	data, err := json.Marshal(obs)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded PriceObservation
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if decoded.Symbol != obs.Symbol {
		t.Errorf("Symbol = %q, want %q", decoded.Symbol, obs.Symbol)
	}
	if !decoded.Price.Equal(obs.Price) {
		t.Errorf("Price = %s, want %s", decoded.Price, obs.Price)
	}
	if decoded.ObservedAt != obs.ObservedAt {
		t.Errorf("ObservedAt = %d, want %d", decoded.ObservedAt, obs.ObservedAt)
	}
	if decoded.IngestedAt != obs.IngestedAt {
		t.Errorf("IngestedAt = %d, want %d", decoded.IngestedAt, obs.IngestedAt)
	}
}

// TestAcceptResultString validates log/metric labels.
func TestAcceptResultString(t *testing.T) {
	tests := []struct {
		result AcceptResult
		want   string
	}{
		{Accepted, "accepted"},
		{Duplicate, "duplicate"},
		{Rejected, "rejected"},
		{AcceptResult(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.result.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// TestTierValues validates tier labels surfaced through the API.
func TestTierValues(t *testing.T) {
	if TierMemory != "memory" {
		t.Errorf("TierMemory = %q, want %q", TierMemory, "memory")
	}
	if TierDurable != "durable" {
		t.Errorf("TierDurable = %q, want %q", TierDurable, "durable")
	}
}
