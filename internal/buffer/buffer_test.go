package buffer

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avolkov/pricevault/internal/model"
)

func obsAt(symbol string, observedAt, ingestedAt int64) model.PriceObservation {
	return model.PriceObservation{
		Symbol:     symbol,
		Price:      decimal.NewFromInt(100),
		ObservedAt: observedAt,
		IngestedAt: ingestedAt,
	}
}

func TestQueryClosestWithinTolerance(t *testing.T) {
	b := New(time.Hour)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	for _, ts := range []int64{100, 200, 400} {
		b.Add(obsAt("BTCUSDT", ts, now))
	}

	got, ok := b.Query("BTCUSDT", 205, 60)
	if !ok {
		t.Fatal("Query missed, want hit at 200")
	}
	if got.ObservedAt != 200 {
		t.Errorf("ObservedAt = %d, want 200", got.ObservedAt)
	}

	if _, ok := b.Query("BTCUSDT", 205, 4); ok {
		t.Error("Query hit with tolerance 4, want miss")
	}
}

func TestQueryFiltersSymbol(t *testing.T) {
	b := New(time.Hour)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	b.Add(obsAt("BTCUSDT", 200, now))
	b.Add(obsAt("ETHUSDT", 205, now))

	got, ok := b.Query("ETHUSDT", 205, 60)
	if !ok {
		t.Fatal("Query missed for ETHUSDT")
	}
	if got.Symbol != "ETHUSDT" {
		t.Errorf("Symbol = %q, want %q", got.Symbol, "ETHUSDT")
	}

	if _, ok := b.Query("SOLUSDT", 205, 60); ok {
		t.Error("Query hit for unknown symbol, want miss")
	}
}

func TestQueryTieBreaksOnIngestedAt(t *testing.T) {
	b := New(time.Hour)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	// Equidistant from target 200; the later-ingested one must win.
	first := obsAt("BTCUSDT", 190, 500)
	first.Seq = 1
	second := obsAt("BTCUSDT", 210, 600)
	second.Seq = 2
	b.Add(first)
	b.Add(second)

	got, ok := b.Query("BTCUSDT", 200, 60)
	if !ok {
		t.Fatal("Query missed")
	}
	if got.Seq != 2 {
		t.Errorf("Seq = %d, want 2 (most recently ingested)", got.Seq)
	}
}

func TestEvictionAfterMaxAge(t *testing.T) {
	b := New(60 * time.Second)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	b.Add(obsAt("BTCUSDT", 990, 1000))

	if _, ok := b.Query("BTCUSDT", 990, 60); !ok {
		t.Fatal("Query missed before aging")
	}

	// Advance past the window; the entry must no longer be served.
	now = 1061
	if _, ok := b.Query("BTCUSDT", 990, 60); ok {
		t.Error("Query hit after max age, want miss")
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d after aging, want 0", b.Len())
	}
}

func TestAddEvictsFromFront(t *testing.T) {
	b := New(60 * time.Second)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	b.Add(obsAt("BTCUSDT", 1000, 1000))
	now = 1030
	b.Add(obsAt("BTCUSDT", 1030, 1030))
	now = 1070 // first entry is now 70s old, second 40s

	b.Add(obsAt("BTCUSDT", 1070, 1070))

	if b.Len() != 2 {
		t.Errorf("Len = %d, want 2 (oldest evicted on Add)", b.Len())
	}
	if _, ok := b.Query("BTCUSDT", 1000, 5); ok {
		t.Error("evicted entry still served")
	}
}

func TestSweepReportsEvicted(t *testing.T) {
	b := New(60 * time.Second)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	for i := int64(0); i < 10; i++ {
		b.Add(obsAt("BTCUSDT", 900+i, 1000))
	}

	now = 2000
	if got := b.Sweep(); got != 10 {
		t.Errorf("Sweep = %d, want 10", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len = %d after sweep, want 0", b.Len())
	}
}

func TestGrowthPreservesOrder(t *testing.T) {
	b := New(time.Hour)
	now := int64(10000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	// Force several doublings past the initial capacity.
	n := defaultCapacity*4 + 3
	for i := 0; i < n; i++ {
		b.Add(obsAt("BTCUSDT", int64(i), now))
	}

	if b.Len() != n {
		t.Fatalf("Len = %d, want %d", b.Len(), n)
	}

	stats := b.Stats()
	if stats.ResizeCount == 0 {
		t.Error("ResizeCount = 0, want growth")
	}

	// Both ends of the window must still be reachable.
	if got, ok := b.Query("BTCUSDT", 0, 0); !ok || got.ObservedAt != 0 {
		t.Errorf("oldest entry: got %v ok=%v, want ObservedAt 0", got.ObservedAt, ok)
	}
	last := int64(n - 1)
	if got, ok := b.Query("BTCUSDT", last, 0); !ok || got.ObservedAt != last {
		t.Errorf("newest entry: got %v ok=%v, want ObservedAt %d", got.ObservedAt, ok, last)
	}
}

func TestGrowthAfterWrap(t *testing.T) {
	b := New(60 * time.Second)
	now := int64(1000)
	b.now = func() time.Time { return time.Unix(now, 0) }

	// Fill, age half out, then refill to force a wrapped grow.
	for i := 0; i < defaultCapacity; i++ {
		b.Add(obsAt("BTCUSDT", int64(i), now))
	}
	now += 61
	half := defaultCapacity / 2
	for i := 0; i < half; i++ {
		b.Add(obsAt("BTCUSDT", int64(1000+i), now))
	}
	now += 30
	for i := 0; i < defaultCapacity; i++ {
		b.Add(obsAt("BTCUSDT", int64(2000+i), now))
	}

	want := half + defaultCapacity
	if b.Len() != want {
		t.Errorf("Len = %d, want %d", b.Len(), want)
	}
	if got, ok := b.Query("BTCUSDT", 1000, 0); !ok || got.ObservedAt != 1000 {
		t.Errorf("pre-wrap entry lost: got %v ok=%v", got.ObservedAt, ok)
	}
}
