package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avolkov/pricevault/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := Config{
		DataDir:       t.TempDir(),
		FlushInterval: time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	s, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func testObs(symbol string, price float64, observedAt int64, seq uint64) model.PriceObservation {
	return model.PriceObservation{
		Symbol:     symbol,
		Price:      decimal.NewFromFloat(price),
		ObservedAt: observedAt,
		Seq:        seq,
		IngestedAt: observedAt,
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	s := newTestStore(t)

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestStore_Insert_Dedup(t *testing.T) {
	s := newTestStore(t)

	obs := testObs("BTCUSDT", 50000, 1700000000, 42)

	if !s.Insert(obs) {
		t.Fatal("first Insert() = false, want true")
	}
	if s.Insert(obs) {
		t.Error("second Insert() = true, want false for duplicate")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if !s.Contains(obs.Key()) {
		t.Error("Contains() = false after insert")
	}

	stats := s.Stats()
	if stats.Inserts != 1 {
		t.Errorf("Inserts = %d, want 1", stats.Inserts)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", stats.Duplicates)
	}
}

func TestStore_Insert_ZeroSeq(t *testing.T) {
	s := newTestStore(t)

	obs := testObs("BTCUSDT", 50000, 1700000000, 0)

	if !s.Insert(obs) {
		t.Fatal("first Insert() = false, want true")
	}
	if !s.Insert(obs) {
		t.Error("second Insert() = false, want true for zero seq")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if s.Contains(obs.Key()) {
		t.Error("Contains() = true for zero seq, want false")
	}
}

func TestStore_Query_Tolerance(t *testing.T) {
	s := newTestStore(t)
	s.Insert(testObs("BTCUSDT", 100, 100, 1))
	s.Insert(testObs("BTCUSDT", 200, 200, 2))
	s.Insert(testObs("BTCUSDT", 400, 400, 3))

	got, ok := s.Query("BTCUSDT", 205, 60)
	if !ok {
		t.Fatal("Query(205, 60) found nothing")
	}
	if got.ObservedAt != 200 {
		t.Errorf("ObservedAt = %d, want 200", got.ObservedAt)
	}

	if _, ok := s.Query("BTCUSDT", 205, 4); ok {
		t.Error("Query(205, 4) found a match, want miss")
	}
	if _, ok := s.Query("ETHUSDT", 205, 60); ok {
		t.Error("Query() matched wrong symbol")
	}
}

func TestStore_Query_TieBreak(t *testing.T) {
	s := newTestStore(t)

	older := testObs("BTCUSDT", 100, 90, 1)
	older.IngestedAt = 1000
	newer := testObs("BTCUSDT", 200, 110, 2)
	newer.IngestedAt = 2000

	s.Insert(older)
	s.Insert(newer)

	// Equidistant from 100; the later ingest wins.
	got, ok := s.Query("BTCUSDT", 100, 60)
	if !ok {
		t.Fatal("Query() found nothing")
	}
	if got.Seq != 2 {
		t.Errorf("Seq = %d, want 2 (most recently ingested)", got.Seq)
	}
}

func TestStore_Latest(t *testing.T) {
	s := newTestStore(t)

	eth := testObs("ETHUSDT", 3000, 100, 1)
	eth.IngestedAt = 100
	btcOld := testObs("BTCUSDT", 50000, 100, 2)
	btcOld.IngestedAt = 100
	btcNew := testObs("BTCUSDT", 51000, 200, 3)
	btcNew.IngestedAt = 200

	s.Insert(eth)
	s.Insert(btcOld)
	s.Insert(btcNew)

	latest := s.Latest()
	if len(latest) != 2 {
		t.Fatalf("Latest() returned %d entries, want 2", len(latest))
	}
	if latest[0].Symbol != "BTCUSDT" || latest[0].Seq != 3 {
		t.Errorf("latest[0] = %s seq %d, want BTCUSDT seq 3", latest[0].Symbol, latest[0].Seq)
	}
	if latest[1].Symbol != "ETHUSDT" {
		t.Errorf("latest[1] = %s, want ETHUSDT", latest[1].Symbol)
	}
}

func TestStore_Sweep(t *testing.T) {
	s := newTestStore(t)

	old := time.Now().Add(-2 * time.Hour).Unix()
	for i := 0; i < 10; i++ {
		s.Insert(testObs("BTCUSDT", 50000, old, uint64(i+1)))
	}
	fresh := testObs("ETHUSDT", 3000, time.Now().Unix(), 100)
	s.Insert(fresh)

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 10 {
		t.Errorf("removed = %d, want 10", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if s.Contains(model.DedupKey{Symbol: "BTCUSDT", Seq: 1}) {
		t.Error("Contains() = true for swept key, want false")
	}
	if !s.Contains(fresh.Key()) {
		t.Error("Contains() = false for fresh key, want true")
	}

	// Sweep persisted the trimmed state.
	if _, err := os.Stat(s.path); err != nil {
		t.Errorf("snapshot missing after sweep: %v", err)
	}
}

func TestStore_Sweep_NothingExpired(t *testing.T) {
	s := newTestStore(t)
	s.Insert(testObs("BTCUSDT", 50000, time.Now().Unix(), 1))

	removed, err := s.Sweep(time.Hour)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestStore_Restart_Reload(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, FlushInterval: time.Hour}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	obs := testObs("BTCUSDT", 50000, 1700000000, 42)
	s.Insert(obs)
	s.Flush()

	reopened, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.Len() != 1 {
		t.Fatalf("reopened Len() = %d, want 1", reopened.Len())
	}
	if !reopened.Contains(obs.Key()) {
		t.Error("dedup index not rebuilt on load")
	}

	got, ok := reopened.Query("BTCUSDT", 1700000000, 0)
	if !ok {
		t.Fatal("Query() after reload found nothing")
	}
	if !got.Price.Equal(obs.Price) {
		t.Errorf("Price = %s, want %s", got.Price, obs.Price)
	}
}

func TestStore_Flush_NoTempFilesLeft(t *testing.T) {
	s := newTestStore(t)
	s.Insert(testObs("BTCUSDT", 50000, 1700000000, 1))
	s.Flush()

	entries, err := os.ReadDir(s.cfg.DataDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestStore_Load_IgnoresStrayTempFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, FlushInterval: time.Hour}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Insert(testObs("BTCUSDT", 50000, 1700000000, 1))
	s.Flush()

	// A crash mid-write leaves a temp file but the canonical snapshot intact.
	stray := filepath.Join(dir, snapshotFile+".tmp-crash")
	if err := os.WriteFile(stray, []byte("{partial"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	reopened, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if reopened.Len() != 1 {
		t.Errorf("reopened Len() = %d, want 1", reopened.Len())
	}
}

func TestStore_Load_CorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir, FlushInterval: time.Hour}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	path := filepath.Join(dir, snapshotFile)
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("Open() error = %v, want recovery", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after corrupt load", s.Len())
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Errorf("corrupt snapshot not backed up: %v", err)
	}

	// The store is usable after recovery.
	if !s.Insert(testObs("BTCUSDT", 50000, 1700000000, 1)) {
		t.Error("Insert() = false after recovery")
	}
}

func TestStore_Lifecycle(t *testing.T) {
	cfg := Config{
		DataDir:       t.TempDir(),
		FlushInterval: 20 * time.Millisecond,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := Open(cfg, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.Insert(testObs("BTCUSDT", 50000, 1700000000, 1))
	time.Sleep(60 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if _, err := os.Stat(s.path); err != nil {
		t.Errorf("snapshot missing after lifecycle: %v", err)
	}

	stats := s.Stats()
	if stats.Flushes == 0 {
		t.Error("Flushes = 0, want at least one")
	}
}
