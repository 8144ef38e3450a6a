package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/avolkov/pricevault/internal/model"
)

// snapshotFile is the canonical record set within the data directory.
const snapshotFile = "prices.json"

// Config configures the durable store.
type Config struct {
	DataDir       string
	FlushInterval time.Duration
}

// Store is the durable observation log. All observations for all symbols
// live in one logical collection, indexed in memory by symbol (for queries)
// and by dedup key (for O(1) duplicate checks). A background loop persists
// dirty state atomically at the flush interval; Stop performs a final flush.
//
// One mutex serializes every state mutation and the read-merge-replace write
// sequence, so concurrent inserts can never interleave a lost update.
type Store struct {
	cfg    Config
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	bySymbol map[string][]model.PriceObservation // insertion-ordered per symbol
	byKey    map[model.DedupKey]struct{}         // non-zero dedup keys only
	count    int
	dirty    bool
	metrics  Metrics

	// Lifecycle
	flushTicker *time.Ticker
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	now func() time.Time
}

// Metrics counts store activity since open.
type Metrics struct {
	Inserts     int64
	Duplicates  int64
	Flushes     int64
	FlushErrors int64
	Swept       int64
}

// Open loads (or initializes) the store under cfg.DataDir.
// A missing snapshot yields an empty store; an unreadable one is moved aside
// and logged, never fatal.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		cfg:      cfg,
		path:     filepath.Join(cfg.DataDir, snapshotFile),
		logger:   logger.With("component", "store"),
		bySymbol: make(map[string][]model.PriceObservation),
		byKey:    make(map[model.DedupKey]struct{}),
		now:      time.Now,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Start launches the background flush loop.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.flushTicker = time.NewTicker(s.cfg.FlushInterval)

	s.wg.Add(1)
	go s.flushLoop()

	s.logger.Info("store started",
		"path", s.path,
		"records", s.Len(),
		"flush_interval", s.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the flush loop and persists any dirty state.
func (s *Store) Stop(ctx context.Context) error {
	s.logger.Info("stopping store")

	if s.cancel != nil {
		s.cancel()
	}
	if s.flushTicker != nil {
		s.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("store stop timed out")
	}

	// Final flush so in-flight inserts reach disk.
	s.Flush()

	s.logger.Info("store stopped")
	return nil
}

// Insert adds an observation unless its dedup key already exists.
// Returns false for duplicates. The write lands on disk at the next flush.
func (s *Store) Insert(obs model.PriceObservation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := obs.Key()
	if !key.Zero() {
		if _, exists := s.byKey[key]; exists {
			s.metrics.Duplicates++
			return false
		}
		s.byKey[key] = struct{}{}
	}

	s.bySymbol[obs.Symbol] = append(s.bySymbol[obs.Symbol], obs)
	s.count++
	s.dirty = true
	s.metrics.Inserts++
	return true
}

// Contains reports whether the dedup key is already stored.
// Zero keys never match: sources without sequence numbers cannot dedup.
func (s *Store) Contains(key model.DedupKey) bool {
	if key.Zero() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byKey[key]
	return ok
}

// Query returns the stored observation for symbol closest to targetTS within
// tolerance seconds, ties going to the most recently ingested entry.
func (s *Store) Query(symbol string, targetTS, tolerance int64) (model.PriceObservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best     model.PriceObservation
		bestDiff int64
		found    bool
	)

	for _, e := range s.bySymbol[symbol] {
		diff := e.ObservedAt - targetTS
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			continue
		}
		if !found || diff < bestDiff || (diff == bestDiff && e.IngestedAt >= best.IngestedAt) {
			best = e
			bestDiff = diff
			found = true
		}
	}

	return best, found
}

// Latest returns the most recently ingested observation per symbol, ordered
// by symbol.
func (s *Store) Latest() []model.PriceObservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols := make([]string, 0, len(s.bySymbol))
	for sym, recs := range s.bySymbol {
		if len(recs) > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)

	out := make([]model.PriceObservation, 0, len(symbols))
	for _, sym := range symbols {
		recs := s.bySymbol[sym]
		best := recs[0]
		for _, e := range recs[1:] {
			if e.IngestedAt >= best.IngestedAt {
				best = e
			}
		}
		out = append(out, best)
	}
	return out
}

// Sweep removes observations older than retention (by IngestedAt) and
// persists the trimmed state. The removed count is reported even when the
// persist fails; the next flush retries the write.
func (s *Store) Sweep(retention time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-retention).Unix()
	removed := 0

	for sym, recs := range s.bySymbol {
		kept := recs[:0]
		for _, e := range recs {
			if e.IngestedAt < cutoff {
				if key := e.Key(); !key.Zero() {
					delete(s.byKey, key)
				}
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(s.bySymbol, sym)
		} else {
			s.bySymbol[sym] = kept
		}
	}

	if removed == 0 {
		return 0, nil
	}

	s.count -= removed
	s.dirty = true
	s.metrics.Swept += int64(removed)

	if err := s.persistLocked(); err != nil {
		s.metrics.FlushErrors++
		return removed, fmt.Errorf("persist after sweep: %w", err)
	}
	s.metrics.Flushes++
	return removed, nil
}

// Flush persists dirty state immediately. Errors are logged and counted;
// state stays dirty for the next attempt.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return
	}

	start := time.Now()
	if err := s.persistLocked(); err != nil {
		s.metrics.FlushErrors++
		s.logger.Error("flush failed", "error", err, "records", s.count)
		return
	}
	s.metrics.Flushes++
	s.logger.Debug("flushed store", "records", s.count, "duration", time.Since(start))
}

// Len returns the number of stored observations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Stats returns store metrics.
func (s *Store) Stats() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// flushLoop persists dirty state at the flush interval.
func (s *Store) flushLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.flushTicker.C:
			s.Flush()
		}
	}
}
