package ingest

import (
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/pricevault/internal/buffer"
	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/metrics"
	"github.com/avolkov/pricevault/internal/model"
	"github.com/avolkov/pricevault/internal/store"
)

// Pipeline accepts observations into both tiers.
type Pipeline struct {
	buffer  *buffer.Buffer
	store   *store.Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	lastSeen map[string]int64
	stats    Stats

	now func() time.Time
}

// Stats counts pipeline outcomes since start.
type Stats struct {
	Accepted   int64
	Duplicates int64
	Rejected   int64
}

// NewPipeline creates the ingestion pipeline.
func NewPipeline(buf *buffer.Buffer, st *store.Store, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		buffer:   buf,
		store:    st,
		metrics:  m,
		logger:   logger.With("component", "ingest"),
		lastSeen: make(map[string]int64),
		now:      time.Now,
	}
}

// Accept validates, stamps, deduplicates, and commits one observation.
// The ingest timestamp is set here exactly once; adapters leave it zero.
func (p *Pipeline) Accept(obs model.PriceObservation) model.AcceptResult {
	obs.Symbol = feed.NormalizeSymbol(obs.Symbol)

	if obs.Symbol == "" || obs.ObservedAt <= 0 || obs.Price.IsNegative() {
		p.logger.Warn("rejecting observation",
			"symbol", obs.Symbol,
			"observed_at", obs.ObservedAt,
			"price", obs.Price,
		)
		p.metrics.RecordRejected()
		p.recordStat(func(s *Stats) { s.Rejected++ })
		return model.Rejected
	}

	obs.IngestedAt = p.now().Unix()

	if p.store.Contains(obs.Key()) {
		p.logger.Debug("duplicate observation",
			"symbol", obs.Symbol,
			"seq", obs.Seq,
		)
		p.metrics.RecordDuplicate()
		p.recordStat(func(s *Stats) { s.Duplicates++ })
		return model.Duplicate
	}

	// The store index is the dedup tier of record: commit there first so
	// a lost race never leaves a duplicate behind in the memory buffer.
	if !p.store.Insert(obs) {
		p.metrics.RecordDuplicate()
		p.recordStat(func(s *Stats) { s.Duplicates++ })
		return model.Duplicate
	}
	p.buffer.Add(obs)

	p.mu.Lock()
	p.lastSeen[obs.Symbol] = obs.IngestedAt
	p.stats.Accepted++
	p.mu.Unlock()

	p.metrics.RecordAccepted(obs.Symbol)
	p.metrics.SetTierSizes(p.buffer.Len(), p.store.Len())

	p.logger.Debug("accepted observation",
		"symbol", obs.Symbol,
		"price", obs.Price,
		"observed_at", obs.ObservedAt,
		"seq", obs.Seq,
	)
	return model.Accepted
}

// LastSeen returns a copy of the per-symbol last acceptance times.
func (p *Pipeline) LastSeen() map[string]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int64, len(p.lastSeen))
	for sym, ts := range p.lastSeen {
		out[sym] = ts
	}
	return out
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Pipeline) recordStat(fn func(*Stats)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}
