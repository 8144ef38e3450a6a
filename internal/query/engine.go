package query

import (
	"log/slog"
	"sort"
	"time"

	"github.com/avolkov/pricevault/internal/buffer"
	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/metrics"
	"github.com/avolkov/pricevault/internal/model"
	"github.com/avolkov/pricevault/internal/store"
)

// Engine serves tiered lookups over both storage tiers.
type Engine struct {
	buffer  *buffer.Buffer
	store   *store.Store
	symbols map[string]struct{}
	loc     *time.Location
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a query engine over the given tiers and configured symbols.
func New(buf *buffer.Buffer, st *store.Store, symbols []string, loc *time.Location, m *metrics.Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}

	set := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		set[feed.NormalizeSymbol(sym)] = struct{}{}
	}

	return &Engine{
		buffer:  buf,
		store:   st,
		symbols: set,
		loc:     loc,
		metrics: m,
		logger:  logger.With("component", "query"),
	}
}

// Lookup finds the observation closest to targetTS within tolerance seconds.
// The memory tier answers first; the durable tier is the fallback.
func (e *Engine) Lookup(symbol string, targetTS, tolerance int64) (model.PriceMatch, bool) {
	symbol = feed.NormalizeSymbol(symbol)

	if obs, ok := e.buffer.Query(symbol, targetTS, tolerance); ok {
		e.metrics.RecordQuery("memory")
		return model.PriceMatch{Observation: obs, Tier: model.TierMemory, RequestedAt: targetTS}, true
	}

	if obs, ok := e.store.Query(symbol, targetTS, tolerance); ok {
		e.metrics.RecordQuery("durable")
		return model.PriceMatch{Observation: obs, Tier: model.TierDurable, RequestedAt: targetTS}, true
	}

	e.metrics.RecordQuery("miss")
	e.logger.Debug("lookup miss",
		"symbol", symbol,
		"target", targetTS,
		"tolerance", tolerance,
	)
	return model.PriceMatch{}, false
}

// Latest returns the newest durable observation per symbol.
func (e *Engine) Latest() []model.PriceMatch {
	latest := e.store.Latest()

	out := make([]model.PriceMatch, 0, len(latest))
	for _, obs := range latest {
		out = append(out, model.PriceMatch{Observation: obs, Tier: model.TierDurable})
	}
	return out
}

// Supported reports whether the symbol is configured for collection.
// The input is normalized first, so "btc/usd" matches "BTCUSDT".
func (e *Engine) Supported(symbol string) bool {
	_, ok := e.symbols[feed.NormalizeSymbol(symbol)]
	return ok
}

// Symbols returns the configured canonical symbols, sorted.
func (e *Engine) Symbols() []string {
	out := make([]string, 0, len(e.symbols))
	for sym := range e.symbols {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
