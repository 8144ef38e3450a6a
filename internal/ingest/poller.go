package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/metrics"
	"github.com/avolkov/pricevault/internal/model"
)

// PollConfig holds poll loop configuration.
type PollConfig struct {
	Interval    time.Duration // cycle interval (default: 1s)
	Timeout     time.Duration // per-symbol fetch timeout (default: 10s)
	Concurrency int           // max concurrent fetches (default: 4)
}

// DefaultPollConfig returns sensible defaults.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    time.Second,
		Timeout:     10 * time.Second,
		Concurrency: 4,
	}
}

// Poller periodically fetches the latest observation for every symbol.
type Poller struct {
	cfg      PollConfig
	source   feed.PollSource
	pipeline *Pipeline
	symbols  []string
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoller creates a poll loop over the given symbols.
func NewPoller(cfg PollConfig, source feed.PollSource, pipeline *Pipeline, symbols []string, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollConfig().Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollConfig().Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultPollConfig().Concurrency
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		pipeline: pipeline,
		symbols:  symbols,
		metrics:  m,
		logger:   logger.With("component", "poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"symbols", len(p.symbols),
		"concurrency", p.cfg.Concurrency,
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.pollAll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches all symbols concurrently under the semaphore.
func (p *Poller) pollAll() {
	start := time.Now()

	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var accepted, duplicates, failed atomic.Int64

	for _, symbol := range p.symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			switch p.pollSymbol(symbol) {
			case pollAccepted:
				accepted.Add(1)
			case pollDuplicate:
				duplicates.Add(1)
			case pollFailed:
				failed.Add(1)
			}
		}(symbol)
	}

	wg.Wait()

	p.metrics.ObservePollCycle(time.Since(start).Seconds())
	p.logger.Debug("poll cycle complete",
		"symbols", len(p.symbols),
		"accepted", accepted.Load(),
		"duplicates", duplicates.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}

type pollOutcome int

const (
	pollAccepted pollOutcome = iota
	pollDuplicate
	pollFailed
)

// pollSymbol fetches and ingests one symbol. Failures never stop the loop;
// the next cycle retries.
func (p *Poller) pollSymbol(symbol string) pollOutcome {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	obs, err := p.source.Latest(ctx, symbol)
	if err != nil {
		if p.ctx.Err() == nil {
			p.logger.Warn("poll failed", "symbol", symbol, "error", err)
			p.metrics.RecordFeedError(errorClass(err))
		}
		return pollFailed
	}

	switch p.pipeline.Accept(obs) {
	case model.Accepted:
		return pollAccepted
	case model.Duplicate:
		return pollDuplicate
	default:
		return pollFailed
	}
}

// errorClass maps feed errors to a metric label.
func errorClass(err error) string {
	switch {
	case errors.Is(err, feed.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, feed.ErrProtocol):
		return "protocol"
	default:
		return "unavailable"
	}
}
