package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/pricevault/internal/model"
)

// FailoverConfig configures endpoint rotation for a poll source.
type FailoverConfig struct {
	Endpoints   []string      // Candidate endpoints, tried in order
	MaxRetries  int           // Attempt budget per Latest call
	BackoffBase time.Duration // Initial backoff when an endpoint cannot be established

	// OnRotate, when set, is invoked once per endpoint rotation.
	OnRotate func()
}

// Failover wraps a poll source with multiple candidate endpoints. On a
// rate-limit error it rotates to the next endpoint circularly and retries
// immediately; when the rotated endpoint cannot be established it backs off
// exponentially before retrying the same endpoint. Any other source error
// ends the call with ErrUnavailable.
//
// Rotation discards the previous endpoint's source and dials a fresh one, so
// per-endpoint derived state (resolved contracts, cached scales) is rebuilt
// before the next attempt. Calls on one Failover are serialized; the cursor
// never races.
type Failover struct {
	cfg    FailoverConfig
	dial   DialFunc
	logger *slog.Logger

	mu      sync.Mutex
	cursor  int
	current PollSource // nil until the cursor's endpoint is established
}

// NewFailover creates a failover wrapper over the configured endpoints.
func NewFailover(cfg FailoverConfig, dial DialFunc, logger *slog.Logger) (*Failover, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("failover: at least one endpoint required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Failover{
		cfg:    cfg,
		dial:   dial,
		logger: logger.With("component", "failover"),
	}, nil
}

// Latest polls the current endpoint, rotating on rate limits, up to the
// configured attempt budget. Exhausting the budget or hitting a
// non-rate-limit source error yields ErrUnavailable; the caller skips this
// cycle for the symbol.
func (f *Failover) Latest(ctx context.Context, symbol string) (model.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	backoff := f.cfg.BackoffBase

	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if f.current == nil {
			src, err := f.dial(ctx, f.cfg.Endpoints[f.cursor])
			if err != nil {
				f.logger.Warn("endpoint dial failed",
					"endpoint", f.cfg.Endpoints[f.cursor],
					"attempt", attempt,
					"backoff", backoff,
					"error", err,
				)
				if err := sleep(ctx, backoff); err != nil {
					return model.PriceObservation{}, err
				}
				backoff *= 2
				continue
			}
			f.current = src
		}

		obs, err := f.current.Latest(ctx, symbol)
		if err == nil {
			return obs, nil
		}

		if !errors.Is(err, ErrRateLimited) {
			f.logger.Warn("poll failed",
				"endpoint", f.cfg.Endpoints[f.cursor],
				"symbol", symbol,
				"error", err,
			)
			return model.PriceObservation{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		// Rate limited: rotate and retry immediately on the next endpoint.
		prev := f.cfg.Endpoints[f.cursor]
		f.cursor = (f.cursor + 1) % len(f.cfg.Endpoints)
		f.current = nil
		if f.cfg.OnRotate != nil {
			f.cfg.OnRotate()
		}
		f.logger.Info("rate limited, rotating endpoint",
			"symbol", symbol,
			"from", prev,
			"to", f.cfg.Endpoints[f.cursor],
			"attempt", attempt,
		)
	}

	return model.PriceObservation{}, fmt.Errorf("%w: %d attempts exhausted", ErrUnavailable, f.cfg.MaxRetries)
}

// Cursor returns the index of the current endpoint.
func (f *Failover) Cursor() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

// CurrentEndpoint returns the endpoint the next attempt will use.
func (f *Failover) CurrentEndpoint() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg.Endpoints[f.cursor]
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
