package reaper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avolkov/pricevault/internal/buffer"
	"github.com/avolkov/pricevault/internal/metrics"
	"github.com/avolkov/pricevault/internal/store"
)

// Reaper sweeps both tiers on a cron schedule.
type Reaper struct {
	schedule  string
	retention time.Duration
	buffer    *buffer.Buffer
	store     *store.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger

	cron *cron.Cron
}

// New creates a reaper. schedule is a cron spec ("@every 10m", "0 * * * *");
// retention bounds the durable tier, the buffer carries its own max age.
func New(schedule string, retention time.Duration, buf *buffer.Buffer, st *store.Store, m *metrics.Metrics, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		schedule:  schedule,
		retention: retention,
		buffer:    buf,
		store:     st,
		metrics:   m,
		logger:    logger.With("component", "reaper"),
	}
}

// Start validates the schedule and begins sweeping.
func (r *Reaper) Start(ctx context.Context) error {
	r.cron = cron.New()

	if _, err := r.cron.AddFunc(r.schedule, r.sweep); err != nil {
		return fmt.Errorf("invalid reaper schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.logger.Info("reaper started",
		"schedule", r.schedule,
		"retention", r.retention,
	)
	return nil
}

// Stop halts scheduling and lets a running sweep finish.
func (r *Reaper) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		r.logger.Warn("sweep still running at shutdown")
	}

	r.logger.Info("reaper stopped")
	return nil
}

// sweep trims both tiers and reports removed counts.
func (r *Reaper) sweep() {
	start := time.Now()

	memRemoved := r.buffer.Sweep()

	durRemoved, err := r.store.Sweep(r.retention)
	if err != nil {
		// Removed count is still valid; the persist retries next flush.
		r.logger.Error("durable sweep persist failed", "error", err, "removed", durRemoved)
	}

	r.metrics.RecordSwept("memory", memRemoved)
	r.metrics.RecordSwept("durable", durRemoved)
	r.metrics.SetTierSizes(r.buffer.Len(), r.store.Len())

	r.logger.Info("retention sweep complete",
		"memory_removed", memRemoved,
		"durable_removed", durRemoved,
		"duration", time.Since(start),
	)
}
