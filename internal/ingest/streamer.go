package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/metrics"
)

// connStatePollInterval is how often the streamer samples the source's
// connection state for the feed gauge.
const connStatePollInterval = 5 * time.Second

// Streamer drains a push source into the pipeline.
type Streamer struct {
	source   feed.StreamSource
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStreamer creates a stream consumer.
func NewStreamer(source feed.StreamSource, pipeline *Pipeline, m *metrics.Metrics, logger *slog.Logger) *Streamer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Streamer{
		source:   source,
		pipeline: pipeline,
		metrics:  m,
		logger:   logger.With("component", "streamer"),
	}
}

// Start launches the source and the consume loop.
func (s *Streamer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.source.Start(s.ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.consume()

	s.logger.Info("streamer started")
	return nil
}

// Stop shuts down the source and waits for the consume loop.
func (s *Streamer) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	if err := s.source.Stop(ctx); err != nil {
		s.logger.Warn("source stop failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("streamer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// consume moves observations and errors off the source channels.
func (s *Streamer) consume() {
	defer s.wg.Done()

	ticker := time.NewTicker(connStatePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.metrics.SetFeedConnected(false)
			return
		case obs := <-s.source.Observations():
			s.pipeline.Accept(obs)
		case err := <-s.source.Errors():
			s.logger.Warn("feed error", "error", err)
			s.metrics.RecordFeedError(errorClass(err))
		case <-ticker.C:
			s.metrics.SetFeedConnected(s.source.IsConnected())
		}
	}
}
