package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/avolkov/pricevault/internal/config"
	"github.com/avolkov/pricevault/internal/ingest"
	"github.com/avolkov/pricevault/internal/metrics"
	"github.com/avolkov/pricevault/internal/query"
)

// StreamState reports push-feed connectivity for the health endpoint.
type StreamState interface {
	IsConnected() bool
}

// Deps carries the collaborators the handlers read from.
type Deps struct {
	Engine   *query.Engine
	Pipeline *ingest.Pipeline
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Instance and SourceMode are reported verbatim by /collector/health.
	Instance   string
	SourceMode string

	// Stream is nil unless a push feed is active; health reports null then.
	Stream StreamState

	// BufferAge and Retention are the tier windows, reported by /collector/timezones.
	BufferAge time.Duration
	Retention time.Duration

	// MetricsPath is where the Prometheus handler mounts. Empty means /metrics.
	MetricsPath string
}

// Server is the collector's HTTP API server.
type Server struct {
	cfg    config.APIConfig
	deps   Deps
	logger *slog.Logger

	srv *http.Server

	// now is replaceable in tests.
	now func() time.Time
}

// New creates an API server. Start must be called to begin serving.
func New(cfg config.APIConfig, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MetricsPath == "" {
		deps.MetricsPath = "/metrics"
	}

	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "api"),
		now:    time.Now,
	}
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware, s.observeMiddleware)

	r.HandleFunc("/collector/price/{symbol}", s.handlePrice).Methods(http.MethodGet)
	r.HandleFunc("/collector/latest", s.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/collector/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/collector/timezones", s.handleTimezones).Methods(http.MethodGet)
	r.Handle(s.deps.MetricsPath, metrics.Handler()).Methods(http.MethodGet)

	return r
}

// Start binds the listen port and begins serving. The bind happens
// synchronously so port conflicts surface as a Start error rather than a
// background log line.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", "error", err)
		}
	}()

	s.logger.Info("api server started", "addr", addr)
	return nil
}

// Stop drains in-flight requests and closes the listener. The context bounds
// the drain; pass one with the configured shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}

	s.logger.Info("api server stopped")
	return nil
}
