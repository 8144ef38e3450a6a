package rtds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avolkov/pricevault/internal/config"
	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/model"
)

// Source is a single-connection stream client. It implements
// feed.StreamSource.
type Source struct {
	cfg     config.RTDSConfig
	symbols map[string]struct{}
	logger  *slog.Logger

	// Output channels
	out  chan model.PriceObservation
	errs chan error

	// Write serialization
	writeMu sync.Mutex

	// State
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stream source emitting observations for the given canonical
// symbols. Updates for any other symbol on the topic are dropped.
func New(cfg config.RTDSConfig, symbols []string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}

	set := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		set[feed.NormalizeSymbol(sym)] = struct{}{}
	}

	return &Source{
		cfg:     cfg,
		symbols: set,
		logger:  logger.With("component", "rtds"),
		out:     make(chan model.PriceObservation, cfg.BufferSize),
		errs:    make(chan error, 1),
	}
}

// Start launches the connect/consume loop.
func (s *Source) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("stream source started", "url", s.cfg.URL, "topic", s.cfg.Topic)
	return nil
}

// Stop closes the connection and waits for the loop to exit.
func (s *Source) Stop(ctx context.Context) error {
	s.logger.Info("stopping stream source")

	if s.cancel != nil {
		s.cancel()
	}

	// Unblock any pending read.
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("stream source stop timed out")
	}

	s.logger.Info("stream source stopped")
	return nil
}

// Observations returns the channel of emitted observations.
func (s *Source) Observations() <-chan model.PriceObservation {
	return s.out
}

// Errors returns the channel of connection and protocol errors.
func (s *Source) Errors() <-chan error {
	return s.errs
}

// IsConnected reports whether a subscription is currently live.
func (s *Source) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// run dials, consumes until failure, then retries after the reconnect delay.
func (s *Source) run() {
	defer s.wg.Done()

	for {
		err := s.connectAndConsume()
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Error("stream connection failed", "error", err)
			s.reportError(err)
		}

		s.logger.Info("reconnecting", "delay", s.cfg.ReconnectDelay)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

// connectAndConsume holds one connection: dial, subscribe, ping, read until
// the connection drops.
func (s *Source) connectAndConsume() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: s.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(s.ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.connected = false
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	sub := subscribeRequest{
		Action: "subscribe",
		Subscriptions: []subscription{
			{Topic: s.cfg.Topic, Type: "update"},
		},
	}
	if err := s.send(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.logger.Info("subscribed", "topic", s.cfg.Topic)

	// Per-connection ping loop; stops when this connection is torn down.
	pingDone := make(chan struct{})
	defer close(pingDone)

	s.wg.Add(1)
	go s.pingLoop(pingDone)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		s.handleMessage(data)
	}
}

// handleMessage parses one inbound frame. Malformed frames are logged and
// skipped without dropping the connection.
func (s *Source) handleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("malformed message, skipping", "error", err)
		s.reportError(fmt.Errorf("%w: %v", feed.ErrProtocol, err))
		return
	}

	// Acks, pongs, and anything else non-price.
	if env.Type != "update" {
		return
	}

	symbol := feed.NormalizeSymbol(env.Payload.Symbol)
	if symbol == "" {
		return
	}
	if _, ok := s.symbols[symbol]; !ok {
		s.logger.Debug("unconfigured symbol, dropping", "symbol", symbol)
		return
	}

	obs := model.PriceObservation{
		Symbol:     symbol,
		Price:      env.Payload.Value,
		ObservedAt: env.Payload.Timestamp / 1000,
		Seq:        0, // stream updates carry no round identity
	}

	select {
	case s.out <- obs:
	default:
		s.logger.Warn("observation buffer full, dropping", "symbol", symbol)
	}
}

// pingLoop sends the application-level keepalive at the configured interval.
func (s *Source) pingLoop(done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(pingMessage{Type: "ping"}); err != nil {
				s.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// send serializes writes to the connection.
func (s *Source) send(v any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return feed.ErrUnavailable
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(v)
}

// reportError pushes an error without blocking the read loop.
func (s *Source) reportError(err error) {
	select {
	case s.errs <- err:
	default:
	}
}
