package feed

import (
	"context"
	"errors"
	"strings"

	"github.com/avolkov/pricevault/internal/model"
)

// Error classes returned by source adapters. Callers classify with errors.Is;
// adapters wrap these with detail, never the other way around.
var (
	// ErrUnavailable marks a transient source failure: skip the cycle, retry next tick.
	ErrUnavailable = errors.New("source unavailable")

	// ErrRateLimited marks a rate-limit rejection: triggers endpoint failover.
	ErrRateLimited = errors.New("source rate limited")

	// ErrProtocol marks a malformed upstream response: drop and continue.
	ErrProtocol = errors.New("protocol error")
)

// PollSource is a request/response price source.
type PollSource interface {
	// Latest returns the newest observation for a canonical symbol, or an
	// error wrapping one of the package error classes.
	Latest(ctx context.Context, symbol string) (model.PriceObservation, error)
}

// StreamSource is a push price source. Observations arrive on a channel;
// connection-loss and protocol signals arrive on a separate error channel.
type StreamSource interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Observations() <-chan model.PriceObservation
	Errors() <-chan error
	IsConnected() bool
}

// DialFunc establishes a PollSource against a single endpoint. Each call
// returns a fresh source with freshly initialized per-endpoint state.
type DialFunc func(ctx context.Context, endpoint string) (PollSource, error)

// NormalizeSymbol converts a raw upstream symbol to canonical form: trimmed,
// uppercased, and with a "BASE/QUOTE" pair collapsed to the USDT-suffixed
// base (e.g. "btc/usd" -> "BTCUSDT"). Already-canonical symbols pass through.
func NormalizeSymbol(raw string) string {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if base, _, found := strings.Cut(sym, "/"); found {
		return base + "USDT"
	}
	return sym
}
