package chainlink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/model"
)

// RPC error codes upstream providers return when a key is over quota.
const (
	rpcCodeLimitExceeded = -32005
	rpcCodeRateLimited   = -32097
)

// Client reads Chainlink aggregator prices through one JSON-RPC endpoint.
// It implements feed.PollSource.
type Client struct {
	endpoint   string
	symbols    map[string]string // canonical symbol -> aggregator proxy address
	httpClient *http.Client
	logger     *slog.Logger

	reqID atomic.Int64

	// decimals() is immutable per aggregator; fetch once.
	decimalsMu sync.Mutex
	decimals   map[string]int32
}

// Option configures a Client.
type Option func(*Client)

// New creates a poll client for one RPC endpoint.
func New(endpoint string, symbols map[string]string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		symbols:  symbols,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:   slog.Default(),
		decimals: make(map[string]int32),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// Endpoint returns the RPC endpoint this client reads from.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Latest fetches the current aggregator round for symbol.
func (c *Client) Latest(ctx context.Context, symbol string) (model.PriceObservation, error) {
	addr, ok := c.symbols[symbol]
	if !ok {
		return model.PriceObservation{}, fmt.Errorf("%w: no aggregator for %s", feed.ErrUnavailable, symbol)
	}

	dec, err := c.aggregatorDecimals(ctx, symbol, addr)
	if err != nil {
		return model.PriceObservation{}, err
	}

	result, err := c.call(ctx, addr, selectorLatestRoundData)
	if err != nil {
		return model.PriceObservation{}, err
	}

	round, err := parseRoundData(result)
	if err != nil {
		return model.PriceObservation{}, fmt.Errorf("%w: %v", feed.ErrProtocol, err)
	}

	return model.PriceObservation{
		Symbol:     symbol,
		Price:      decimal.NewFromBigInt(round.Answer, -dec),
		ObservedAt: round.UpdatedAt,
		Seq:        round.Seq(),
	}, nil
}

// aggregatorDecimals returns the cached scale for symbol, fetching on first use.
func (c *Client) aggregatorDecimals(ctx context.Context, symbol, addr string) (int32, error) {
	c.decimalsMu.Lock()
	dec, ok := c.decimals[symbol]
	c.decimalsMu.Unlock()
	if ok {
		return dec, nil
	}

	result, err := c.call(ctx, addr, selectorDecimals)
	if err != nil {
		return 0, err
	}

	dec, err = parseUint8(result)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", feed.ErrProtocol, err)
	}

	c.decimalsMu.Lock()
	c.decimals[symbol] = dec
	c.decimalsMu.Unlock()

	c.logger.Debug("aggregator decimals", "symbol", symbol, "decimals", dec)
	return dec, nil
}

// rpcRequest is a JSON-RPC 2.0 eth_call envelope.
type rpcRequest struct {
	Jsonrpc string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one eth_call and classifies transport and provider failures.
func (c *Client) call(ctx context.Context, to, data string) ([]byte, error) {
	req := rpcRequest{
		Jsonrpc: "2.0",
		ID:      c.reqID.Add(1),
		Method:  "eth_call",
		Params:  []any{callParams{To: to, Data: data}, "latest"},
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", feed.ErrUnavailable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: http 429 from %s", feed.ErrRateLimited, c.endpoint)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: http %d from %s", feed.ErrUnavailable, resp.StatusCode, c.endpoint)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrProtocol, err)
	}

	if rpcResp.Error != nil {
		switch rpcResp.Error.Code {
		case rpcCodeLimitExceeded, rpcCodeRateLimited:
			return nil, fmt.Errorf("%w: %v", feed.ErrRateLimited, rpcResp.Error)
		default:
			return nil, fmt.Errorf("%w: %v", feed.ErrUnavailable, rpcResp.Error)
		}
	}

	result, err := decodeHex(rpcResp.Result)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", feed.ErrProtocol, err)
	}

	return result, nil
}
