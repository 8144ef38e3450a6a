package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL  = "https://api.etherscan.io/v2/api"
	defaultChainID  = "137" // Polygon mainnet
	defaultPageSize = 10000
	defaultTimeout  = 30 * time.Second

	// rateLimitWait is the fixed pause before retrying a rate-limited page.
	rateLimitWait = time.Second

	// pageDelay spaces successive page fetches.
	pageDelay = 200 * time.Millisecond
)

// ErrRateLimited marks an explorer response that asked us to slow down.
// Transactions retries these internally; it only escapes when the retry
// budget is exhausted.
var ErrRateLimited = errors.New("explorer: rate limited")

// weiScale converts integer wei amounts to whole-coin values.
const weiScale = 18

// Transaction is one confirmed transaction from an account listing.
// Numeric fields arrive from the API as decimal strings and are parsed.
type Transaction struct {
	Hash      string          `json:"tx_hash"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Timestamp int64           `json:"timestamp"`
	Block     int64           `json:"block"`
	Value     decimal.Decimal `json:"value"` // native coin amount, wei / 10^18
	GasUsed   int64           `json:"gas_used"`
	GasPrice  int64           `json:"gas_price"`
	Failed    bool            `json:"failed"`
}

// Client fetches account transactions from an explorer API.
type Client struct {
	baseURL    string
	apiKey     string
	chainID    string
	pageSize   int
	httpClient *http.Client
	logger     *slog.Logger

	// maxRateLimitRetries bounds consecutive retries of a single page.
	maxRateLimitRetries int
}

// Option configures a Client.
type Option func(*Client)

// New creates an explorer client for the given API key.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:             defaultBaseURL,
		apiKey:              apiKey,
		chainID:             defaultChainID,
		pageSize:            defaultPageSize,
		httpClient:          &http.Client{Timeout: defaultTimeout},
		logger:              slog.Default(),
		maxRateLimitRetries: 10,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "explorer")

	return c
}

// WithBaseURL overrides the explorer API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithChainID selects the target chain (Etherscan V2 multiplexes chains).
func WithChainID(id string) Option {
	return func(c *Client) {
		c.chainID = id
	}
}

// WithPageSize sets the per-page transaction count.
func WithPageSize(n int) Option {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Transactions fetches every confirmed transaction for the address, oldest
// first, following pagination until a short page. Rate-limited pages are
// retried in place after a fixed wait.
func (c *Client) Transactions(ctx context.Context, address string) ([]Transaction, error) {
	address = strings.ToLower(address)

	var all []Transaction
	for page := 1; ; page++ {
		txs, err := c.fetchPage(ctx, address, page)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d for %s: %w", page, address, err)
		}

		all = append(all, txs...)
		c.logger.Debug("page fetched", "page", page, "transactions", len(txs), "total", len(all))

		if len(txs) < c.pageSize {
			return all, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pageDelay):
		}
	}
}

// fetchPage retrieves one page of the txlist action, absorbing rate limits.
func (c *Client) fetchPage(ctx context.Context, address string, page int) ([]Transaction, error) {
	for attempt := 0; ; attempt++ {
		txs, err := c.txlist(ctx, address, page)
		if err == nil {
			return txs, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt >= c.maxRateLimitRetries {
			return nil, err
		}

		c.logger.Warn("rate limited, waiting", "page", page, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rateLimitWait):
		}
	}
}

func (c *Client) txlist(ctx context.Context, address string, page int) ([]Transaction, error) {
	params := url.Values{}
	params.Set("chainid", c.chainID)
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("page", strconv.Itoa(page))
	params.Set("offset", strconv.Itoa(c.pageSize))
	params.Set("sort", "asc")
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer http %d", resp.StatusCode)
	}

	return parseTxlist(body)
}

// parseTxlist decodes a txlist response. The result field is polymorphic:
// an array of transactions on success, an explanatory string on errors, so
// it is traversed with gjson rather than a fixed struct.
func parseTxlist(body []byte) ([]Transaction, error) {
	doc := gjson.ParseBytes(body)

	if doc.Get("status").String() == "0" {
		msg := doc.Get("message").String()
		detail := doc.Get("result").String()

		switch {
		case isRateLimitText(msg) || isRateLimitText(detail):
			return nil, ErrRateLimited
		case strings.EqualFold(msg, "No transactions found"):
			return nil, nil
		default:
			return nil, fmt.Errorf("explorer error: %s: %s", msg, detail)
		}
	}

	result := doc.Get("result")
	if !result.IsArray() {
		return nil, fmt.Errorf("explorer: unexpected result shape: %s", result.Type)
	}

	var txs []Transaction
	result.ForEach(func(_, tx gjson.Result) bool {
		value, err := decimal.NewFromString(tx.Get("value").String())
		if err != nil {
			value = decimal.Zero
		}

		txs = append(txs, Transaction{
			Hash:      tx.Get("hash").String(),
			From:      strings.ToLower(tx.Get("from").String()),
			To:        strings.ToLower(tx.Get("to").String()),
			Timestamp: tx.Get("timeStamp").Int(),
			Block:     tx.Get("blockNumber").Int(),
			Value:     value.Shift(-weiScale),
			GasUsed:   tx.Get("gasUsed").Int(),
			GasPrice:  tx.Get("gasPrice").Int(),
			Failed:    tx.Get("isError").String() == "1",
		})
		return true
	})

	return txs, nil
}

// isRateLimitText classifies the explorer's in-band throttle notices. The
// API reports throttling only as message text, so this is the one place
// string matching survives; callers see the typed ErrRateLimited.
func isRateLimitText(s string) bool {
	return strings.Contains(strings.ToLower(s), "rate limit")
}
