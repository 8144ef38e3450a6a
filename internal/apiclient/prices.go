package apiclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

// TimeInfo carries the server's formatted display timestamps.
type TimeInfo struct {
	UTC string `json:"utc"`
	ET  string `json:"et"`
}

// PricePoint is a matched observation returned by the price endpoint.
type PricePoint struct {
	Symbol             string          `json:"symbol"`
	Price              decimal.Decimal `json:"price"`
	Timestamp          int64           `json:"timestamp"`
	RequestedTimestamp int64           `json:"requested_timestamp"`
	Seq                uint64          `json:"seq"`
	Source             string          `json:"source"`
	TimeInfo           TimeInfo        `json:"time_info"`
}

// LatestPrice is one entry from the latest-prices endpoint.
type LatestPrice struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Seq       uint64          `json:"seq"`
	TimeInfo  TimeInfo        `json:"time_info"`
}

type latestResponse struct {
	Prices []LatestPrice `json:"prices"`
}

// Health is the collector's health report.
type Health struct {
	Status     string           `json:"status"`
	Timestamp  int64            `json:"timestamp"`
	Instance   string           `json:"instance"`
	SourceMode string           `json:"source_mode"`
	Symbols    []string         `json:"symbols"`
	LastSeen   map[string]int64 `json:"last_seen"`

	// StreamConnected is nil when the collector runs without a push feed.
	StreamConnected *bool `json:"stream_connected"`

	TimeInfo TimeInfo `json:"time_info"`
}

// GetPrice fetches the price closest to timestamp within tolerance seconds.
// A tolerance of 0 uses the server default. A miss surfaces as an error
// satisfying IsNotFound.
func (c *Client) GetPrice(ctx context.Context, symbol string, timestamp, tolerance int64) (*PricePoint, error) {
	query := url.Values{}
	query.Set("timestamp", strconv.FormatInt(timestamp, 10))
	if tolerance > 0 {
		query.Set("tolerance", strconv.FormatInt(tolerance, 10))
	}

	var resp PricePoint
	if err := c.get(ctx, "/collector/price/"+symbol, query, &resp); err != nil {
		return nil, fmt.Errorf("get price %s: %w", symbol, err)
	}

	return &resp, nil
}

// GetLatest fetches the newest stored price per symbol.
func (c *Client) GetLatest(ctx context.Context) ([]LatestPrice, error) {
	var resp latestResponse
	if err := c.get(ctx, "/collector/latest", nil, &resp); err != nil {
		return nil, fmt.Errorf("get latest: %w", err)
	}

	return resp.Prices, nil
}

// GetHealth fetches the collector's health report.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var resp Health
	if err := c.get(ctx, "/collector/health", nil, &resp); err != nil {
		return nil, fmt.Errorf("get health: %w", err)
	}

	return &resp, nil
}
