// enrich attaches collected prices to a file of trade timestamps. Each input
// line holds one timestamp in MM/DD/YY HH:MM:SS form, interpreted in the zone
// given by -tz-offset; output is a JSON report with the price of every
// configured symbol closest to each unique timestamp.
//
// Usage: go run ./cmd/enrich -input timestamps_trades -url http://localhost:8080
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/avolkov/pricevault/internal/apiclient"
)

// timestampLayout is the input line format.
const timestampLayout = "01/02/06 15:04:05"

// batchSize bounds how many timestamps are processed between pacing pauses,
// so a large input file does not hammer the collector.
const batchSize = 50

const batchPause = time.Second

type row struct {
	Timestamp   int64                       `json:"timestamp"`
	DatetimeUTC string                      `json:"datetime_utc"`
	Prices      map[string]*decimal.Decimal `json:"prices"` // null = no match
}

type metadata struct {
	InputFile        string         `json:"input_file"`
	CollectorURL     string         `json:"collector_url"`
	ToleranceSeconds int64          `json:"tolerance_seconds"`
	TzOffsetHours    int            `json:"tz_offset_hours"`
	TotalTimestamps  int            `json:"total_timestamps"`
	UniqueTimestamps int            `json:"unique_timestamps"`
	WithPrices       int            `json:"timestamps_with_prices"`
	PriceCoverage    float64        `json:"price_coverage"`
	PricesFoundBySym map[string]int `json:"prices_found"`
	GeneratedAt      string         `json:"generated_at"`
}

type report struct {
	Metadata   metadata `json:"metadata"`
	Timestamps []row    `json:"timestamps"`
}

func main() {
	input := flag.String("input", "", "input file, one MM/DD/YY HH:MM:SS timestamp per line (required)")
	output := flag.String("output", "", "output JSON file (default: <input>_with_prices.json)")
	baseURL := flag.String("url", "http://localhost:8080", "collector API base URL")
	symbolsFlag := flag.String("symbols", "BTCUSDT,ETHUSDT,SOLUSDT", "comma-separated symbols to attach")
	tolerance := flag.Int64("tolerance", 300, "lookup tolerance in seconds")
	tzOffset := flag.Int("tz-offset", 0, "input timezone offset from UTC in hours")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *input == "" {
		fmt.Fprintln(os.Stderr, "enrich: -input is required")
		flag.Usage()
		os.Exit(1)
	}
	if *output == "" {
		*output = strings.TrimSuffix(*input, ".txt") + "_with_prices.json"
	}

	symbols := strings.Split(*symbolsFlag, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	total, unique, err := readTimestamps(*input, *tzOffset)
	if err != nil {
		logger.Error("failed to read timestamps", "error", err)
		os.Exit(1)
	}
	logger.Info("timestamps loaded",
		"input", *input,
		"total", total,
		"unique", len(unique),
	)

	client := apiclient.NewClient(*baseURL, apiclient.WithLogger(logger))
	ctx := context.Background()

	rows := make([]row, 0, len(unique))
	found := make(map[string]int, len(symbols))

	for i, ts := range unique {
		rows = append(rows, enrichTimestamp(ctx, client, logger, symbols, ts, *tolerance))

		if (i+1)%100 == 0 {
			logger.Info("progress", "processed", i+1, "remaining", len(unique)-i-1)
		}
		if (i+1)%batchSize == 0 && i+1 < len(unique) {
			time.Sleep(batchPause)
		}
	}

	withPrices := 0
	for _, r := range rows {
		any := false
		for sym, price := range r.Prices {
			if price != nil {
				found[sym]++
				any = true
			}
		}
		if any {
			withPrices++
		}
	}

	coverage := 0.0
	if len(unique) > 0 {
		coverage = float64(withPrices) / float64(len(unique))
	}

	out := report{
		Metadata: metadata{
			InputFile:        *input,
			CollectorURL:     *baseURL,
			ToleranceSeconds: *tolerance,
			TzOffsetHours:    *tzOffset,
			TotalTimestamps:  total,
			UniqueTimestamps: len(unique),
			WithPrices:       withPrices,
			PriceCoverage:    coverage,
			PricesFoundBySym: found,
			GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		},
		Timestamps: rows,
	}

	if err := writeReport(*output, out); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	logger.Info("enrichment complete",
		"output", *output,
		"with_prices", withPrices,
		"coverage", fmt.Sprintf("%.1f%%", coverage*100),
	)
}

// readTimestamps parses the input file in the given UTC offset, returning
// the raw line count and the sorted unique unix timestamps.
func readTimestamps(path string, tzOffsetHours int) (int, []int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, err
	}
	defer f.Close()

	loc := time.FixedZone(fmt.Sprintf("UTC%+d", tzOffsetHours), tzOffsetHours*3600)

	total := 0
	seen := make(map[int64]struct{})

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		t, err := time.ParseInLocation(timestampLayout, line, loc)
		if err != nil {
			return 0, nil, fmt.Errorf("parse timestamp %q: %w", line, err)
		}
		total++
		seen[t.Unix()] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, err
	}

	unique := make([]int64, 0, len(seen))
	for ts := range seen {
		unique = append(unique, ts)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	return total, unique, nil
}

// enrichTimestamp fetches all symbol prices for one timestamp concurrently.
// A miss (404) leaves the price null; other errors are logged and also leave
// the price null rather than aborting the run.
func enrichTimestamp(ctx context.Context, client *apiclient.Client, logger *slog.Logger, symbols []string, ts, tolerance int64) row {
	prices := make([]*decimal.Decimal, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range symbols {
		g.Go(func() error {
			point, err := client.GetPrice(gctx, sym, ts, tolerance)
			if err != nil {
				if !apiclient.IsNotFound(err) {
					logger.Warn("price fetch failed", "symbol", sym, "timestamp", ts, "error", err)
				}
				return nil
			}
			prices[i] = &point.Price
			return nil
		})
	}
	_ = g.Wait()

	out := row{
		Timestamp:   ts,
		DatetimeUTC: time.Unix(ts, 0).UTC().Format(time.RFC3339),
		Prices:      make(map[string]*decimal.Decimal, len(symbols)),
	}
	for i, sym := range symbols {
		out.Prices[sym] = prices[i]
	}
	return out
}

func writeReport(path string, r report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
