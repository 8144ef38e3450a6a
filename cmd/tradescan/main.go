// tradescan pulls every transaction for an address from a block explorer,
// keeps the ones sent to known DEX routers, and attaches collected prices at
// each trade's timestamp. The result is a JSON report for offline analysis.
//
// Usage: go run ./cmd/tradescan -address 0x... -api-key $ETHERSCAN_API_KEY
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/avolkov/pricevault/internal/apiclient"
	"github.com/avolkov/pricevault/internal/explorer"
)

// dexRouters maps known Polygon DEX router contracts to their venue names.
// Only transactions sent to one of these count as trades.
var dexRouters = map[string]string{
	"0x1b02da8cb0d097eb8d57a175b88c7d8b47997506": "SushiSwap",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3",
	"0xa5e0829caced8ffdd4de3c43696c57f7d7a678ff": "QuickSwap",
	"0xc0788a3ad43d79aa53b7565258c72a4204c9a2cc": "QuickSwap V3",
	"0x94930a328162957ff1dd48900af67b5439336cbd": "ApeSwap",
	"0x3a1d87f206d12415f5b0a33e786967680aab4f6d": "Polycat",
	"0x8c1a3cf8f83074169fe5d7ad50b978e1cd6b37da": "DFYN",
}

type trade struct {
	TxHash    string                      `json:"tx_hash"`
	Timestamp int64                       `json:"timestamp"`
	Datetime  string                      `json:"datetime"`
	Block     int64                       `json:"block"`
	Contract  string                      `json:"contract"`
	DEX       string                      `json:"dex"`
	Value     decimal.Decimal             `json:"value"`
	GasUsed   int64                       `json:"gas_used"`
	GasPrice  int64                       `json:"gas_price"`
	Prices    map[string]*decimal.Decimal `json:"prices"` // null = no match
}

type report struct {
	Metadata struct {
		Address           string `json:"address"`
		TotalTransactions int    `json:"total_transactions"`
		DEXTrades         int    `json:"dex_trades"`
		TradesWithPrices  int    `json:"trades_with_prices"`
		PriceSource       string `json:"price_source"`
		GeneratedAt       string `json:"generated_at"`
	} `json:"metadata"`
	Trades []trade `json:"trades"`
}

func main() {
	address := flag.String("address", "", "account address to scan (required)")
	apiKey := flag.String("api-key", os.Getenv("ETHERSCAN_API_KEY"), "explorer API key")
	chainID := flag.String("chain", "137", "explorer chain id")
	baseURL := flag.String("url", "http://localhost:8080", "collector API base URL")
	output := flag.String("output", "", "output JSON file (default: trades_<address>_<now>.json)")
	tolerance := flag.Int64("tolerance", 300, "price lookup tolerance in seconds")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *address == "" {
		fmt.Fprintln(os.Stderr, "tradescan: -address is required")
		flag.Usage()
		os.Exit(1)
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "tradescan: -api-key or ETHERSCAN_API_KEY is required")
		os.Exit(1)
	}
	if *output == "" {
		*output = fmt.Sprintf("trades_%s_%d.json", *address, time.Now().Unix())
	}

	ctx := context.Background()

	scanner := explorer.New(*apiKey,
		explorer.WithChainID(*chainID),
		explorer.WithLogger(logger),
	)

	logger.Info("fetching transactions", "address", *address)
	txs, err := scanner.Transactions(ctx, *address)
	if err != nil {
		logger.Error("failed to fetch transactions", "error", err)
		os.Exit(1)
	}
	logger.Info("transactions fetched", "count", len(txs))

	trades := filterTrades(txs)
	logger.Info("dex trades found", "count", len(trades))

	client := apiclient.NewClient(*baseURL, apiclient.WithLogger(logger))
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	withPrices := 0
	for i := range trades {
		attachPrices(ctx, client, logger, &trades[i], symbols, *tolerance)
		for _, p := range trades[i].Prices {
			if p != nil {
				withPrices++
				break
			}
		}
		// Pace the collector between trades.
		time.Sleep(100 * time.Millisecond)
	}

	var out report
	out.Metadata.Address = *address
	out.Metadata.TotalTransactions = len(txs)
	out.Metadata.DEXTrades = len(trades)
	out.Metadata.TradesWithPrices = withPrices
	out.Metadata.PriceSource = *baseURL
	out.Metadata.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	out.Trades = trades

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		logger.Error("failed to encode report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		logger.Error("failed to write report", "error", err)
		os.Exit(1)
	}

	logger.Info("scan complete",
		"output", *output,
		"trades", len(trades),
		"with_prices", withPrices,
	)
	printSummary(trades)
}

// filterTrades keeps successful transactions whose destination is a known
// DEX router.
func filterTrades(txs []explorer.Transaction) []trade {
	var trades []trade
	for _, tx := range txs {
		if tx.Failed {
			continue
		}
		dex, ok := dexRouters[tx.To]
		if !ok {
			continue
		}
		trades = append(trades, trade{
			TxHash:    tx.Hash,
			Timestamp: tx.Timestamp,
			Datetime:  time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339),
			Block:     tx.Block,
			Contract:  tx.To,
			DEX:       dex,
			Value:     tx.Value,
			GasUsed:   tx.GasUsed,
			GasPrice:  tx.GasPrice,
		})
	}
	return trades
}

// attachPrices looks up each symbol's price at the trade timestamp. Misses
// and fetch failures leave the symbol's price null.
func attachPrices(ctx context.Context, client *apiclient.Client, logger *slog.Logger, tr *trade, symbols []string, tolerance int64) {
	tr.Prices = make(map[string]*decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		point, err := client.GetPrice(ctx, sym, tr.Timestamp, tolerance)
		if err != nil {
			if !apiclient.IsNotFound(err) {
				logger.Warn("price fetch failed", "symbol", sym, "tx", tr.TxHash, "error", err)
			}
			tr.Prices[sym] = nil
			continue
		}
		tr.Prices[sym] = &point.Price
	}
}

func printSummary(trades []trade) {
	counts := make(map[string]int)
	for _, tr := range trades {
		counts[tr.DEX]++
	}

	venues := make([]string, 0, len(counts))
	for dex := range counts {
		venues = append(venues, dex)
	}
	sort.Slice(venues, func(i, j int) bool { return counts[venues[i]] > counts[venues[j]] })

	fmt.Println("DEX usage:")
	for _, dex := range venues {
		fmt.Printf("  %s: %d trades\n", dex, counts[dex])
	}
}
