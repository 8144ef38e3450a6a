// feedtest connects to the configured RTDS push feed and streams parsed
// observations to the console. Useful for checking topic, symbols, and
// reconnect behavior without running the full collector.
//
// Usage: go run ./cmd/feedtest --config configs/collector.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/avolkov/pricevault/internal/config"
	"github.com/avolkov/pricevault/internal/rtds"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	symbols := make([]string, 0, len(cfg.Source.Symbols))
	for sym := range cfg.Source.Symbols {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	source := rtds.New(cfg.Source.RTDS, symbols, logger)
	if err := source.Start(ctx); err != nil {
		logger.Error("failed to start stream source", "error", err)
		os.Exit(1)
	}

	logger.Info("streaming started - press Ctrl+C to stop",
		"url", cfg.Source.RTDS.URL,
		"topic", cfg.Source.RTDS.Topic,
		"symbols", symbols,
	)

	statsTicker := time.NewTicker(10 * time.Second)
	defer statsTicker.Stop()

	var received int
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := source.Stop(shutdownCtx); err != nil {
				logger.Warn("source stop failed", "error", err)
			}
			logger.Info("feedtest stopped", "observations", received)
			return

		case obs := <-source.Observations():
			received++
			fmt.Printf("[PRICE] symbol=%s price=%s observed_at=%d\n",
				obs.Symbol, obs.Price, obs.ObservedAt)

		case err := <-source.Errors():
			logger.Warn("feed error", "error", err)

		case <-statsTicker.C:
			logger.Info("stats",
				"connected", source.IsConnected(),
				"observations", received,
			)
		}
	}
}
