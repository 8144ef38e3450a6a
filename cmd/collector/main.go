// collector runs the price collection service: it ingests observations from
// the configured upstream feed, maintains the memory and durable tiers, and
// serves the query API.
//
// Usage: go run ./cmd/collector --config configs/collector.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/avolkov/pricevault/internal/buffer"
	"github.com/avolkov/pricevault/internal/chainlink"
	"github.com/avolkov/pricevault/internal/config"
	"github.com/avolkov/pricevault/internal/feed"
	"github.com/avolkov/pricevault/internal/httpapi"
	"github.com/avolkov/pricevault/internal/ingest"
	"github.com/avolkov/pricevault/internal/metrics"
	"github.com/avolkov/pricevault/internal/query"
	"github.com/avolkov/pricevault/internal/reaper"
	"github.com/avolkov/pricevault/internal/rtds"
	"github.com/avolkov/pricevault/internal/store"
	"github.com/avolkov/pricevault/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	flag.Parse()

	// Bootstrap logger; replaced with the configured level once config loads.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Best-effort .env for ${VAR} interpolation in the config file.
	_ = godotenv.Load()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"source_mode", cfg.Source.Mode,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	symbols := make([]string, 0, len(cfg.Source.Symbols))
	for sym := range cfg.Source.Symbols {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	m := metrics.New("pricevault")

	// Storage tiers.
	buf := buffer.New(cfg.Buffer.MaxAge)

	st, err := store.Open(store.Config{
		DataDir:       cfg.Storage.DataDir,
		FlushInterval: cfg.Storage.FlushInterval,
	}, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if err := st.Start(ctx); err != nil {
		logger.Error("failed to start store", "error", err)
		os.Exit(1)
	}
	logger.Info("store opened", "data_dir", cfg.Storage.DataDir, "records", st.Len())

	pipeline := ingest.NewPipeline(buf, st, m, logger)

	// Upstream feed per the configured mode.
	var (
		poller   *ingest.Poller
		streamer *ingest.Streamer
		stream   httpapi.StreamState
	)

	pollCfg := ingest.PollConfig{
		Interval:    cfg.Source.PollInterval,
		Timeout:     cfg.Source.PollTimeout,
		Concurrency: cfg.Source.PollConcurrency,
	}

	switch cfg.Source.Mode {
	case "rtds":
		src := rtds.New(cfg.Source.RTDS, symbols, logger)
		stream = src
		streamer = ingest.NewStreamer(src, pipeline, m, logger)
		if err := streamer.Start(ctx); err != nil {
			logger.Error("failed to start streamer", "error", err)
			os.Exit(1)
		}

	case "chainlink":
		dial := func(ctx context.Context, endpoint string) (feed.PollSource, error) {
			return chainlink.New(endpoint, cfg.Source.Symbols,
				chainlink.WithLogger(logger),
				chainlink.WithTimeout(cfg.Source.PollTimeout),
			), nil
		}
		failover, err := feed.NewFailover(feed.FailoverConfig{
			Endpoints:   cfg.Source.Chainlink.Endpoints,
			MaxRetries:  cfg.Source.Chainlink.MaxRetries,
			BackoffBase: cfg.Source.Chainlink.BackoffBase,
			OnRotate:    m.RecordRotation,
		}, dial, logger)
		if err != nil {
			logger.Error("failed to create failover", "error", err)
			os.Exit(1)
		}
		poller = ingest.NewPoller(pollCfg, failover, pipeline, symbols, m, logger)
		if err := poller.Start(ctx); err != nil {
			logger.Error("failed to start poller", "error", err)
			os.Exit(1)
		}

	case "sim":
		poller = ingest.NewPoller(pollCfg, feed.NewSimulator(symbols), pipeline, symbols, m, logger)
		if err := poller.Start(ctx); err != nil {
			logger.Error("failed to start poller", "error", err)
			os.Exit(1)
		}
	}

	// Retention reaper over both tiers.
	rp := reaper.New(cfg.Reaper.Schedule, cfg.Storage.Retention, buf, st, m, logger)
	if err := rp.Start(ctx); err != nil {
		logger.Error("failed to start reaper", "error", err)
		os.Exit(1)
	}

	// Query engine and HTTP API.
	loc, err := time.LoadLocation(cfg.API.Timezone)
	if err != nil {
		logger.Error("invalid display timezone", "error", err)
		os.Exit(1)
	}
	engine := query.New(buf, st, symbols, loc, m, logger)

	apiServer := httpapi.New(cfg.API, httpapi.Deps{
		Engine:      engine,
		Pipeline:    pipeline,
		Metrics:     m,
		Logger:      logger,
		Instance:    cfg.Instance.ID,
		SourceMode:  cfg.Source.Mode,
		Stream:      stream,
		BufferAge:   cfg.Buffer.MaxAge,
		Retention:   cfg.Storage.Retention,
		MetricsPath: cfg.Metrics.Path,
	})
	if err := apiServer.Start(ctx); err != nil {
		logger.Error("failed to start api server", "error", err)
		os.Exit(1)
	}

	logger.Info("collector running",
		"symbols", symbols,
		"api_port", cfg.API.Port,
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	// Feed loops first, so nothing writes while the tiers drain.
	if streamer != nil {
		if err := streamer.Stop(shutdownCtx); err != nil {
			logger.Warn("streamer stop failed", "error", err)
		}
	}
	if poller != nil {
		if err := poller.Stop(shutdownCtx); err != nil {
			logger.Warn("poller stop failed", "error", err)
		}
	}
	if err := rp.Stop(shutdownCtx); err != nil {
		logger.Warn("reaper stop failed", "error", err)
	}
	if err := st.Stop(shutdownCtx); err != nil {
		logger.Warn("store stop failed", "error", err)
	}
	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("api server stop failed", "error", err)
	}

	logger.Info("collector stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
