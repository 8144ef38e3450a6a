package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultLogLevel         = "info"
	DefaultSourceMode       = "rtds"
	DefaultPollInterval     = 1 * time.Second
	DefaultPollTimeout      = 10 * time.Second
	DefaultPollConcurrency  = 3
	DefaultRTDSURL          = "wss://ws-live-data.polymarket.com"
	DefaultRTDSTopic        = "crypto_prices_chainlink"
	DefaultPingInterval     = 30 * time.Second
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultStreamBuffer     = 256
	DefaultMaxRetries       = 3
	DefaultBackoffBase      = 1 * time.Second
	DefaultBufferMaxAge     = 60 * time.Second
	DefaultDataDir          = "data"
	DefaultFlushInterval    = 1 * time.Second
	DefaultRetention        = 12 * time.Hour
	DefaultReaperSchedule   = "@every 10m"
	DefaultAPIPort          = 8080
	DefaultTimezone         = "America/New_York"
	DefaultReadTimeout      = 10 * time.Second
	DefaultWriteTimeout     = 15 * time.Second
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultMetricsPath      = "/metrics"
)

// Default symbol set with Chainlink aggregator proxies on Polygon.
var defaultSymbols = map[string]string{
	"BTCUSDT": "0xc907E116054Ad103354f2D350FD2514433D57F6f",
	"ETHUSDT": "0xF9680D99D6C9589e2a93a78A04A279e509205945",
	"SOLUSDT": "0x10C8264C0935b3B9870013e057f330Ff3e9C56dC",
}

func (c *CollectorConfig) applyDefaults() {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	// Source defaults
	if c.Source.Mode == "" {
		c.Source.Mode = DefaultSourceMode
	}
	if len(c.Source.Symbols) == 0 {
		c.Source.Symbols = make(map[string]string, len(defaultSymbols))
		for sym, addr := range defaultSymbols {
			c.Source.Symbols[sym] = addr
		}
	}
	if c.Source.PollInterval == 0 {
		c.Source.PollInterval = DefaultPollInterval
	}
	if c.Source.PollTimeout == 0 {
		c.Source.PollTimeout = DefaultPollTimeout
	}
	if c.Source.PollConcurrency == 0 {
		c.Source.PollConcurrency = DefaultPollConcurrency
	}

	// RTDS defaults
	if c.Source.RTDS.URL == "" {
		c.Source.RTDS.URL = DefaultRTDSURL
	}
	if c.Source.RTDS.Topic == "" {
		c.Source.RTDS.Topic = DefaultRTDSTopic
	}
	if c.Source.RTDS.PingInterval == 0 {
		c.Source.RTDS.PingInterval = DefaultPingInterval
	}
	if c.Source.RTDS.ReconnectDelay == 0 {
		c.Source.RTDS.ReconnectDelay = DefaultReconnectDelay
	}
	if c.Source.RTDS.HandshakeTimeout == 0 {
		c.Source.RTDS.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Source.RTDS.BufferSize == 0 {
		c.Source.RTDS.BufferSize = DefaultStreamBuffer
	}

	// Chainlink defaults
	if c.Source.Chainlink.MaxRetries == 0 {
		c.Source.Chainlink.MaxRetries = DefaultMaxRetries
	}
	if c.Source.Chainlink.BackoffBase == 0 {
		c.Source.Chainlink.BackoffBase = DefaultBackoffBase
	}

	// Buffer defaults
	if c.Buffer.MaxAge == 0 {
		c.Buffer.MaxAge = DefaultBufferMaxAge
	}

	// Storage defaults
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = DefaultDataDir
	}
	if c.Storage.FlushInterval == 0 {
		c.Storage.FlushInterval = DefaultFlushInterval
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = DefaultRetention
	}

	// Reaper defaults
	if c.Reaper.Schedule == "" {
		c.Reaper.Schedule = DefaultReaperSchedule
	}

	// API defaults
	if c.API.Port == 0 {
		c.API.Port = DefaultAPIPort
	}
	if c.API.Timezone == "" {
		c.API.Timezone = DefaultTimezone
	}
	if c.API.ReadTimeout == 0 {
		c.API.ReadTimeout = DefaultReadTimeout
	}
	if c.API.WriteTimeout == 0 {
		c.API.WriteTimeout = DefaultWriteTimeout
	}
	if c.API.ShutdownTimeout == 0 {
		c.API.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Metrics defaults
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
