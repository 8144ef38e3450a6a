package config

import "time"

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Log      LogConfig      `yaml:"log"`
	Source   SourceConfig   `yaml:"source"`
	Buffer   BufferConfig   `yaml:"buffer"`
	Storage  StorageConfig  `yaml:"storage"`
	Reaper   ReaperConfig   `yaml:"reaper"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SourceConfig selects and configures the upstream price feed.
type SourceConfig struct {
	Mode string `yaml:"mode"` // "rtds", "chainlink", or "sim"

	// Symbols maps canonical symbols to aggregator contract addresses.
	// Addresses are only consulted in chainlink mode; other modes use the keys.
	Symbols map[string]string `yaml:"symbols"`

	PollInterval    time.Duration `yaml:"poll_interval"`
	PollTimeout     time.Duration `yaml:"poll_timeout"`
	PollConcurrency int           `yaml:"poll_concurrency"`

	RTDS      RTDSConfig      `yaml:"rtds"`
	Chainlink ChainlinkConfig `yaml:"chainlink"`
}

// RTDSConfig holds push-feed websocket settings.
type RTDSConfig struct {
	URL              string        `yaml:"url"`
	Topic            string        `yaml:"topic"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	BufferSize       int           `yaml:"buffer_size"` // observation channel capacity
}

// ChainlinkConfig holds on-chain poll-feed settings.
type ChainlinkConfig struct {
	Endpoints   []string      `yaml:"endpoints"` // candidate JSON-RPC endpoints, tried in order
	MaxRetries  int           `yaml:"max_retries"`
	BackoffBase time.Duration `yaml:"backoff_base"`
}

// BufferConfig holds memory-tier settings.
type BufferConfig struct {
	MaxAge time.Duration `yaml:"max_age"`
}

// StorageConfig holds durable-tier settings.
type StorageConfig struct {
	DataDir       string        `yaml:"data_dir"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Retention     time.Duration `yaml:"retention"`
}

// ReaperConfig holds retention sweep settings.
type ReaperConfig struct {
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 10m"
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Port            int           `yaml:"port"`
	Timezone        string        `yaml:"timezone"` // display zone for formatted timestamps
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}
