package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}

	if err := c.Source.validate(); err != nil {
		return err
	}

	if c.Buffer.MaxAge <= 0 {
		return errors.New("buffer.max_age must be > 0")
	}

	if c.Storage.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if c.Storage.FlushInterval <= 0 {
		return errors.New("storage.flush_interval must be > 0")
	}
	if c.Storage.Retention <= 0 {
		return errors.New("storage.retention must be > 0")
	}

	if c.Reaper.Schedule == "" {
		return errors.New("reaper.schedule is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
	}
	if _, err := time.LoadLocation(c.API.Timezone); err != nil {
		return fmt.Errorf("api.timezone %q is not a valid location: %w", c.API.Timezone, err)
	}

	return nil
}

func (s *SourceConfig) validate() error {
	switch s.Mode {
	case "rtds", "chainlink", "sim":
	default:
		return fmt.Errorf("source.mode must be one of rtds, chainlink, sim, got %q", s.Mode)
	}

	if len(s.Symbols) == 0 {
		return errors.New("source.symbols must list at least one symbol")
	}
	if s.PollInterval <= 0 {
		return errors.New("source.poll_interval must be > 0")
	}
	if s.PollConcurrency < 1 {
		return errors.New("source.poll_concurrency must be >= 1")
	}

	switch s.Mode {
	case "rtds":
		if s.RTDS.URL == "" {
			return errors.New("source.rtds.url is required in rtds mode")
		}
		if s.RTDS.Topic == "" {
			return errors.New("source.rtds.topic is required in rtds mode")
		}
		if s.RTDS.PingInterval <= 0 {
			return errors.New("source.rtds.ping_interval must be > 0")
		}
		if s.RTDS.ReconnectDelay <= 0 {
			return errors.New("source.rtds.reconnect_delay must be > 0")
		}
	case "chainlink":
		if len(s.Chainlink.Endpoints) == 0 {
			return errors.New("source.chainlink.endpoints must list at least one endpoint")
		}
		if s.Chainlink.MaxRetries < 1 {
			return errors.New("source.chainlink.max_retries must be >= 1")
		}
		if s.Chainlink.BackoffBase <= 0 {
			return errors.New("source.chainlink.backoff_base must be > 0")
		}
		for sym, addr := range s.Symbols {
			if addr == "" {
				return fmt.Errorf("source.symbols.%s needs an aggregator address in chainlink mode", sym)
			}
		}
	}

	return nil
}
