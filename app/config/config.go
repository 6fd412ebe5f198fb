// Package config holds the bot configuration: the shared core sections plus
// database, gate, broadcast, session and metrics settings.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	coredatabase "github.com/m3rciful/gatebot/core/database"
)

const (
	defaultBroadcastPacing = 30 * time.Millisecond
	defaultSendTimeout     = 10 * time.Second
	defaultSessionTTL      = 30 * time.Minute
	defaultSweepInterval   = time.Minute
	defaultCacheSize       = 4096
)

// GateConfig configures the subscription gate.
type GateConfig struct {
	// SeedChannels are inserted into the channel store at startup if missing.
	SeedChannels []string `yaml:"seed_channels" envconfig:"GATE_SEED_CHANNELS"`
	// CacheTTL keeps positive membership answers for this long; zero queries live every time.
	CacheTTL  time.Duration `yaml:"cache_ttl" envconfig:"GATE_CACHE_TTL"`
	CacheSize int           `yaml:"cache_size" envconfig:"GATE_CACHE_SIZE"`
}

// BroadcastConfig configures mass messaging.
type BroadcastConfig struct {
	Pacing      time.Duration `yaml:"pacing" envconfig:"BROADCAST_PACING"`
	SendTimeout time.Duration `yaml:"send_timeout" envconfig:"BROADCAST_SEND_TIMEOUT"`
}

// SessionConfig configures admin workflow sessions.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"SESSION_SWEEP_INTERVAL"`
}

// MetricsConfig configures the observability HTTP server.
type MetricsConfig struct {
	// Listen is a host:port address; empty disables the server.
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// Config is the complete bot configuration.
type Config struct {
	Core      coreconfig.Config   `yaml:",inline"`
	Database  coredatabase.Config `yaml:"database"`
	Gate      GateConfig          `yaml:"gate"`
	Broadcast BroadcastConfig     `yaml:"broadcast"`
	Session   SessionConfig       `yaml:"session"`
	Metrics   MetricsConfig       `yaml:"metrics"`
}

// CoreConfig exposes the shared core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// Load reads path (optional) and the environment, then validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Core); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	seeds := c.Gate.SeedChannels[:0]
	for _, ch := range c.Gate.SeedChannels {
		if ch = strings.TrimSpace(ch); ch != "" {
			seeds = append(seeds, ch)
		}
	}
	c.Gate.SeedChannels = seeds
	if c.Gate.CacheTTL < 0 {
		return fmt.Errorf("gate.cache_ttl must be >= 0")
	}
	if c.Gate.CacheSize <= 0 {
		c.Gate.CacheSize = defaultCacheSize
	}

	if c.Broadcast.Pacing < 0 {
		return fmt.Errorf("broadcast.pacing must be >= 0")
	}
	if c.Broadcast.Pacing == 0 {
		c.Broadcast.Pacing = defaultBroadcastPacing
	}
	if c.Broadcast.SendTimeout <= 0 {
		c.Broadcast.SendTimeout = defaultSendTimeout
	}

	if c.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must be >= 0")
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = defaultSessionTTL
	}
	if c.Session.SweepInterval <= 0 {
		c.Session.SweepInterval = defaultSweepInterval
	}
	return nil
}
