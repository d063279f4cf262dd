package domain

import (
	"fmt"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Tier       Tier             `json:"tier"`
	Server     ServerConfig     `json:"server"`
	Rulepack   RulepackConfig   `json:"rulepack"`
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Logging    LoggingConfig    `json:"logging"`
}

// ServerConfig holds HTTP listener settings. Timeouts are in seconds.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`
	WriteTimeout int    `json:"writeTimeout"`
}

// RulepackConfig describes where the rulepack comes from.
type RulepackConfig struct {
	Path string `json:"path"`

	// Watch reloads the rulepack when the file changes. Bursts of file
	// events within WatchDebounce produce one reload.
	Watch         bool          `json:"watch"`
	WatchDebounce time.Duration `json:"watchDebounce"`
}

// LoggingConfig selects the slog level (debug, info, warn, error) and
// handler (json, text).
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Tier picks the backing infrastructure: community runs on SQLite, an
// in-process LRU and channels; pro on PostgreSQL, Redis and NATS.
type Tier string

const (
	TierCommunity Tier = "community"
	TierPro       Tier = "pro"
)

// ParseTier accepts "community", "pro" or "" (community).
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case "", TierCommunity:
		return TierCommunity, nil
	case TierPro:
		return TierPro, nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// DefaultConfig returns the defaults for tier.
func DefaultConfig(tier Tier) *Config {
	cfg := &Config{
		Tier: tier,
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Rulepack: RulepackConfig{
			Path:          "rulepack.yaml",
			WatchDebounce: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}

	if tier == TierPro {
		cfg.Repository = RepositoryConfig{
			Driver:       "postgres",
			PostgresHost: "localhost",
			PostgresPort: 5432,
			PostgresDB:   "kestrel",
		}
		cfg.Cache = CacheConfig{
			Type:           "redis",
			RedisAddr:      "localhost:6379",
			EnableTwoPhase: true,
			LocalMaxSize:   1000,
			LocalTTL:       time.Minute,
			AssessmentTTL:  24 * time.Hour,
		}
		cfg.EventBus = EventBusConfig{
			Type:              "nats",
			NATSUrl:           "nats://localhost:4222",
			NATSMaxReconnects: 10,
			NATSReconnectWait: 5,
		}
		return cfg
	}

	cfg.Repository = RepositoryConfig{Driver: "sqlite", SQLitePath: "./kestrel.db"}
	cfg.Cache = CacheConfig{
		Type:          "memory",
		LocalMaxSize:  10000,
		AssessmentTTL: 24 * time.Hour,
	}
	cfg.EventBus = EventBusConfig{Type: "channel", ChannelBufferSize: 1000}
	return cfg
}
