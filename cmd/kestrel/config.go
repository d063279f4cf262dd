package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// loadConfig builds the service configuration from the tier defaults and
// environment overrides.
func loadConfig(getenv func(string) string) (*domain.Config, error) {
	tier, err := domain.ParseTier(getenv("KESTREL_TIER"))
	if err != nil {
		return nil, fmt.Errorf("invalid KESTREL_TIER: %w", err)
	}
	cfg := domain.DefaultConfig(tier)

	if v := getenv("KESTREL_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Server.Port = port
	}
	if v := getenv("RULEPACK_PATH"); v != "" {
		cfg.Rulepack.Path = v
	}
	if v := getenv("KESTREL_RULEPACK_WATCH"); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid KESTREL_RULEPACK_WATCH %q", v)
		}
		cfg.Rulepack.Watch = watch
	}
	if v := getenv("KESTREL_DB_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	cfg.Logging = loggingConfig(getenv, false)
	return cfg, nil
}

// loggingConfig reads KESTREL_LOG_LEVEL and KESTREL_LOG_FORMAT. Debug, from
// the flag or KESTREL_DEBUG, wins over the configured level.
func loggingConfig(getenv func(string) string, debug bool) domain.LoggingConfig {
	lc := domain.DefaultConfig(domain.TierCommunity).Logging
	if v := getenv("KESTREL_LOG_LEVEL"); v != "" {
		lc.Level = v
	}
	if v := getenv("KESTREL_LOG_FORMAT"); v != "" {
		lc.Format = v
	}
	if debug || getenv("KESTREL_DEBUG") == "true" {
		lc.Level = "debug"
	}
	return lc
}

// tenantList parses a comma-separated tenant list, dropping blanks.
func tenantList(v string) []string {
	tenants := []string{}
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}
