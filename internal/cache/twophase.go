package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const defaultLocalTTL = 5 * time.Minute

// TwoPhaseCache reads from a local LRU before Redis and writes through to
// both. Local entries live at most localTTL so replicas converge on Redis.
type TwoPhaseCache struct {
	local    store
	remote   store
	localTTL time.Duration
}

// NewTwoPhaseCache connects to Redis and fronts it with an LRU of
// cfg.LocalMaxSize entries.
func NewTwoPhaseCache(cfg domain.CacheConfig) (*TwoPhaseCache, error) {
	remote, err := NewRedisCache(cfg)
	if err != nil {
		return nil, err
	}
	return newTwoPhase(NewLRUCache(cfg.LocalMaxSize), remote, cfg.LocalTTL), nil
}

func newTwoPhase(local, remote store, localTTL time.Duration) *TwoPhaseCache {
	if localTTL <= 0 {
		localTTL = defaultLocalTTL
	}
	return &TwoPhaseCache{local: local, remote: remote, localTTL: localTTL}
}

// Get returns the local entry if present; otherwise it reads Redis and
// fills the local cache on a hit.
func (c *TwoPhaseCache) Get(ctx context.Context, tenantID string, key string) ([]byte, error) {
	if val, err := c.local.Get(ctx, tenantID, key); err != nil || val != nil {
		return val, err
	}

	val, err := c.remote.Get(ctx, tenantID, key)
	if err != nil || val == nil {
		return nil, err
	}
	if err := c.local.Set(ctx, tenantID, key, val, c.localTTL); err != nil {
		slog.Debug("local cache fill failed", "tenant_id", tenantID, "error", err)
	}
	return val, nil
}

// Set writes Redis first so a failed remote write leaves no local-only entry.
func (c *TwoPhaseCache) Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error {
	if err := c.remote.Set(ctx, tenantID, key, value, ttl); err != nil {
		return err
	}
	return c.local.Set(ctx, tenantID, key, value, min(ttl, c.localTTL))
}

// Delete removes the entry from both layers.
func (c *TwoPhaseCache) Delete(ctx context.Context, tenantID string, key string) error {
	return errors.Join(
		c.local.Delete(ctx, tenantID, key),
		c.remote.Delete(ctx, tenantID, key),
	)
}

// GetAssessment returns a cached assessment or nil.
func (c *TwoPhaseCache) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	return getAssessment(ctx, c, tenantID, assessmentID)
}

// SetAssessment caches an assessment in both layers.
func (c *TwoPhaseCache) SetAssessment(ctx context.Context, tenantID string, a *domain.Assessment, ttl time.Duration) error {
	return setAssessment(ctx, c, tenantID, a, ttl)
}

// Ping reports Redis health. The local layer cannot fail.
func (c *TwoPhaseCache) Ping(ctx context.Context) error {
	if err := c.remote.Ping(ctx); err != nil {
		return fmt.Errorf("cache: redis: %w", err)
	}
	return nil
}

// Close releases both layers.
func (c *TwoPhaseCache) Close() error {
	return errors.Join(c.local.Close(), c.remote.Close())
}
