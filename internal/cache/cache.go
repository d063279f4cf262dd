// Package cache keeps recently evaluated assessments close to the API so
// read-backs skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// DefaultAssessmentTTL is used when the configuration leaves AssessmentTTL unset.
const DefaultAssessmentTTL = 24 * time.Hour

// ErrTenantRequired is returned for any operation without a tenant.
var ErrTenantRequired = errors.New("cache: tenant ID is required")

// New builds the cache selected by cfg.Type: "memory" is a process-local
// LRU, "redis" is Redis, fronted by a local LRU when EnableTwoPhase is set.
func New(cfg domain.CacheConfig) (domain.Cache, error) {
	switch cfg.Type {
	case "", "memory":
		return NewLRUCache(cfg.LocalMaxSize), nil
	case "redis":
		if cfg.EnableTwoPhase {
			c, err := NewTwoPhaseCache(cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		c, err := NewRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("cache: unsupported type %q", cfg.Type)
}

// store is the raw byte cache every backend implements.
type store interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// entryKey is the backend key for a tenant's entry, e.g.
// "kestrel:tenant-a:assessment:3f2c...".
func entryKey(tenantID, key string) (string, error) {
	if tenantID == "" {
		return "", ErrTenantRequired
	}
	return "kestrel:" + tenantID + ":" + key, nil
}

func assessmentKey(id string) string {
	return "assessment:" + id
}

func getAssessment(ctx context.Context, s store, tenantID, assessmentID string) (*domain.Assessment, error) {
	data, err := s.Get(ctx, tenantID, assessmentKey(assessmentID))
	if err != nil || data == nil {
		return nil, err
	}

	var a domain.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("cache: decode assessment %s: %w", assessmentID, err)
	}
	// The tenant is not part of the serialized assessment.
	a.TenantID = tenantID
	return &a, nil
}

func setAssessment(ctx context.Context, s store, tenantID string, a *domain.Assessment, ttl time.Duration) error {
	if a == nil || a.ID == "" {
		return errors.New("cache: assessment ID is required")
	}
	if ttl <= 0 {
		ttl = DefaultAssessmentTTL
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("cache: encode assessment %s: %w", a.ID, err)
	}
	return s.Set(ctx, tenantID, assessmentKey(a.ID), data, ttl)
}
