package domain

import (
	"context"
	"time"
)

// Cache holds recently evaluated assessments for read-back. Entries are
// scoped by tenant; a miss is (nil, nil).
type Cache interface {
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, tenantID string, key string) error

	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	SetAssessment(ctx context.Context, tenantID string, a *Assessment, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig selects and tunes the assessment cache.
type CacheConfig struct {
	// Type is "memory" or "redis".
	Type string

	LocalMaxSize int
	// LocalTTL caps how long the local layer of a two-phase cache keeps an
	// entry.
	LocalTTL time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// EnableTwoPhase fronts Redis with a local LRU.
	EnableTwoPhase bool

	// AssessmentTTL is how long evaluated assessments stay cached.
	AssessmentTTL time.Duration
}
