// Package domain defines the core interfaces and types for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// Assessment methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Assessment operations
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	ListAssessmentsByCase(ctx context.Context, tenantID string, caseID string) ([]*Assessment, error)

	// Rulepack load history
	SaveRulepackLoad(ctx context.Context, load *RulepackLoad) error
	ListRulepackLoads(ctx context.Context, limit int) ([]*RulepackLoad, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RulepackLoad is an audit record of one load or reload attempt.
type RulepackLoad struct {
	ID       string    `json:"id"`
	Version  string    `json:"rulepack_version,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	Source   string    `json:"source"`
	Trigger  string    `json:"trigger"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Rulepack load statuses.
const (
	RulepackLoadApplied  = "applied"
	RulepackLoadRejected = "rejected"
)

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
