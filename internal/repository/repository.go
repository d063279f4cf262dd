// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// DefaultRulepackLoadLimit caps ListRulepackLoads when no limit is given.
const DefaultRulepackLoadLimit = 50

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New opens the configured database and applies the schema.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveAssessment stores an assessment with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: assessment ID is required", ErrInvalidInput)
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assessment: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, tenant_id, case_id, route, risk_label, risk_score,
			rulepack_version, timestamp, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.CaseID,
		string(a.Route), string(a.RiskLabel), a.RiskScore,
		a.RulepackVersion, a.Timestamp.Time(),
		string(payload),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, payload
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	var owner, payload string
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID).Scan(&owner, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return decodeAssessment(owner, payload)
}

// ListAssessmentsByCase returns every assessment of a case, newest first.
func (r *SQLRepository) ListAssessmentsByCase(ctx context.Context, tenantID string, caseID string) ([]*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, payload
		FROM assessments
		WHERE tenant_id = ? AND case_id = ?
		ORDER BY timestamp DESC, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := []*domain.Assessment{}
	for rows.Next() {
		var owner, payload string
		if err := rows.Scan(&owner, &payload); err != nil {
			return nil, err
		}
		a, err := decodeAssessment(owner, payload)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}

	return assessments, rows.Err()
}

func decodeAssessment(tenantID, payload string) (*domain.Assessment, error) {
	var a domain.Assessment
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return nil, fmt.Errorf("failed to parse assessment payload: %w", err)
	}
	a.TenantID = tenantID
	return &a, nil
}

// SaveRulepackLoad appends a rulepack load record.
func (r *SQLRepository) SaveRulepackLoad(ctx context.Context, load *domain.RulepackLoad) error {
	if load == nil {
		return fmt.Errorf("%w: load is required", ErrInvalidInput)
	}
	if load.ID == "" {
		load.ID = uuid.New().String()
	}

	query := `
		INSERT INTO rulepack_loads (
			id, version, checksum, source, load_trigger, status, error, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		load.ID, load.Version, load.Checksum, load.Source,
		load.Trigger, load.Status, load.Error, load.LoadedAt.UTC(),
	)
	return err
}

// ListRulepackLoads returns the most recent load records, newest first.
func (r *SQLRepository) ListRulepackLoads(ctx context.Context, limit int) ([]*domain.RulepackLoad, error) {
	if limit <= 0 {
		limit = DefaultRulepackLoadLimit
	}

	query := `
		SELECT id, version, checksum, source, load_trigger, status, error, loaded_at
		FROM rulepack_loads
		ORDER BY loaded_at DESC, id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loads := []*domain.RulepackLoad{}
	for rows.Next() {
		var l domain.RulepackLoad
		if err := rows.Scan(
			&l.ID, &l.Version, &l.Checksum, &l.Source,
			&l.Trigger, &l.Status, &l.Error, &l.LoadedAt,
		); err != nil {
			return nil, err
		}
		loads = append(loads, &l)
	}

	return loads, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
