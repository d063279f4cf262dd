package repository

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

// schemaAssessments stores one row per evaluation. The indexed columns are
// copies of fields inside payload, which holds the full assessment JSON.
const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    case_id TEXT NOT NULL,
    route TEXT NOT NULL,
    risk_label TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    rulepack_version TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_case ON assessments(tenant_id, case_id);
CREATE INDEX IF NOT EXISTS idx_assessments_route ON assessments(tenant_id, route);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(tenant_id, timestamp);
`

// schemaRulepackLoads is the audit log of rulepack load attempts, both
// applied and rejected.
const schemaRulepackLoads = `
CREATE TABLE IF NOT EXISTS rulepack_loads (
    id TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    checksum TEXT NOT NULL,
    source TEXT NOT NULL,
    load_trigger TEXT NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL,
    loaded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rulepack_loads_loaded_at ON rulepack_loads(loaded_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaAssessments,
		schemaRulepackLoads,
	}
}
