package repository

// Schema definitions for the Kestrel audit store.
// Compatible with both SQLite and PostgreSQL.

const schemaCharges = `
CREATE TABLE IF NOT EXISTS charges (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    source TEXT NOT NULL,
    email TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_charges_email ON charges(email);
CREATE INDEX IF NOT EXISTS idx_charges_created ON charges(created_at);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    charge_id TEXT NOT NULL,
    risk_score REAL NOT NULL,
    risk_percentage INTEGER NOT NULL,
    is_high_risk INTEGER NOT NULL,
    triggered_rules TEXT NOT NULL,
    decision TEXT NOT NULL,
    explanation TEXT,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_charge ON assessments(charge_id);
CREATE INDEX IF NOT EXISTS idx_assessments_decision ON assessments(decision);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaCharges,
		schemaAssessments,
	}
}
