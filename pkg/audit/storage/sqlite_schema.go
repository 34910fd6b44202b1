package storage

// sqliteSchema creates the audit tables. Diffs are stored as a JSON
// sub-document: they are read back whole for display, never filtered on.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS evaluation_records (
	id             TEXT PRIMARY KEY,
	policy_id      TEXT NOT NULL,
	policy_version INTEGER NOT NULL,
	algo_key       TEXT NOT NULL,
	run_id         TEXT NOT NULL,
	result         TEXT NOT NULL,
	allowed_count  INTEGER NOT NULL,
	modified_count INTEGER NOT NULL,
	blocked_count  INTEGER NOT NULL,
	note_count     INTEGER NOT NULL,
	risk_cost      REAL NOT NULL,
	duration_ns    INTEGER NOT NULL,
	diffs          TEXT,
	created_at     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_policy  ON evaluation_records (policy_id, created_at);
CREATE INDEX IF NOT EXISTS idx_records_algo    ON evaluation_records (algo_key, created_at);
CREATE INDEX IF NOT EXISTS idx_records_created ON evaluation_records (created_at);
`
