// Package postgres owns the relational schema shared by the store
// implementations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the complete DDL. Statements are idempotent so EnsureSchema can
// run on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS indicators (
	id UUID PRIMARY KEY,
	institution_id UUID NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	measurement_unit TEXT NOT NULL,
	collection_method TEXT NOT NULL DEFAULT '',
	calculation_method TEXT NOT NULL,
	category TEXT NOT NULL,
	weight DOUBLE PRECISION NOT NULL,
	mandatory BOOLEAN NOT NULL,
	frequency TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_indicators_institution ON indicators(institution_id);

CREATE TABLE IF NOT EXISTS targets (
	id UUID PRIMARY KEY,
	indicator_id UUID NOT NULL REFERENCES indicators(id),
	period TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	baseline DOUBLE PRECISION NOT NULL DEFAULT 0,
	stretch DOUBLE PRECISION NOT NULL DEFAULT 0,
	min_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight DOUBLE PRECISION NOT NULL,
	approval_status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	UNIQUE (indicator_id, period)
);

CREATE TABLE IF NOT EXISTS performance_data (
	id UUID PRIMARY KEY,
	indicator_id UUID NOT NULL REFERENCES indicators(id),
	institution_id UUID NOT NULL,
	period TEXT NOT NULL,
	actual_value DOUBLE PRECISION NOT NULL,
	achievement DOUBLE PRECISION NOT NULL,
	rating TEXT NOT NULL DEFAULT '',
	validation_status TEXT NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	requires_review BOOLEAN NOT NULL DEFAULT FALSE,
	data_source TEXT NOT NULL DEFAULT '',
	collected_at TIMESTAMPTZ NOT NULL,
	validated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_performance_data_scope
	ON performance_data(institution_id, period);
CREATE INDEX IF NOT EXISTS idx_performance_data_indicator_period
	ON performance_data(indicator_id, period);

CREATE TABLE IF NOT EXISTS evidence_documents (
	id UUID PRIMARY KEY,
	submission_id UUID,
	assessment_id UUID,
	file_name TEXT NOT NULL,
	file_size BIGINT NOT NULL,
	file_type TEXT NOT NULL,
	storage_ref TEXT NOT NULL,
	validation_status TEXT NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	reviewed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_evidence_submission ON evidence_documents(submission_id);

CREATE TABLE IF NOT EXISTS assessments (
	id UUID PRIMARY KEY,
	institution_id UUID NOT NULL,
	period TEXT NOT NULL,
	assessor_id UUID NOT NULL,
	status TEXT NOT NULL,
	overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	rating TEXT,
	submitted_at TIMESTAMPTZ,
	submitted_by UUID,
	reviewed_at TIMESTAMPTZ,
	reviewed_by UUID,
	review_notes TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

-- One undecided assessment per institution and period.
CREATE UNIQUE INDEX IF NOT EXISTS idx_assessments_active_scope
	ON assessments(institution_id, period)
	WHERE status IN ('draft', 'in_review', 'submitted', 'in_approval');

CREATE TABLE IF NOT EXISTS assessment_criteria (
	id UUID PRIMARY KEY,
	assessment_id UUID NOT NULL REFERENCES assessments(id) ON DELETE CASCADE,
	indicator_id UUID NOT NULL,
	weight DOUBLE PRECISION NOT NULL,
	score DOUBLE PRECISION,
	rating TEXT
);

CREATE INDEX IF NOT EXISTS idx_criteria_assessment ON assessment_criteria(assessment_id);

CREATE TABLE IF NOT EXISTS reports (
	id UUID PRIMARY KEY,
	institution_id UUID NOT NULL,
	period TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	submitted_at TIMESTAMPTZ,
	reviewed_at TIMESTAMPTZ,
	review_notes TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reports_scope ON reports(institution_id, period);

CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	actor_id UUID NOT NULL,
	institution_id UUID,
	action TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	entity_id UUID,
	period TEXT NOT NULL DEFAULT '',
	before JSONB,
	after JSONB,
	client_ip TEXT NOT NULL DEFAULT '',
	device TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	module TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_institution_period
	ON audit_events(institution_id, period);
CREATE INDEX IF NOT EXISTS idx_audit_occurred_at ON audit_events(occurred_at DESC);
`

// EnsureSchema applies the DDL. Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
