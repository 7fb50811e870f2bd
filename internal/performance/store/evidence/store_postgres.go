package evidence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kinerja/internal/performance/models"
	"kinerja/pkg/platform/sentinel"
	txcontext "kinerja/pkg/platform/tx"
)

// PostgresStore persists evidence descriptors.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `
	id, submission_id, assessment_id, file_name, file_size, file_type,
	storage_ref, validation_status, uploaded_at, reviewed_at`

func (s *PostgresStore) Create(ctx context.Context, doc *models.EvidenceDocument) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO evidence_documents (
			id, submission_id, assessment_id, file_name, file_size, file_type,
			storage_ref, validation_status, uploaded_at, reviewed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		doc.ID, nullableUUID(doc.SubmissionID), nullableUUID(doc.AssessmentID),
		doc.FileName, doc.FileSize, doc.FileType, doc.StorageRef,
		doc.Status, doc.UploadedAt, doc.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, doc *models.EvidenceDocument) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE evidence_documents SET validation_status = $2, reviewed_at = $3
		WHERE id = $1`,
		doc.ID, doc.Status, doc.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update evidence: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.EvidenceDocument, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM evidence_documents WHERE id = $1`, id)
	doc, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return doc, err
}

func (s *PostgresStore) ListBySubmission(ctx context.Context, submissionID uuid.UUID) ([]models.EvidenceDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM evidence_documents WHERE submission_id = $1 ORDER BY uploaded_at`,
		submissionID)
	if err != nil {
		return nil, fmt.Errorf("list evidence: %w", err)
	}
	defer rows.Close()

	var out []models.EvidenceDocument
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row rowScanner) (*models.EvidenceDocument, error) {
	var doc models.EvidenceDocument
	var submissionID, assessmentID sql.NullString
	err := row.Scan(
		&doc.ID, &submissionID, &assessmentID, &doc.FileName, &doc.FileSize,
		&doc.FileType, &doc.StorageRef, &doc.Status, &doc.UploadedAt, &doc.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	if submissionID.Valid {
		doc.SubmissionID, _ = uuid.Parse(submissionID.String)
	}
	if assessmentID.Valid {
		doc.AssessmentID, _ = uuid.Parse(assessmentID.String)
	}
	return &doc, nil
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
