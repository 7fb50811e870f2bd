package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kinerja/internal/report/models"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
	txcontext "kinerja/pkg/platform/tx"
)

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
	id, institution_id, period, title, summary, status,
	submitted_at, reviewed_at, review_notes, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, r *models.Report) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO reports (
			id, institution_id, period, title, summary, status,
			submitted_at, reviewed_at, review_notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.InstitutionID, r.Period, r.Title, r.Summary, r.Status,
		r.SubmittedAt, r.ReviewedAt, r.ReviewNotes, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Report) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE reports SET
			title = $2, summary = $3, status = $4, submitted_at = $5,
			reviewed_at = $6, review_notes = $7, updated_at = $8
		WHERE id = $1`,
		r.ID, r.Title, r.Summary, r.Status, r.SubmittedAt,
		r.ReviewedAt, r.ReviewNotes, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return r, err
}

func (s *PostgresStore) ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM reports
		 WHERE institution_id = $1 AND period = $2 ORDER BY created_at`,
		institutionID, period)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var r models.Report
	var summary, notes sql.NullString
	err := row.Scan(
		&r.ID, &r.InstitutionID, &r.Period, &r.Title, &summary, &r.Status,
		&r.SubmittedAt, &r.ReviewedAt, &notes, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Summary = summary.String
	r.ReviewNotes = notes.String
	return &r, nil
}
