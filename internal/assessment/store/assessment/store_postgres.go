package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kinerja/internal/assessment/models"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
	txcontext "kinerja/pkg/platform/tx"
)

// PostgresStore persists assessments and criteria. A partial unique index
// on (institution_id, period) over active statuses backs the one-active-
// assessment invariant; CreateIfScopeAvailable maps its violation to
// sentinel.ErrConflict.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const selectColumns = `
	id, institution_id, period, assessor_id, status, overall_score, rating,
	submitted_at, submitted_by, reviewed_at, reviewed_by, review_notes,
	created_at, updated_at`

func (s *PostgresStore) CreateIfScopeAvailable(ctx context.Context, a *models.Assessment, criteria []models.Criterion) error {
	ex := s.execer(ctx)
	_, err := ex.ExecContext(ctx, `
		INSERT INTO assessments (
			id, institution_id, period, assessor_id, status, overall_score,
			rating, review_notes, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.InstitutionID, a.Period, a.AssessorID, a.Status,
		a.OverallScore, nullableString(string(a.Rating)), a.ReviewNotes,
		a.CreatedAt, a.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	for i := range criteria {
		if err := insertCriterion(ctx, ex, &criteria[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertCriterion(ctx context.Context, ex dbExecutor, c *models.Criterion) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO assessment_criteria (
			id, assessment_id, indicator_id, weight, score, rating
		) VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.AssessmentID, c.IndicatorID, c.Weight, c.Score, nullableString(string(c.Rating)),
	)
	if err != nil {
		return fmt.Errorf("insert criterion: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, a *models.Assessment) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE assessments SET
			status = $2, overall_score = $3, rating = $4, submitted_at = $5,
			submitted_by = $6, reviewed_at = $7, reviewed_by = $8,
			review_notes = $9, updated_at = $10
		WHERE id = $1`,
		a.ID, a.Status, a.OverallScore, nullableString(string(a.Rating)),
		a.SubmittedAt, nullableUUID(a.SubmittedBy), a.ReviewedAt,
		nullableUUID(a.ReviewedBy), a.ReviewNotes, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateCriteria(ctx context.Context, assessmentID uuid.UUID, criteria []models.Criterion) error {
	ex := s.execer(ctx)
	for i := range criteria {
		c := &criteria[i]
		res, err := ex.ExecContext(ctx, `
			UPDATE assessment_criteria SET weight = $2, score = $3, rating = $4
			WHERE id = $1 AND assessment_id = $5`,
			c.ID, c.Weight, c.Score, nullableString(string(c.Rating)), assessmentID,
		)
		if err != nil {
			return fmt.Errorf("update criterion: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update criterion: %w", err)
		}
		if affected == 0 {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Assessment, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM assessments WHERE id = $1`, id)
	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) Criteria(ctx context.Context, assessmentID uuid.UUID) ([]models.Criterion, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, assessment_id, indicator_id, weight, score, rating
		FROM assessment_criteria WHERE assessment_id = $1 ORDER BY indicator_id`,
		assessmentID)
	if err != nil {
		return nil, fmt.Errorf("list criteria: %w", err)
	}
	defer rows.Close()

	var out []models.Criterion
	for rows.Next() {
		var c models.Criterion
		var score sql.NullFloat64
		var rating sql.NullString
		if err := rows.Scan(&c.ID, &c.AssessmentID, &c.IndicatorID, &c.Weight, &score, &rating); err != nil {
			return nil, fmt.Errorf("scan criterion: %w", err)
		}
		if score.Valid {
			v := score.Float64
			c.Score = &v
		}
		c.Rating = scoring.Rating(rating.String)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.Assessment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+selectColumns+` FROM assessments
		 WHERE institution_id = $1 AND period = $2 ORDER BY created_at`,
		institutionID, period)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []models.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	ex := s.execer(ctx)
	if _, err := ex.ExecContext(ctx, `DELETE FROM assessment_criteria WHERE assessment_id = $1`, id); err != nil {
		return fmt.Errorf("delete criteria: %w", err)
	}
	res, err := ex.ExecContext(ctx, `DELETE FROM assessments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete assessment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*models.Assessment, error) {
	var a models.Assessment
	var rating, notes sql.NullString
	var submittedBy, reviewedBy sql.NullString
	err := row.Scan(
		&a.ID, &a.InstitutionID, &a.Period, &a.AssessorID, &a.Status,
		&a.OverallScore, &rating, &a.SubmittedAt, &submittedBy,
		&a.ReviewedAt, &reviewedBy, &notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Rating = scoring.Rating(rating.String)
	a.ReviewNotes = notes.String
	if submittedBy.Valid {
		a.SubmittedBy, _ = uuid.Parse(submittedBy.String)
	}
	if reviewedBy.Valid {
		a.ReviewedBy, _ = uuid.Parse(reviewedBy.String)
	}
	return &a, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
