package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kinerja/internal/performance/models"
	"kinerja/internal/scoring"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
	txcontext "kinerja/pkg/platform/tx"
)

// PostgresStore persists submissions. Immutability of validated records is
// enforced in SQL: updates carry a validation_status guard so a concurrent
// validation cannot be overwritten.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `
	id, indicator_id, institution_id, period, actual_value, achievement,
	rating, validation_status, quality_score, requires_review, data_source,
	collected_at, validated_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.PerformanceData) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO performance_data (
			id, indicator_id, institution_id, period, actual_value, achievement,
			rating, validation_status, quality_score, requires_review, data_source,
			collected_at, validated_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		record.ID, record.IndicatorID, record.InstitutionID, record.Period,
		record.Actual, record.Achievement, record.Rating, record.Status,
		record.QualityScore, record.RequiresReview, record.DataSource,
		record.CollectedAt, record.ValidatedAt, record.CreatedAt, record.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert performance data: %w", err)
	}
	return nil
}

// Update refuses to touch a validated record. The status guard runs inside
// the statement, so check and write are a single atomic step.
func (s *PostgresStore) Update(ctx context.Context, record *models.PerformanceData) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE performance_data SET
			actual_value = $2, achievement = $3, rating = $4,
			validation_status = $5, quality_score = $6, requires_review = $7,
			data_source = $8, collected_at = $9, validated_at = $10, updated_at = $11
		WHERE id = $1 AND validation_status <> 'validated'`,
		record.ID, record.Actual, record.Achievement, record.Rating,
		record.Status, record.QualityScore, record.RequiresReview,
		record.DataSource, record.CollectedAt, record.ValidatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update performance data: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update performance data: %w", err)
	}
	if affected == 0 {
		// Distinguish missing from immutable.
		var status string
		err := s.execer(ctx).QueryRowContext(ctx,
			`SELECT validation_status FROM performance_data WHERE id = $1`, record.ID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update performance data: %w", err)
		}
		return sentinel.ErrImmutable
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.PerformanceData, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM performance_data WHERE id = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return record, err
}

func (s *PostgresStore) History(ctx context.Context, indicatorID uuid.UUID, before domain.Period, limit int) ([]models.PerformanceData, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM performance_data
		WHERE indicator_id = $1 AND period < $2 AND validation_status = 'validated'
		ORDER BY period DESC
		LIMIT $3`,
		indicatorID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) ListByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period domain.Period) ([]models.PerformanceData, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM performance_data
		WHERE institution_id = $1 AND period = $2
		ORDER BY created_at`,
		institutionID, period)
	if err != nil {
		return nil, fmt.Errorf("list performance data: %w", err)
	}
	return collectRecords(rows)
}

func (s *PostgresStore) FlagForReview(ctx context.Context, indicatorID uuid.UUID, _ string) (int, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE performance_data SET requires_review = TRUE
		WHERE indicator_id = $1 AND requires_review = FALSE`,
		indicatorID)
	if err != nil {
		return 0, fmt.Errorf("flag for review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("flag for review: %w", err)
	}
	return int(affected), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.PerformanceData, error) {
	var record models.PerformanceData
	var rating sql.NullString
	err := row.Scan(
		&record.ID, &record.IndicatorID, &record.InstitutionID, &record.Period,
		&record.Actual, &record.Achievement, &rating, &record.Status,
		&record.QualityScore, &record.RequiresReview, &record.DataSource,
		&record.CollectedAt, &record.ValidatedAt, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rating.Valid {
		record.Rating = scoring.Rating(rating.String)
	}
	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]models.PerformanceData, error) {
	defer rows.Close()
	var out []models.PerformanceData
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan performance data: %w", err)
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}
