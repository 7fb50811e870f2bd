package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kinerja/internal/indicator/models"
	"kinerja/pkg/domain"
	"kinerja/pkg/platform/sentinel"
	txcontext "kinerja/pkg/platform/tx"
)

// PostgresStore persists targets. The targets table carries a unique
// (indicator_id, period) constraint; CreateIfScopeAvailable maps its
// violation to sentinel.ErrConflict.
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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateIfScopeAvailable(ctx context.Context, t *models.Target) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO targets (
			id, indicator_id, period, value, baseline, stretch,
			min_value, max_value, weight, approval_status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.IndicatorID, t.Period, t.Value, t.Baseline, t.Stretch,
		t.Min, t.Max, t.Weight, t.Approval, t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, t *models.Target) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE targets SET
			value = $2, baseline = $3, stretch = $4, min_value = $5,
			max_value = $6, weight = $7, approval_status = $8, updated_at = $9
		WHERE id = $1`,
		t.ID, t.Value, t.Baseline, t.Stretch, t.Min, t.Max, t.Weight, t.Approval, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update target: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Target, error) {
	return scanTarget(s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, indicator_id, period, value, baseline, stretch,
		       min_value, max_value, weight, approval_status, created_at, updated_at
		FROM targets WHERE id = $1`, id))
}

func (s *PostgresStore) FindByScope(ctx context.Context, indicatorID uuid.UUID, period domain.Period) (*models.Target, error) {
	return scanTarget(s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, indicator_id, period, value, baseline, stretch,
		       min_value, max_value, weight, approval_status, created_at, updated_at
		FROM targets WHERE indicator_id = $1 AND period = $2`,
		indicatorID, period))
}

func scanTarget(row *sql.Row) (*models.Target, error) {
	var t models.Target
	err := row.Scan(
		&t.ID, &t.IndicatorID, &t.Period, &t.Value, &t.Baseline, &t.Stretch,
		&t.Min, &t.Max, &t.Weight, &t.Approval, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan target: %w", err)
	}
	return &t, nil
}
