package indicator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"kinerja/internal/indicator/models"
	"kinerja/pkg/platform/sentinel"
	txcontext "kinerja/pkg/platform/tx"
)

// PostgresStore persists indicators. Writes participate in a caller
// transaction when one is present in the context.
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

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, ind *models.Indicator) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO indicators (
			id, institution_id, name, description, measurement_unit,
			collection_method, calculation_method, category, weight,
			mandatory, frequency, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		ind.ID, ind.InstitutionID, ind.Name, ind.Description, ind.Unit,
		ind.CollectionMethod, ind.CalculationMethod, ind.Category, ind.Weight,
		ind.Mandatory, ind.Frequency, ind.CreatedAt, ind.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert indicator: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, ind *models.Indicator) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE indicators SET
			name = $2, description = $3, measurement_unit = $4,
			collection_method = $5, calculation_method = $6, category = $7,
			weight = $8, mandatory = $9, frequency = $10, updated_at = $11
		WHERE id = $1`,
		ind.ID, ind.Name, ind.Description, ind.Unit,
		ind.CollectionMethod, ind.CalculationMethod, ind.Category,
		ind.Weight, ind.Mandatory, ind.Frequency, ind.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update indicator: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update indicator: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Indicator, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, institution_id, name, description, measurement_unit,
		       collection_method, calculation_method, category, weight,
		       mandatory, frequency, created_at, updated_at
		FROM indicators WHERE id = $1`, id)
	return scanIndicator(row)
}

func (s *PostgresStore) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]models.Indicator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, institution_id, name, description, measurement_unit,
		       collection_method, calculation_method, category, weight,
		       mandatory, frequency, created_at, updated_at
		FROM indicators WHERE institution_id = $1 ORDER BY created_at`,
		institutionID)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	defer rows.Close()

	var out []models.Indicator
	for rows.Next() {
		var ind models.Indicator
		if err := rows.Scan(
			&ind.ID, &ind.InstitutionID, &ind.Name, &ind.Description, &ind.Unit,
			&ind.CollectionMethod, &ind.CalculationMethod, &ind.Category, &ind.Weight,
			&ind.Mandatory, &ind.Frequency, &ind.CreatedAt, &ind.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndicator(row rowScanner) (*models.Indicator, error) {
	var ind models.Indicator
	err := row.Scan(
		&ind.ID, &ind.InstitutionID, &ind.Name, &ind.Description, &ind.Unit,
		&ind.CollectionMethod, &ind.CalculationMethod, &ind.Category, &ind.Weight,
		&ind.Mandatory, &ind.Frequency, &ind.CreatedAt, &ind.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan indicator: %w", err)
	}
	return &ind, nil
}
