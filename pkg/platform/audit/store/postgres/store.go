package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	audit "kinerja/pkg/platform/audit"
	txcontext "kinerja/pkg/platform/tx"
)

// Store persists audit events to the audit_events table. Append participates
// in a caller transaction when one is present in the context, so events
// emitted inside a multi-step mutation commit with it.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	before, err := marshalSnapshot(event.Before)
	if err != nil {
		return fmt.Errorf("marshal before snapshot: %w", err)
	}
	after, err := marshalSnapshot(event.After)
	if err != nil {
		return fmt.Errorf("marshal after snapshot: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (
			id, occurred_at, actor_id, institution_id, action,
			entity_kind, entity_id, period, before, after,
			client_ip, device, request_id, module
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		event.ID, event.Timestamp, event.ActorID, nullableUUID(event.InstitutionID),
		event.Action, event.Entity.Kind, nullableUUID(event.Entity.ID), event.Period,
		before, after, event.ClientIP, event.Device, event.RequestID, event.Module,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByInstitution(ctx context.Context, institutionID uuid.UUID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, actor_id, institution_id, action,
		       entity_kind, entity_id, period, before, after,
		       client_ip, device, request_id, module
		FROM audit_events
		WHERE institution_id = $1
		ORDER BY occurred_at`,
		institutionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (s *Store) CountByInstitutionPeriod(ctx context.Context, institutionID uuid.UUID, period string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE institution_id = $1 AND period = $2`,
		institutionID, period,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

func scanEvent(rows *sql.Rows) (audit.Event, error) {
	var (
		event         audit.Event
		institutionID sql.NullString
		entityID      sql.NullString
		before, after []byte
	)
	if err := rows.Scan(
		&event.ID, &event.Timestamp, &event.ActorID, &institutionID, &event.Action,
		&event.Entity.Kind, &entityID, &event.Period, &before, &after,
		&event.ClientIP, &event.Device, &event.RequestID, &event.Module,
	); err != nil {
		return audit.Event{}, fmt.Errorf("scan audit event: %w", err)
	}
	if institutionID.Valid {
		event.InstitutionID, _ = uuid.Parse(institutionID.String)
	}
	if entityID.Valid {
		event.Entity.ID, _ = uuid.Parse(entityID.String)
	}
	if len(before) > 0 {
		_ = json.Unmarshal(before, &event.Before)
	}
	if len(after) > 0 {
		_ = json.Unmarshal(after, &event.After)
	}
	return event, nil
}

func marshalSnapshot(snapshot map[string]any) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	return json.Marshal(snapshot)
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}
