package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "bloodlink/pkg/domain"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO request_audit (id, request_id, actor_id, actor_role, action, from_status, to_status, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID, event.RequestID, event.ActorID, string(event.ActorRole),
		string(event.Action), event.FromStatus, event.ToStatus, event.Detail, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Event, error) {
	query := `
		SELECT id, request_id, actor_id, actor_role, action, from_status, to_status, detail, occurred_at
		FROM request_audit
		WHERE request_id = $1
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var role, action string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.ActorID, &role, &action,
			&e.FromStatus, &e.ToStatus, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.ActorRole = id.Role(role)
		e.Action = Action(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return out, nil
}
