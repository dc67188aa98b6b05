package timeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists timeline events in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed timeline store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return fmt.Errorf("marshal event detail: %w", err)
	}
	query := `
		INSERT INTO timeline_events (id, order_id, entity_type, entity_id, action, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.OrderID, event.EntityType, event.EntityID,
		event.Action, event.Actor, detail, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]Event, error) {
	query := `
		SELECT id, order_id, entity_type, entity_id, action, actor, detail, created_at
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var detail []byte
		if err := rows.Scan(&e.ID, &e.OrderID, &e.EntityType, &e.EntityID, &e.Action, &e.Actor, &detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("unmarshal event detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
