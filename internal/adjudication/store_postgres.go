package adjudication

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"clearvet/internal/matrix/models"
	"clearvet/pkg/platform/sentinel"
)

// PostgresStore persists decisions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed decision store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const decisionColumns = `
	id, order_id, matrix_id, matched_rule_id, automated_decision,
	final_decision, override_notes, overridden_by, overridden_at, evaluated_at
`

func (s *PostgresStore) Create(ctx context.Context, d *Decision) error {
	query := `
		INSERT INTO decisions (id, order_id, matrix_id, matched_rule_id, automated_decision,
			final_decision, override_notes, overridden_by, overridden_at, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.OrderID, d.MatrixID, nullUUID(d.MatchedRuleID), d.AutomatedDecision,
		nullDecision(d.FinalDecision), nullStr(d.OverrideNotes), nullStr(d.OverriddenBy),
		d.OverriddenAt, d.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("create decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindLatestByOrder(ctx context.Context, orderID uuid.UUID) (*Decision, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE order_id = $1 ORDER BY evaluated_at DESC LIMIT 1`,
		orderID,
	)
	return scanDecision(row)
}

func (s *PostgresStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions WHERE order_id = $1 ORDER BY evaluated_at DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions by order: %w", err)
	}
	return collectDecisions(rows)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+decisionColumns+` FROM decisions
		 WHERE final_decision IS NULL AND automated_decision = $1
		 ORDER BY evaluated_at`,
		models.DecisionManualReview,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending decisions: %w", err)
	}
	return collectDecisions(rows)
}

func (s *PostgresStore) UpdateOverride(ctx context.Context, d *Decision) error {
	query := `
		UPDATE decisions
		SET final_decision = $2, override_notes = $3, overridden_by = $4, overridden_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		d.ID, nullDecision(d.FinalDecision), nullStr(d.OverrideNotes), nullStr(d.OverriddenBy), d.OverriddenAt,
	)
	if err != nil {
		return fmt.Errorf("update decision override: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update decision override: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanDecision(row interface{ Scan(...any) error }) (*Decision, error) {
	var d Decision
	var matchedRuleID uuid.NullUUID
	var finalDecision, overrideNotes, overriddenBy sql.NullString
	var overriddenAt sql.NullTime
	err := row.Scan(&d.ID, &d.OrderID, &d.MatrixID, &matchedRuleID, &d.AutomatedDecision,
		&finalDecision, &overrideNotes, &overriddenBy, &overriddenAt, &d.EvaluatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	if matchedRuleID.Valid {
		d.MatchedRuleID = &matchedRuleID.UUID
	}
	if finalDecision.Valid {
		fd := models.Decision(finalDecision.String)
		d.FinalDecision = &fd
	}
	d.OverrideNotes = overrideNotes.String
	d.OverriddenBy = overriddenBy.String
	if overriddenAt.Valid {
		d.OverriddenAt = &overriddenAt.Time
	}
	return &d, nil
}

func collectDecisions(rows *sql.Rows) ([]*Decision, error) {
	defer rows.Close()
	var out []*Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func nullDecision(d *models.Decision) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*d), Valid: true}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
