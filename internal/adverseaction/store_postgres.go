package adverseaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearvet/pkg/platform/sentinel"
)

// PostgresStore persists adverse actions in PostgreSQL. One-active-per-order
// is backed by a partial unique index on order_id over non-terminal rows;
// optimistic concurrency by a status predicate on every update.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed adverse action store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const actionColumns = `
	id, order_id, status,
	pre_notice_sent_at, pre_notice_method, waiting_period_end,
	final_notice_sent_at, final_notice_method,
	response_category, response_details, response_notes, responded_at,
	final_decision, final_decision_notes, decided_at,
	cancel_reason, created_at, updated_at
`

func (s *PostgresStore) Create(ctx context.Context, a *AdverseAction) error {
	query := `
		INSERT INTO adverse_actions (id, order_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, a.ID, a.OrderID, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create adverse action: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*AdverseAction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+actionColumns+` FROM adverse_actions WHERE id = $1`, id)
	a, err := scanAction(row)
	if err != nil {
		return nil, err
	}
	docs, err := s.documentsFor(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Documents = docs
	return a, nil
}

func (s *PostgresStore) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*AdverseAction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+` FROM adverse_actions
		WHERE order_id = $1 AND status NOT IN ('completed', 'cancelled')
	`, orderID)
	a, err := scanAction(row)
	if err != nil {
		return nil, err
	}
	docs, err := s.documentsFor(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Documents = docs
	return a, nil
}

func (s *PostgresStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*AdverseAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+actionColumns+` FROM adverse_actions WHERE order_id = $1 ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list adverse actions: %w", err)
	}
	defer rows.Close()
	var out []*AdverseAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateFrom writes the full new state guarded by the expected stored status.
// Zero affected rows means the status moved underneath the caller.
func (s *PostgresStore) UpdateFrom(ctx context.Context, a *AdverseAction, expected Status) error {
	query := `
		UPDATE adverse_actions SET
			status = $3,
			pre_notice_sent_at = $4, pre_notice_method = $5, waiting_period_end = $6,
			final_notice_sent_at = $7, final_notice_method = $8,
			response_category = $9, response_details = $10, response_notes = $11, responded_at = $12,
			final_decision = $13, final_decision_notes = $14, decided_at = $15,
			cancel_reason = $16, updated_at = $17
		WHERE id = $1 AND status = $2
	`
	res, err := s.db.ExecContext(ctx, query,
		a.ID, expected, a.Status,
		a.PreNoticeSentAt, nullStr(string(a.PreNoticeMethod)), a.WaitingPeriodEnd,
		a.FinalNoticeSentAt, nullStr(string(a.FinalNoticeMethod)),
		nullStr(string(a.ResponseCategory)), nullStr(a.ResponseDetails), nullStr(a.ResponseNotes), a.RespondedAt,
		nullStr(string(a.FinalDecision)), nullStr(a.FinalDecisionNotes), a.DecidedAt,
		nullStr(a.CancelReason), a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update adverse action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update adverse action: %w", err)
	}
	if affected == 0 {
		// Distinguish a vanished row from a status race.
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM adverse_actions WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update adverse action: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *PostgresStore) AddDocument(ctx context.Context, doc Document) error {
	query := `
		INSERT INTO adverse_action_documents (id, adverse_action_id, type, recipient, sent_at, delivery_status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, doc.ID, doc.AdverseActionID, doc.Type, doc.Recipient, doc.SentAt, doc.DeliveryStatus)
	if err != nil {
		return fmt.Errorf("add adverse action document: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListElapsedWaiting(ctx context.Context, now time.Time) ([]*AdverseAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM adverse_actions
		WHERE status = 'pre_notice_sent' AND waiting_period_end <= $1
		ORDER BY created_at
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list elapsed waiting periods: %w", err)
	}
	defer rows.Close()
	var out []*AdverseAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) documentsFor(ctx context.Context, actionID uuid.UUID) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, adverse_action_id, type, recipient, sent_at, delivery_status
		FROM adverse_action_documents WHERE adverse_action_id = $1 ORDER BY sent_at
	`, actionID)
	if err != nil {
		return nil, fmt.Errorf("list adverse action documents: %w", err)
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.AdverseActionID, &d.Type, &d.Recipient, &d.SentAt, &d.DeliveryStatus); err != nil {
			return nil, fmt.Errorf("scan adverse action document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanAction(row interface{ Scan(...any) error }) (*AdverseAction, error) {
	var a AdverseAction
	var preMethod, finalMethod, respCategory, respDetails, respNotes sql.NullString
	var finalDecision, finalNotes, cancelReason sql.NullString
	err := row.Scan(
		&a.ID, &a.OrderID, &a.Status,
		&a.PreNoticeSentAt, &preMethod, &a.WaitingPeriodEnd,
		&a.FinalNoticeSentAt, &finalMethod,
		&respCategory, &respDetails, &respNotes, &a.RespondedAt,
		&finalDecision, &finalNotes, &a.DecidedAt,
		&cancelReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan adverse action: %w", err)
	}
	a.PreNoticeMethod = NoticeMethod(preMethod.String)
	a.FinalNoticeMethod = NoticeMethod(finalMethod.String)
	a.ResponseCategory = ResponseCategory(respCategory.String)
	a.ResponseDetails = respDetails.String
	a.ResponseNotes = respNotes.String
	a.FinalDecision = FinalDecision(finalDecision.String)
	a.FinalDecisionNotes = finalNotes.String
	a.CancelReason = cancelReason.String
	return &a, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
