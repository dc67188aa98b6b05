package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"clearvet/pkg/platform/sentinel"
)

// PostgresStore reads orders from the platform's relational schema.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed order store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, o *Order) error {
	query := `
		INSERT INTO orders (id, client_id, status, position_category,
			applicant_first_name, applicant_last_name, applicant_email, applicant_phone,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.ClientID, o.Status, o.PositionCategory,
		o.Applicant.FirstName, o.Applicant.LastName, o.Applicant.Email, o.Applicant.Phone,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	for _, f := range o.Findings {
		if err := s.addFinding(ctx, o.ID, f); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) addFinding(ctx context.Context, orderID uuid.UUID, f Finding) error {
	query := `
		INSERT INTO order_findings (id, order_id, offense_type, severity, offense_date, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query, f.ID, orderID, f.OffenseType, f.Severity, f.OffenseDate, f.Description); err != nil {
		return fmt.Errorf("add order finding: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	query := `
		SELECT id, client_id, status, position_category,
			applicant_first_name, applicant_last_name, applicant_email, applicant_phone,
			created_at, updated_at
		FROM orders WHERE id = $1
	`
	var o Order
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&o.ID, &o.ClientID, &o.Status, &o.PositionCategory,
		&o.Applicant.FirstName, &o.Applicant.LastName, &o.Applicant.Email, &o.Applicant.Phone,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find order by id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, offense_type, severity, offense_date, description
		FROM order_findings WHERE order_id = $1 ORDER BY offense_date DESC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list order findings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.OffenseType, &f.Severity, &f.OffenseDate, &f.Description); err != nil {
			return nil, fmt.Errorf("scan order finding: %w", err)
		}
		o.Findings = append(o.Findings, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
