package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"clearvet/internal/matrix/models"
	"clearvet/pkg/platform/sentinel"
)

// uniqueViolation is the postgres error code raised by the
// (matrix_id, rule_order) unique constraint.
const uniqueViolation = "23505"

// Postgres persists matrices and rules in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed matrix store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateMatrix(ctx context.Context, m *models.RuleMatrix) error {
	query := `
		INSERT INTO rule_matrices (id, client_id, name, description, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query, m.ID, m.ClientID, m.Name, m.Description, m.Active, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create matrix: %w", err)
	}
	return nil
}

func (s *Postgres) FindMatrixByID(ctx context.Context, id uuid.UUID) (*models.RuleMatrix, error) {
	var m models.RuleMatrix
	err := s.db.QueryRowContext(ctx, `
		SELECT id, client_id, name, description, active, created_at, updated_at
		FROM rule_matrices WHERE id = $1
	`, id).Scan(&m.ID, &m.ClientID, &m.Name, &m.Description, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find matrix by id: %w", err)
	}
	rules, err := s.rulesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Rules = rules
	return &m, nil
}

func (s *Postgres) rulesFor(ctx context.Context, matrixID uuid.UUID) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, matrix_id, rule_order, position_category, offense_type, severity,
			lookback_years, condition, decision, created_at, updated_at
		FROM rules WHERE matrix_id = $1 ORDER BY rule_order
	`, matrixID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*models.Rule, error) {
	var r models.Rule
	var positionCategory, offenseType, severity sql.NullString
	var lookbackYears sql.NullInt64
	var condition []byte
	err := row.Scan(&r.ID, &r.MatrixID, &r.Order, &positionCategory, &offenseType, &severity,
		&lookbackYears, &condition, &r.Decision, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	r.PositionCategory = positionCategory.String
	r.OffenseType = offenseType.String
	r.Severity = models.Severity(severity.String)
	if lookbackYears.Valid {
		years := int(lookbackYears.Int64)
		r.LookbackYears = &years
	}
	if len(condition) > 0 {
		var c models.Condition
		if err := json.Unmarshal(condition, &c); err != nil {
			return nil, fmt.Errorf("unmarshal rule condition: %w", err)
		}
		r.Condition = &c
	}
	return &r, nil
}

func (s *Postgres) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error) {
	return s.listByClient(ctx, clientID, false)
}

func (s *Postgres) ListActiveByClient(ctx context.Context, clientID uuid.UUID) ([]*models.RuleMatrix, error) {
	return s.listByClient(ctx, clientID, true)
}

func (s *Postgres) listByClient(ctx context.Context, clientID uuid.UUID, activeOnly bool) ([]*models.RuleMatrix, error) {
	query := `
		SELECT id, client_id, name, description, active, created_at, updated_at
		FROM rule_matrices WHERE client_id = $1
	`
	if activeOnly {
		query += ` AND active`
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list matrices: %w", err)
	}
	defer rows.Close()

	var out []*models.RuleMatrix
	for rows.Next() {
		var m models.RuleMatrix
		if err := rows.Scan(&m.ID, &m.ClientID, &m.Name, &m.Description, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan matrix: %w", err)
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if activeOnly {
		for _, m := range out {
			rules, err := s.rulesFor(ctx, m.ID)
			if err != nil {
				return nil, err
			}
			m.Rules = rules
		}
	}
	return out, nil
}

func (s *Postgres) SetActive(ctx context.Context, id uuid.UUID, active bool, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rule_matrices SET active = $2, updated_at = $3 WHERE id = $1`,
		id, active, now,
	)
	if err != nil {
		return fmt.Errorf("set matrix active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set matrix active: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) AddRule(ctx context.Context, r *models.Rule) error {
	condition, err := marshalCondition(r.Condition)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO rules (id, matrix_id, rule_order, position_category, offense_type, severity,
			lookback_years, condition, decision, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, r.MatrixID, r.Order,
		nullString(r.PositionCategory), nullString(r.OffenseType), nullString(string(r.Severity)),
		nullInt(r.LookbackYears), condition, r.Decision, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("add rule: %w", err)
	}
	return nil
}

func (s *Postgres) UpdateRule(ctx context.Context, r *models.Rule) error {
	condition, err := marshalCondition(r.Condition)
	if err != nil {
		return err
	}
	query := `
		UPDATE rules SET rule_order = $2, position_category = $3, offense_type = $4,
			severity = $5, lookback_years = $6, condition = $7, decision = $8, updated_at = $9
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.Order,
		nullString(r.PositionCategory), nullString(r.OffenseType), nullString(string(r.Severity)),
		nullInt(r.LookbackYears), condition, r.Decision, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindRuleByID(ctx context.Context, id uuid.UUID) (*models.Rule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, matrix_id, rule_order, position_category, offense_type, severity,
			lookback_years, condition, decision, created_at, updated_at
		FROM rules WHERE id = $1
	`, id)
	return scanRule(row)
}

func marshalCondition(c *models.Condition) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal rule condition: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
