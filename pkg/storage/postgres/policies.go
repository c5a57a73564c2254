package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

const policyColumns = `id, client_id, policy_number, insurer, line, COALESCE(coverage, ''), premium::text, currency,
	start_date, end_date, status, renewed_from, created_at, updated_at`

func scanPolicy(row rowScanner) (*models.Policy, error) {
	var (
		p           models.Policy
		renewedFrom sql.NullString
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.PolicyNumber, &p.Insurer, &p.Line, &p.Coverage, &p.Premium, &p.Currency,
		&p.StartDate, &p.EndDate, &p.Status, &renewedFrom, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if renewedFrom.Valid {
		p.RenewedFrom = &renewedFrom.String
	}
	return &p, nil
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func insertPolicy(ctx context.Context, q execQuerier, p *models.Policy) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PolicyActive
	}
	return q.QueryRowContext(ctx, `
		INSERT INTO policies (id, client_id, policy_number, insurer, line, coverage, premium, currency,
			start_date, end_date, status, renewed_from)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		p.ID, p.ClientID, p.PolicyNumber, p.Insurer, string(p.Line), p.Coverage, p.Premium, p.Currency,
		models.Day(p.StartDate), models.Day(p.EndDate), string(p.Status), p.RenewedFrom,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

// CreatePolicy inserts policy, assigning an id when it has none
func (s *Store) CreatePolicy(ctx context.Context, policy *models.Policy) (err error) {
	ctx, span := startSpan(ctx, "CreatePolicy", "policies")
	defer func() { endSpan(span, err) }()

	if err := policy.ValidateDates(); err != nil {
		return err
	}
	return wrapError("create policy", insertPolicy(ctx, s.db, policy))
}

// GetPolicy returns one policy
func (s *Store) GetPolicy(ctx context.Context, id string) (policy *models.Policy, err error) {
	ctx, span := startSpan(ctx, "GetPolicy", "policies")
	defer func() { endSpan(span, err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, fmt.Errorf("get policy %q: %w", id, storage.ErrNotFound)
	}

	policy, err = scanPolicy(s.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1`, id))
	if err != nil {
		return nil, wrapError("get policy", err)
	}
	return policy, nil
}

// ListPolicies returns the policies matching filter ordered by end date
func (s *Store) ListPolicies(ctx context.Context, filter models.PolicyFilter) (policies []*models.Policy, err error) {
	ctx, span := startSpan(ctx, "ListPolicies", "policies")
	defer func() { endSpan(span, err) }()

	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ClientID != 0 {
		where = append(where, "client_id = "+arg(filter.ClientID))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.ExpiringWithinDays > 0 {
		today := models.Day(s.now())
		where = append(where,
			"status = 'active'",
			"end_date >= "+arg(today),
			"end_date <= "+arg(today.AddDate(0, 0, filter.ExpiringWithinDays)),
		)
	}

	query := `SELECT ` + policyColumns + ` FROM policies`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY end_date, policy_number`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list policies", err)
	}
	defer rows.Close()

	policies = make([]*models.Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, wrapError("scan policy", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapError("list policies", err)
	}
	return policies, nil
}

// CancelPolicy sets the status of policy id to cancelled
func (s *Store) CancelPolicy(ctx context.Context, id string) (policy *models.Policy, err error) {
	ctx, span := startSpan(ctx, "CancelPolicy", "policies")
	defer func() { endSpan(span, err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, fmt.Errorf("cancel policy %q: %w", id, storage.ErrNotFound)
	}

	policy, err = scanPolicy(s.db.QueryRowContext(ctx, `
		UPDATE policies SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1
		RETURNING `+policyColumns, id))
	if err != nil {
		return nil, wrapError("cancel policy", err)
	}
	return policy, nil
}

// RenewPolicy inserts renewal as the successor of policy id. Blank terms are copied from
// the renewed policy, which is marked expired when it has already lapsed. Cancelled
// policies cannot be renewed.
func (s *Store) RenewPolicy(ctx context.Context, id string, renewal *models.Policy) (policy *models.Policy, err error) {
	ctx, span := startSpan(ctx, "RenewPolicy", "policies")
	defer func() { endSpan(span, err) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, fmt.Errorf("renew policy %q: %w", id, storage.ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	prev, err := scanPolicy(tx.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, wrapError("load renewed policy", err)
	}
	if prev.Status == models.PolicyCancelled {
		return nil, fmt.Errorf("renew policy %s: policy is cancelled: %w", id, storage.ErrConflict)
	}

	renewal.InheritFrom(prev)
	if err := renewal.ValidateDates(); err != nil {
		return nil, err
	}

	if err := insertPolicy(ctx, tx, renewal); err != nil {
		return nil, wrapError("insert renewal", err)
	}

	if prev.Status == models.PolicyActive && prev.Lapsed(s.now()) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE policies SET status = 'expired', updated_at = NOW() WHERE id = $1`, prev.ID); err != nil {
			return nil, wrapError("expire renewed policy", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit renewal: %w", err)
	}
	return renewal, nil
}

// ExpireLapsedPolicies marks active policies whose end date is before asOf as expired
func (s *Store) ExpireLapsedPolicies(ctx context.Context, asOf time.Time) (n int64, err error) {
	ctx, span := startSpan(ctx, "ExpireLapsedPolicies", "policies")
	defer func() { endSpan(span, err) }()

	res, err := s.db.ExecContext(ctx, `
		UPDATE policies SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND end_date < $1`, models.Day(asOf))
	if err != nil {
		return 0, wrapError("expire policies", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired policies: %w", err)
	}
	span.SetAttributes(attribute.Int64("policies.expired", n))
	return n, nil
}
