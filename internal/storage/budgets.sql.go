package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"savvycent/internal/core"
)

const budgetColumns = `b.id, b.user_id, b.amount, b.last_alert_sent, b.created_at, b.updated_at`

func scanBudget(row rowScanner, extra ...interface{}) (core.Budget, error) {
	var (
		b                    core.Budget
		amount               string
		lastAlert            sql.NullString
		createdAt, updatedAt string
	)
	dest := append([]interface{}{&b.ID, &b.UserID, &amount, &lastAlert, &createdAt, &updatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Budget{}, err
	}
	var err error
	if b.Amount, err = core.ParseStoredMoney(amount); err != nil {
		return core.Budget{}, err
	}
	if b.LastAlertSent, err = parseNullTime(lastAlert); err != nil {
		return core.Budget{}, err
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Budget{}, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

const upsertBudget = `
INSERT INTO budgets (id, user_id, amount, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    amount = excluded.amount,
    updated_at = excluded.updated_at`

// UpsertBudget creates the user's budget or updates its amount. The alert
// marker is left untouched on update.
func (q *Queries) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := q.db.ExecContext(ctx, upsertBudget,
		b.ID, b.UserID, b.Amount.Decimal().String(), formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (q *Queries) GetBudget(ctx context.Context, userID string) (core.Budget, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets b WHERE b.user_id = ?`, userID)
	b, err := scanBudget(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, core.ErrBudgetNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// BudgetCandidate is a budget joined with its owner and default account.
type BudgetCandidate struct {
	Budget  core.Budget
	User    core.User
	Account core.Account
}

const listBudgetCandidates = `
SELECT ` + budgetColumns + `,
    u.email, u.name,
    a.id, a.name, a.type
FROM budgets b
JOIN users u ON u.id = b.user_id
JOIN accounts a ON a.user_id = b.user_id AND a.is_default = 1
ORDER BY b.user_id`

// ListBudgetCandidates returns every budget whose owner has a default account.
func (q *Queries) ListBudgetCandidates(ctx context.Context) ([]BudgetCandidate, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetCandidates)
	if err != nil {
		return nil, fmt.Errorf("list budget candidates: %w", err)
	}
	defer rows.Close()

	var out []BudgetCandidate
	for rows.Next() {
		var c BudgetCandidate
		b, err := scanBudget(rows, &c.User.Email, &c.User.Name, &c.Account.ID, &c.Account.Name, &c.Account.Type)
		if err != nil {
			return nil, fmt.Errorf("scan budget candidate: %w", err)
		}
		c.Budget = b
		c.User.ID = b.UserID
		c.Account.UserID = b.UserID
		c.Account.IsDefault = true
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) SetBudgetLastAlert(ctx context.Context, id string, sentAt time.Time) error {
	ts := formatTime(sentAt)
	res, err := q.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE id = ?`, ts, ts, id)
	if err != nil {
		return fmt.Errorf("set budget last alert: %w", err)
	}
	return rowsAffected(res, core.ErrBudgetNotFound)
}
