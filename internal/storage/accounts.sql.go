package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"savvycent/internal/core"
)

const accountColumns = `a.id, a.user_id, a.name, a.type, a.balance, a.is_default, a.created_at, a.updated_at`

func scanAccount(row rowScanner, extra ...interface{}) (core.Account, error) {
	var (
		a                    core.Account
		balance              string
		isDefault            int
		createdAt, updatedAt string
	)
	dest := append([]interface{}{&a.ID, &a.UserID, &a.Name, &a.Type, &balance, &isDefault, &createdAt, &updatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return core.Account{}, err
	}
	var err error
	if a.Balance, err = core.ParseStoredMoney(balance); err != nil {
		return core.Account{}, err
	}
	a.IsDefault = isDefault == 1
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Account{}, err
	}
	return a, nil
}

const createAccount = `
INSERT INTO accounts (id, user_id, name, type, balance, is_default, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx, createAccount,
		a.ID, a.UserID, a.Name, string(a.Type), a.Balance.Decimal().String(),
		boolToInt(a.IsDefault), formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns the account only if it belongs to userID.
func (q *Queries) GetAccount(ctx context.Context, userID, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.id = ? AND a.user_id = ?`, id, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (q *Queries) GetDefaultAccount(ctx context.Context, userID string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.user_id = ? AND a.is_default = 1`, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get default account: %w", err)
	}
	return a, nil
}

const listAccounts = `
SELECT ` + accountColumns + `,
    (SELECT COUNT(*) FROM transactions t WHERE t.account_id = a.id)
FROM accounts a
WHERE a.user_id = ?
ORDER BY a.created_at DESC, a.id`

// ListAccounts returns the user's accounts, newest first, with transaction counts.
func (q *Queries) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var count int
		a, err := scanAccount(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.TransactionCount = count
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (q *Queries) CountAccounts(ctx context.Context, userID string) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	return n, nil
}

func (q *Queries) ClearDefaultAccounts(ctx context.Context, userID string, now time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
		formatTime(now), userID)
	if err != nil {
		return fmt.Errorf("clear default accounts: %w", err)
	}
	return nil
}

func (q *Queries) SetDefaultAccount(ctx context.Context, userID, id string, now time.Time) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		formatTime(now), id, userID)
	if err != nil {
		return fmt.Errorf("set default account: %w", err)
	}
	return rowsAffected(res, core.ErrAccountNotFound)
}

// OldestAccount returns the user's earliest account other than exceptID.
func (q *Queries) OldestAccount(ctx context.Context, userID, exceptID string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.user_id = ? AND a.id <> ? ORDER BY a.created_at, a.id LIMIT 1`,
		userID, exceptID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("oldest account: %w", err)
	}
	return a, nil
}

func (q *Queries) DeleteAccount(ctx context.Context, userID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return rowsAffected(res, core.ErrAccountNotFound)
}

// AddAccountBalance increments the stored balance by delta. Callers must run
// it inside the same transaction as the write that produced the delta.
func (q *Queries) AddAccountBalance(ctx context.Context, id string, delta core.Money, now time.Time) (core.Money, error) {
	var stored string
	err := q.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = ?`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("read balance: %w", err)
	}
	balance, err := core.ParseStoredMoney(stored)
	if err != nil {
		return core.Money{}, err
	}
	balance = balance.Add(delta)
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance.Decimal().String(), formatTime(now), id)
	if err != nil {
		return core.Money{}, fmt.Errorf("write balance: %w", err)
	}
	if err := rowsAffected(res, core.ErrAccountNotFound); err != nil {
		return core.Money{}, err
	}
	return balance, nil
}
