package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"savvycent/internal/core"
)

const transactionColumns = `id, user_id, account_id, type, amount, date, category, description,
    receipt_url, is_recurring, recurring_interval, status, next_recurring_date,
    last_processed, created_at, updated_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx                   core.Transaction
		amount, date         string
		isRecurring          int
		interval             sql.NullString
		next, last           sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.AccountID, &tx.Type, &amount, &date,
		&tx.Category, &tx.Description, &tx.ReceiptURL, &isRecurring, &interval,
		&tx.Status, &next, &last, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.Amount, err = core.ParseStoredMoney(amount); err != nil {
		return core.Transaction{}, err
	}
	if tx.Date, err = parseTime(date); err != nil {
		return core.Transaction{}, err
	}
	tx.IsRecurring = isRecurring == 1
	tx.RecurringInterval = core.RecurringInterval(interval.String)
	if tx.NextRecurringDate, err = parseNullTime(next); err != nil {
		return core.Transaction{}, err
	}
	if tx.LastProcessed, err = parseNullTime(last); err != nil {
		return core.Transaction{}, err
	}
	if tx.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.Transaction{}, err
	}
	if tx.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...interface{}) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

const createTransaction = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		tx.ID, tx.UserID, tx.AccountID, string(tx.Type), tx.Amount.Decimal().String(),
		formatTime(tx.Date), tx.Category, tx.Description, tx.ReceiptURL,
		boolToInt(tx.IsRecurring), nullString(string(tx.RecurringInterval)), string(tx.Status),
		formatNullTime(tx.NextRecurringDate), formatNullTime(tx.LastProcessed),
		formatTime(tx.CreatedAt), formatTime(tx.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

const updateTransaction = `
UPDATE transactions SET
    account_id = ?, type = ?, amount = ?, date = ?, category = ?, description = ?,
    receipt_url = ?, is_recurring = ?, recurring_interval = ?, status = ?,
    next_recurring_date = ?, last_processed = ?, updated_at = ?
WHERE id = ? AND user_id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		tx.AccountID, string(tx.Type), tx.Amount.Decimal().String(), formatTime(tx.Date),
		tx.Category, tx.Description, tx.ReceiptURL, boolToInt(tx.IsRecurring),
		nullString(string(tx.RecurringInterval)), string(tx.Status),
		formatNullTime(tx.NextRecurringDate), formatNullTime(tx.LastProcessed),
		formatTime(tx.UpdatedAt), tx.ID, tx.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return rowsAffected(res, core.ErrTransactionNotFound)
}

// GetTransaction returns the transaction only if it belongs to userID.
func (q *Queries) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (q *Queries) DeleteTransaction(ctx context.Context, userID, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return rowsAffected(res, core.ErrTransactionNotFound)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// ListTransactionsByIDs returns those of ids that belong to userID.
func (q *Queries) ListTransactionsByIDs(ctx context.Context, userID string, ids []string) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	txs, err := q.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions by ids: %w", err)
	}
	return txs, nil
}

// DeleteTransactionsByIDs removes the rows and returns how many were deleted.
func (q *Queries) DeleteTransactionsByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	return res.RowsAffected()
}

// ListAccountTransactions returns an account's transactions, newest first.
func (q *Queries) ListAccountTransactions(ctx context.Context, userID, accountID string) ([]core.Transaction, error) {
	txs, err := q.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND account_id = ? ORDER BY date DESC, created_at DESC`,
		userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	return txs, nil
}

// ListUserTransactions returns the user's transactions dated in [from, to), newest first.
func (q *Queries) ListUserTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	txs, err := q.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date DESC, created_at DESC`,
		userID, formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("list user transactions: %w", err)
	}
	return txs, nil
}

const dueCondition = `is_recurring = 1 AND status = 'COMPLETED'
    AND (last_processed IS NULL OR next_recurring_date <= ?)`

// ListDueRecurring returns every recurring transaction due at now.
func (q *Queries) ListDueRecurring(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	txs, err := q.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+dueCondition+` ORDER BY user_id, next_recurring_date`,
		formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("list due recurring: %w", err)
	}
	return txs, nil
}

// MarkRecurringProcessed advances the schedule of a due transaction. It
// returns false, without error, when the transaction was no longer due.
func (q *Queries) MarkRecurringProcessed(ctx context.Context, id string, processedAt, next time.Time) (bool, error) {
	ts := formatTime(processedAt)
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET last_processed = ?, next_recurring_date = ?, updated_at = ?
WHERE id = ? AND `+dueCondition,
		ts, formatTime(next), ts, id, ts)
	if err != nil {
		return false, fmt.Errorf("mark recurring processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// SumAccountExpenses totals EXPENSE amounts on the account dated in [from, to).
// Amounts are summed as decimals in Go, never in SQL.
func (q *Queries) SumAccountExpenses(ctx context.Context, accountID string, from, to time.Time) (core.Money, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT amount FROM transactions WHERE account_id = ? AND type = 'EXPENSE' AND date >= ? AND date < ?`,
		accountID, formatTime(from), formatTime(to))
	if err != nil {
		return core.Money{}, fmt.Errorf("sum account expenses: %w", err)
	}
	defer rows.Close()

	var total core.Money
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return core.Money{}, fmt.Errorf("scan amount: %w", err)
		}
		amt, err := core.ParseStoredMoney(s)
		if err != nil {
			return core.Money{}, err
		}
		total = total.Add(amt)
	}
	return total, rows.Err()
}
