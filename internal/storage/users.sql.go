package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"savvycent/internal/core"
)

const userColumns = `id, email, name, last_report_month, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (core.User, error) {
	var (
		u                    core.User
		lastReport           sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &lastReport, &createdAt, &updatedAt); err != nil {
		return core.User{}, err
	}
	u.LastReportMonth = lastReport.String
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return core.User{}, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.User{}, err
	}
	return u, nil
}

const upsertUser = `
INSERT INTO users (id, email, name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    email = excluded.email,
    name = CASE WHEN excluded.name = '' THEN users.name ELSE excluded.name END,
    updated_at = excluded.updated_at`

// UpsertUser inserts the user or refreshes its email and name.
func (q *Queries) UpsertUser(ctx context.Context, u core.User, now time.Time) error {
	ts := formatTime(now)
	if _, err := q.db.ExecContext(ctx, upsertUser, u.ID, u.Email, u.Name, ts, ts); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (core.User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (q *Queries) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const claimUserReport = `
UPDATE users SET last_report_month = ?, updated_at = ?
WHERE id = ? AND (last_report_month IS NULL OR last_report_month <> ?)`

// ClaimUserReport records that the report for month is being sent. It
// returns false when that month was already claimed.
func (q *Queries) ClaimUserReport(ctx context.Context, userID, month string, now time.Time) (bool, error) {
	res, err := q.db.ExecContext(ctx, claimUserReport, month, formatTime(now), userID, month)
	if err != nil {
		return false, fmt.Errorf("claim user report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}
