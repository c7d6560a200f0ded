package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"savvycent/internal/core"
	"savvycent/internal/storage"
)

// LedgerService owns every user-facing write to accounts, transactions and
// budgets. Each write and its balance change commit in one store transaction.
type LedgerService struct {
	storage *storage.SQLiteRepository
	now     func() time.Time
	newID   func() string
}

func NewLedgerService(storage *storage.SQLiteRepository) *LedgerService {
	return &LedgerService{
		storage: storage,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// EnsureUser creates the user on first sight and refreshes email and name after.
func (s *LedgerService) EnsureUser(ctx context.Context, u core.User) (core.User, error) {
	if strings.TrimSpace(u.ID) == "" {
		return core.User{}, core.ErrUnauthorized
	}
	q := s.storage.Queries()
	if err := q.UpsertUser(ctx, u, s.now()); err != nil {
		return core.User{}, err
	}
	return q.GetUser(ctx, u.ID)
}

// AccountInput carries the fields a user sets when creating an account.
type AccountInput struct {
	Name      string           `json:"name"`
	Type      core.AccountType `json:"type"`
	Balance   core.Money       `json:"balance"`
	IsDefault bool             `json:"isDefault"`
}

// CreateAccount stores a new account. A user's first account is always the
// default; a new default replaces the previous one in the same unit.
func (s *LedgerService) CreateAccount(ctx context.Context, userID string, in AccountInput) (core.Account, error) {
	now := s.now()
	account := core.Account{
		ID:        s.newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Type:      in.Type,
		Balance:   in.Balance,
		IsDefault: in.IsDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := account.Validate(); err != nil {
		return core.Account{}, err
	}

	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		count, err := q.CountAccounts(ctx, userID)
		if err != nil {
			return err
		}
		if count == 0 {
			account.IsDefault = true
		}
		if account.IsDefault {
			if err := q.ClearDefaultAccounts(ctx, userID, now); err != nil {
				return err
			}
		}
		return q.CreateAccount(ctx, account)
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		"account_id", account.ID,
		"user_id", userID,
		"is_default", account.IsDefault)
	return account, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.storage.Queries().ListAccounts(ctx, userID)
}

// AccountWithTransactions is an account and its transactions, newest first.
type AccountWithTransactions struct {
	core.Account
	Transactions []core.Transaction `json:"transactions"`
}

func (s *LedgerService) GetAccountWithTransactions(ctx context.Context, userID, accountID string) (AccountWithTransactions, error) {
	q := s.storage.Queries()
	account, err := q.GetAccount(ctx, userID, accountID)
	if err != nil {
		return AccountWithTransactions{}, err
	}
	txs, err := q.ListAccountTransactions(ctx, userID, accountID)
	if err != nil {
		return AccountWithTransactions{}, err
	}
	account.TransactionCount = len(txs)
	return AccountWithTransactions{Account: account, Transactions: txs}, nil
}

// SetDefaultAccount makes accountID the user's only default account.
func (s *LedgerService) SetDefaultAccount(ctx context.Context, userID, accountID string) (core.Account, error) {
	now := s.now()
	var account core.Account
	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, accountID); err != nil {
			return err
		}
		if err := q.ClearDefaultAccounts(ctx, userID, now); err != nil {
			return err
		}
		if err := q.SetDefaultAccount(ctx, userID, accountID, now); err != nil {
			return err
		}
		var err error
		account, err = q.GetAccount(ctx, userID, accountID)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("set default account: %w", err)
	}

	slog.InfoContext(ctx, "Default account changed", "account_id", accountID, "user_id", userID)
	return account, nil
}

// DeleteAccount removes the account and, through the schema, its
// transactions. If it was the default, the oldest remaining account takes over.
func (s *LedgerService) DeleteAccount(ctx context.Context, userID, accountID string) error {
	now := s.now()
	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, userID, accountID)
		if err != nil {
			return err
		}
		if err := q.DeleteAccount(ctx, userID, accountID); err != nil {
			return err
		}
		if !account.IsDefault {
			return nil
		}
		next, err := q.OldestAccount(ctx, userID, accountID)
		if errors.Is(err, core.ErrAccountNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return q.SetDefaultAccount(ctx, userID, next.ID, now)
	})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	slog.InfoContext(ctx, "Account deleted", "account_id", accountID, "user_id", userID)
	return nil
}

// TransactionInput carries the user-editable fields of a transaction.
type TransactionInput struct {
	AccountID         string                 `json:"accountId"`
	Type              core.TransactionType   `json:"type"`
	Amount            core.Money             `json:"amount"`
	Date              time.Time              `json:"date"`
	Category          string                 `json:"category"`
	Description       string                 `json:"description"`
	ReceiptURL        string                 `json:"receiptUrl"`
	IsRecurring       bool                   `json:"isRecurring"`
	RecurringInterval core.RecurringInterval `json:"recurringInterval"`
	Status            core.TransactionStatus `json:"status"`
}

func (in TransactionInput) apply(tx *core.Transaction) error {
	tx.AccountID = in.AccountID
	tx.Type = in.Type
	tx.Amount = in.Amount
	tx.Date = in.Date.UTC()
	tx.Category = strings.TrimSpace(in.Category)
	tx.Description = strings.TrimSpace(in.Description)
	tx.ReceiptURL = in.ReceiptURL
	tx.IsRecurring = in.IsRecurring
	tx.RecurringInterval = in.RecurringInterval
	tx.Status = in.Status
	if tx.Status == "" {
		tx.Status = core.StatusCompleted
	}
	if !tx.IsRecurring {
		tx.RecurringInterval = ""
	}
	if err := tx.Validate(); err != nil {
		return err
	}

	tx.NextRecurringDate = nil
	if !tx.IsRecurring {
		tx.LastProcessed = nil
		return nil
	}
	next, err := NextRecurringDate(tx.Date, tx.Date, tx.RecurringInterval)
	if err != nil {
		return err
	}
	tx.NextRecurringDate = &next
	return nil
}

// CreateTransaction stores the transaction and applies its signed amount to
// the account balance in one unit.
func (s *LedgerService) CreateTransaction(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	now := s.now()
	tx := core.Transaction{ID: s.newID(), UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := in.apply(&tx); err != nil {
		return core.Transaction{}, err
	}

	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		if _, err := q.GetAccount(ctx, userID, tx.AccountID); err != nil {
			return err
		}
		if err := q.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		return applyBalanceDelta(ctx, q, tx.AccountID, tx.SignedAmount(), now)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"recurring", tx.IsRecurring)
	return tx, nil
}

// keepSchedule carries the schedule of a template that already produced
// occurrences through an edit. A changed interval steps from the last run;
// a template switched on anew starts over from its own date.
func keepSchedule(old core.Transaction, updated *core.Transaction) error {
	if !old.IsRecurring || !updated.IsRecurring || old.LastProcessed == nil {
		return nil
	}
	updated.LastProcessed = old.LastProcessed
	if updated.RecurringInterval == old.RecurringInterval {
		updated.NextRecurringDate = old.NextRecurringDate
		return nil
	}
	next, err := NextRecurringDate(*old.LastProcessed, updated.Date, updated.RecurringInterval)
	if err != nil {
		return err
	}
	updated.NextRecurringDate = &next
	return nil
}

// UpdateTransaction replaces the editable fields. The balance moves by the
// difference of signed amounts, split across accounts when the account changed.
func (s *LedgerService) UpdateTransaction(ctx context.Context, userID, id string, in TransactionInput) (core.Transaction, error) {
	now := s.now()
	var updated core.Transaction
	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		updated = old
		updated.UpdatedAt = now
		if err := in.apply(&updated); err != nil {
			return err
		}
		if err := keepSchedule(old, &updated); err != nil {
			return err
		}
		if updated.AccountID != old.AccountID {
			if _, err := q.GetAccount(ctx, userID, updated.AccountID); err != nil {
				return err
			}
		}
		if err := q.UpdateTransaction(ctx, updated); err != nil {
			return err
		}

		deltas := balanceDeltas{}
		deltas.add(old.AccountID, old.SignedAmount().Neg())
		deltas.add(updated.AccountID, updated.SignedAmount())
		return deltas.apply(ctx, q, now)
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "transaction_id", id, "account_id", updated.AccountID)
	return updated, nil
}

// DeleteTransaction removes the transaction and reverses its balance effect.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id string) error {
	now := s.now()
	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		tx, err := q.GetTransaction(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := q.DeleteTransaction(ctx, userID, id); err != nil {
			return err
		}
		return applyBalanceDelta(ctx, q, tx.AccountID, tx.SignedAmount().Neg(), now)
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id)
	return nil
}

// BulkDeleteTransactions removes all ids or none. Balance changes are summed
// per account and written once per account.
func (s *LedgerService) BulkDeleteTransactions(ctx context.Context, userID string, ids []string) (int, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return 0, fmt.Errorf("no transaction ids: %w", core.ErrValidation)
	}

	now := s.now()
	var deleted int64
	err := s.storage.ExecTx(ctx, func(q *storage.Queries) error {
		txs, err := q.ListTransactionsByIDs(ctx, userID, unique)
		if err != nil {
			return err
		}
		if len(txs) != len(unique) {
			return core.ErrTransactionNotFound
		}

		deltas := balanceDeltas{}
		for _, tx := range txs {
			deltas.add(tx.AccountID, tx.SignedAmount().Neg())
		}
		if deleted, err = q.DeleteTransactionsByIDs(ctx, userID, unique); err != nil {
			return err
		}
		return deltas.apply(ctx, q, now)
	})
	if err != nil {
		return 0, fmt.Errorf("bulk delete transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions bulk deleted", "user_id", userID, "count", deleted)
	return int(deleted), nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ListTransactions returns the user's transactions dated in [from, to).
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]core.Transaction, error) {
	return s.storage.Queries().ListUserTransactions(ctx, userID, from, to)
}

// UpsertBudget sets the user's monthly budget amount.
func (s *LedgerService) UpsertBudget(ctx context.Context, userID string, amount core.Money) (core.Budget, error) {
	now := s.now()
	b := core.Budget{ID: s.newID(), UserID: userID, Amount: amount, CreatedAt: now, UpdatedAt: now}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	q := s.storage.Queries()
	if err := q.UpsertBudget(ctx, b); err != nil {
		return core.Budget{}, err
	}
	saved, err := q.GetBudget(ctx, userID)
	if err != nil {
		return core.Budget{}, err
	}
	slog.InfoContext(ctx, "Budget saved", "user_id", userID, "amount", amount.String())
	return saved, nil
}

// GetBudgetStatus returns the budget, if any, with this month's expenses on
// accountID. An empty accountID means the default account.
func (s *LedgerService) GetBudgetStatus(ctx context.Context, userID, accountID string) (core.BudgetStatus, error) {
	q := s.storage.Queries()
	var status core.BudgetStatus

	budget, err := q.GetBudget(ctx, userID)
	switch {
	case err == nil:
		status.Budget = &budget
	case !errors.Is(err, core.ErrBudgetNotFound):
		return core.BudgetStatus{}, err
	}

	var account core.Account
	if accountID == "" {
		account, err = q.GetDefaultAccount(ctx, userID)
	} else {
		account, err = q.GetAccount(ctx, userID, accountID)
	}
	if err != nil {
		return core.BudgetStatus{}, err
	}

	start, end := core.MonthBounds(s.now())
	status.CurrentExpenses, err = q.SumAccountExpenses(ctx, account.ID, start, end)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	return status, nil
}
