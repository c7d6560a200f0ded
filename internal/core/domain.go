package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Checking AccountType = "CHECKING"
	Savings  AccountType = "SAVINGS"

	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"

	Daily   RecurringInterval = "DAILY"
	Weekly  RecurringInterval = "WEEKLY"
	Monthly RecurringInterval = "MONTHLY"
	Yearly  RecurringInterval = "YEARLY"
)

// RecurringSuffix marks transactions generated from a recurring template.
const RecurringSuffix = " (Recurring)"

type (
	AccountType       string
	TransactionType   string
	TransactionStatus string
	RecurringInterval string

	User struct {
		ID              string    `json:"id"`
		Email           string    `json:"email"`
		Name            string    `json:"name"`
		LastReportMonth string    `json:"-"` // YYYY-MM of the last monthly report sent
		CreatedAt       time.Time `json:"createdAt"`
		UpdatedAt       time.Time `json:"updatedAt"`
	}

	Account struct {
		ID               string      `json:"id"`
		UserID           string      `json:"userId"`
		Name             string      `json:"name"`
		Type             AccountType `json:"type"`
		Balance          Money       `json:"balance"`
		IsDefault        bool        `json:"isDefault"`
		TransactionCount int         `json:"transactionCount"`
		CreatedAt        time.Time   `json:"createdAt"`
		UpdatedAt        time.Time   `json:"updatedAt"`
	}

	Transaction struct {
		ID                string            `json:"id"`
		UserID            string            `json:"userId"`
		AccountID         string            `json:"accountId"`
		Type              TransactionType   `json:"type"`
		Amount            Money             `json:"amount"`
		Date              time.Time         `json:"date"`
		Category          string            `json:"category"`
		Description       string            `json:"description,omitempty"`
		ReceiptURL        string            `json:"receiptUrl,omitempty"`
		IsRecurring       bool              `json:"isRecurring"`
		RecurringInterval RecurringInterval `json:"recurringInterval,omitempty"`
		Status            TransactionStatus `json:"status"`
		NextRecurringDate *time.Time        `json:"nextRecurringDate,omitempty"`
		LastProcessed     *time.Time        `json:"lastProcessed,omitempty"`
		CreatedAt         time.Time         `json:"createdAt"`
		UpdatedAt         time.Time         `json:"updatedAt"`
	}

	Budget struct {
		ID            string     `json:"id"`
		UserID        string     `json:"userId"`
		Amount        Money      `json:"amount"`
		LastAlertSent *time.Time `json:"lastAlertSent,omitempty"`
		CreatedAt     time.Time  `json:"createdAt"`
		UpdatedAt     time.Time  `json:"updatedAt"`
	}
)

func (t AccountType) Valid() bool {
	return t == Checking || t == Savings
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (i RecurringInterval) Valid() bool {
	switch i {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// SignedAmount is the balance delta this transaction contributes to its account.
func (t Transaction) SignedAmount() Money {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyAccountName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

const maxDescriptionLen = 200

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidTransactionType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if t.Status != "" && !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if t.IsRecurring {
		if t.RecurringInterval == "" {
			return ErrMissingInterval
		}
		if !t.RecurringInterval.Valid() {
			return ErrInvalidInterval
		}
	} else if t.RecurringInterval != "" {
		return ErrUnexpectedInterval
	}
	return nil
}

func (b Budget) Validate() error {
	return b.Amount.Validate()
}

// AlertedInMonth reports whether an alert was already sent in now's calendar month.
func (b Budget) AlertedInMonth(now time.Time) bool {
	if b.LastAlertSent == nil {
		return false
	}
	last := b.LastAlertSent.UTC()
	now = now.UTC()
	return last.Year() == now.Year() && last.Month() == now.Month()
}

// MonthBounds returns [start, end) of the calendar month containing t, in UTC.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
