// This file parses and validates request bodies and query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"savvycent/internal/core"
	"savvycent/internal/services"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst. Unknown fields and
// trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty: %w", core.ErrValidation)
		case errors.As(err, &maxErr):
			return fmt.Errorf("request body larger than %d bytes: %w", maxErr.Limit, core.ErrValidation)
		case errors.Is(err, core.ErrValidation):
			return err
		default:
			return fmt.Errorf("malformed JSON: %v: %w", err, core.ErrValidation)
		}
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON object: %w", core.ErrValidation)
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, core.ErrInvalidDate
}

// parseYearMonth reads year and month query parameters, defaulting to the
// month of now. Out-of-range values are validation errors.
func parseYearMonth(r *http.Request, now time.Time) (year, month int, err error) {
	year, month = now.Year(), int(now.Month())
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("year")); v != "" {
		if year, err = strconv.Atoi(v); err != nil || year < 1970 || year > 9999 {
			return 0, 0, fmt.Errorf("invalid year %q: %w", v, core.ErrValidation)
		}
	}
	if v := strings.TrimSpace(q.Get("month")); v != "" {
		if month, err = strconv.Atoi(v); err != nil || month < 1 || month > 12 {
			return 0, 0, fmt.Errorf("invalid month %q: %w", v, core.ErrValidation)
		}
	}
	return year, month, nil
}

// sanitizeInput trims whitespace and drops control characters other than
// tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

type accountRequest struct {
	Name      string           `json:"name"`
	Type      core.AccountType `json:"type"`
	Balance   *core.Money      `json:"balance"`
	IsDefault bool             `json:"isDefault"`
}

func (req accountRequest) toInput() services.AccountInput {
	in := services.AccountInput{
		Name:      sanitizeInput(req.Name),
		Type:      core.AccountType(strings.ToUpper(string(req.Type))),
		IsDefault: req.IsDefault,
	}
	if req.Balance != nil {
		in.Balance = *req.Balance
	}
	return in
}

type transactionRequest struct {
	AccountID         string                 `json:"accountId"`
	Type              core.TransactionType   `json:"type"`
	Amount            core.Money             `json:"amount"`
	Date              string                 `json:"date"`
	Category          string                 `json:"category"`
	Description       string                 `json:"description"`
	ReceiptURL        string                 `json:"receiptUrl"`
	IsRecurring       bool                   `json:"isRecurring"`
	RecurringInterval core.RecurringInterval `json:"recurringInterval"`
	Status            core.TransactionStatus `json:"status"`
}

func (req transactionRequest) toInput() (services.TransactionInput, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return services.TransactionInput{}, fmt.Errorf("accountId is required: %w", core.ErrValidation)
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return services.TransactionInput{}, err
	}
	return services.TransactionInput{
		AccountID:         strings.TrimSpace(req.AccountID),
		Type:              core.TransactionType(strings.ToUpper(string(req.Type))),
		Amount:            req.Amount,
		Date:              date,
		Category:          sanitizeInput(req.Category),
		Description:       sanitizeInput(req.Description),
		ReceiptURL:        strings.TrimSpace(req.ReceiptURL),
		IsRecurring:       req.IsRecurring,
		RecurringInterval: core.RecurringInterval(strings.ToUpper(string(req.RecurringInterval))),
		Status:            core.TransactionStatus(strings.ToUpper(string(req.Status))),
	}, nil
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type budgetRequest struct {
	Amount core.Money `json:"amount"`
}
