package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"savvycent/internal/core"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2025-03-15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"2025-03-15T10:30:00+02:00", time.Date(2025, 3, 15, 8, 30, 0, 0, time.UTC), false},
		{" 2025-01-31 ", time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), false},
		{"15/03/2025", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if tt.wantErr {
				if !errors.Is(err, core.ErrValidation) {
					t.Fatalf("error = %v, want validation error", err)
				}
				return
			}
			if err != nil || !got.Equal(tt.want) {
				t.Errorf("parseDate(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestParseYearMonth(t *testing.T) {
	now := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		query     string
		wantYear  int
		wantMonth int
		wantErr   bool
	}{
		{"defaults", "", 2025, 3, false},
		{"explicit", "year=2024&month=12", 2024, 12, false},
		{"month only", "month=1", 2025, 1, false},
		{"month out of range", "month=13", 0, 0, true},
		{"month not a number", "month=abc", 0, 0, true},
		{"year too small", "year=12", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/insights?"+tt.query, nil)
			year, month, err := parseYearMonth(req, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if year != tt.wantYear || month != tt.wantMonth {
				t.Errorf("got %d-%d, want %d-%d", year, month, tt.wantYear, tt.wantMonth)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"amount": "12.50"}`, false},
		{"number amount", `{"amount": 12.5}`, false},
		{"empty", ``, true},
		{"unknown field", `{"amount": "1", "admin": true}`, true},
		{"trailing data", `{"amount": "1"} {"amount": "2"}`, true},
		{"bad amount", `{"amount": "twelve"}`, true},
		{"sub-cent amount", `{"amount": "0.004"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPut, "/api/budget", strings.NewReader(tt.body))
			var dst budgetRequest
			err := decodeJSON(rr, req, &dst)
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrValidation) {
				t.Errorf("error %v is not a validation error", err)
			}
		})
	}
}

func TestTransactionRequestToInput(t *testing.T) {
	req := transactionRequest{
		AccountID:         " acc-1 ",
		Type:              "expense",
		Amount:            core.MustParseMoney("9.99"),
		Date:              "2025-03-01",
		Category:          " groceries\x00 ",
		Description:       "milk",
		IsRecurring:       true,
		RecurringInterval: "monthly",
	}
	in, err := req.toInput()
	if err != nil {
		t.Fatalf("toInput: %v", err)
	}
	if in.AccountID != "acc-1" || in.Type != core.Expense || in.RecurringInterval != core.Monthly {
		t.Errorf("unexpected input %+v", in)
	}
	if in.Category != "groceries" {
		t.Errorf("Category = %q", in.Category)
	}

	req.AccountID = ""
	if _, err := req.toInput(); !errors.Is(err, core.ErrValidation) {
		t.Errorf("missing account: error = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x01b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
