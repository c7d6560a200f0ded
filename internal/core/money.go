// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals backed by shopspring/decimal. Transactions
// always carry a positive amount; the sign is derived from the type.
package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. The zero value is 0.
type Money struct {
	value decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{value: d}
}

// ParseAmount converts a user supplied string into a positive amount with
// two decimal places.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// half-up on the third decimal place. Zero, negative and malformed values are
// rejected with ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34, nil
//	ParseAmount("12,34")  -> 12.34, nil
//	ParseAmount("12.345") -> 12.35, nil
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	d = d.Round(2)
	if !d.IsPositive() {
		return Money{}, ErrInvalidAmount
	}
	return Money{value: d}, nil
}

// ParseStoredMoney parses an amount persisted by the store. Unlike
// ParseAmount it accepts zero and negative values.
func ParseStoredMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("parse stored amount %q: %w", s, err)
	}
	return Money{value: d}, nil
}

// MustParseMoney is ParseStoredMoney for constants and tests.
func MustParseMoney(s string) Money {
	m, err := ParseStoredMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) Add(o Money) Money        { return Money{value: m.value.Add(o.value)} }
func (m Money) Sub(o Money) Money        { return Money{value: m.value.Sub(o.value)} }
func (m Money) Neg() Money               { return Money{value: m.value.Neg()} }
func (m Money) IsZero() bool             { return m.value.IsZero() }
func (m Money) IsPositive() bool         { return m.value.IsPositive() }
func (m Money) Cmp(o Money) int          { return m.value.Cmp(o.value) }
func (m Money) Equal(o Money) bool       { return m.value.Equal(o.value) }

// String renders the amount with two decimal places.
func (m Money) String() string {
	return m.value.StringFixed(2)
}

// Validate reports whether m is usable as a transaction or budget amount.
func (m Money) Validate() error {
	if !m.value.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// MarshalJSON encodes the amount as a string so clients never see floats.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.34" and 12.34. Values finer than a cent
// are rejected; the sign is left to the caller, since opening balances may
// be zero or negative.
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = Money{}
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return ErrInvalidAmount
	}
	cents := d.Round(2)
	if !cents.Equal(d) {
		return fmt.Errorf("%s has more than two decimal places: %w", s, ErrInvalidAmount)
	}
	*m = Money{value: cents}
	return nil
}

// PercentageOf returns part/whole*100. A non-positive whole yields zero.
func PercentageOf(part, whole Money) decimal.Decimal {
	if !whole.value.IsPositive() {
		return decimal.Zero
	}
	return part.value.Div(whole.value).Mul(hundred)
}
