package core

import (
	"errors"
	"fmt"
)

// Error classes surfaced to callers. Specific errors wrap one of these so
// transports can map them with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrUpstream     = errors.New("upstream failure")
	ErrRateLimited  = errors.New("rate limited")
)

var (
	ErrInvalidAmount          = fmt.Errorf("invalid amount: %w", ErrValidation)
	ErrInvalidDate            = fmt.Errorf("invalid date: %w", ErrValidation)
	ErrEmptyCategory          = fmt.Errorf("empty category: %w", ErrValidation)
	ErrEmptyAccountName       = fmt.Errorf("empty account name: %w", ErrValidation)
	ErrInvalidAccountType     = fmt.Errorf("invalid account type: %w", ErrValidation)
	ErrInvalidTransactionType = fmt.Errorf("invalid transaction type: %w", ErrValidation)
	ErrInvalidStatus          = fmt.Errorf("invalid transaction status: %w", ErrValidation)
	ErrMissingInterval        = fmt.Errorf("recurring interval is required: %w", ErrValidation)
	ErrInvalidInterval        = fmt.Errorf("invalid recurring interval: %w", ErrValidation)
	ErrUnexpectedInterval     = fmt.Errorf("recurring interval set on a non-recurring transaction: %w", ErrValidation)
	ErrDescriptionTooLong     = fmt.Errorf("description too long (max 200 characters): %w", ErrValidation)

	ErrUserNotFound        = fmt.Errorf("user %w", ErrNotFound)
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrBudgetNotFound      = fmt.Errorf("budget %w", ErrNotFound)
)
