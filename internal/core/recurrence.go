package core

import "time"

// RecurrenceState is the scheduling state of a transaction at a point in time.
type RecurrenceState int

const (
	// RecurrenceNone: the transaction is not recurring.
	RecurrenceNone RecurrenceState = iota
	// RecurrenceInactive: recurring, but its status is not COMPLETED. It
	// becomes eligible again if the status returns to COMPLETED.
	RecurrenceInactive
	// RecurrencePending: recurring and never processed. Counts as due.
	RecurrencePending
	// RecurrenceScheduled: processed before and the next date is in the future.
	RecurrenceScheduled
	// RecurrenceDue: the next date has been reached.
	RecurrenceDue
)

func (s RecurrenceState) String() string {
	switch s {
	case RecurrenceNone:
		return "none"
	case RecurrenceInactive:
		return "inactive"
	case RecurrencePending:
		return "pending"
	case RecurrenceScheduled:
		return "scheduled"
	case RecurrenceDue:
		return "due"
	}
	return "unknown"
}

// Due reports whether the state allows generating the next occurrence.
func (s RecurrenceState) Due() bool {
	return s == RecurrencePending || s == RecurrenceDue
}

// RecurrenceStateAt derives the explicit scheduling state of t at now.
func (t Transaction) RecurrenceStateAt(now time.Time) RecurrenceState {
	switch {
	case !t.IsRecurring:
		return RecurrenceNone
	case t.Status != StatusCompleted:
		return RecurrenceInactive
	case t.LastProcessed == nil:
		return RecurrencePending
	case t.NextRecurringDate == nil || !t.NextRecurringDate.After(now):
		return RecurrenceDue
	default:
		return RecurrenceScheduled
	}
}

// IsDueAt is shorthand for RecurrenceStateAt(now).Due().
func (t Transaction) IsDueAt(now time.Time) bool {
	return t.RecurrenceStateAt(now).Due()
}

// RecurringDueEvent asks the processor to generate the next occurrence of a
// recurring transaction. Delivery is at-least-once.
type RecurringDueEvent struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
}
