package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"savvycent/internal/core"
)

// RecurringDueMessage announces that a recurring transaction is due.
// It carries only identifiers; the worker reloads and re-checks the
// transaction before generating anything.
type RecurringDueMessage struct {
	TransactionID string    `json:"transaction_id"`
	UserID        string    `json:"user_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewRecurringDueMessage creates a message for ev stamped with the current time.
func NewRecurringDueMessage(ev core.RecurringDueEvent) *RecurringDueMessage {
	return &RecurringDueMessage{
		TransactionID: ev.TransactionID,
		UserID:        ev.UserID,
		Timestamp:     time.Now(),
	}
}

// Event returns the domain event carried by the message.
func (m *RecurringDueMessage) Event() core.RecurringDueEvent {
	return core.RecurringDueEvent{TransactionID: m.TransactionID, UserID: m.UserID}
}

// ToJSON converts the message to JSON bytes
func (m *RecurringDueMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecurringDueMessageFromJSON decodes a message and rejects ones missing an identifier.
func RecurringDueMessageFromJSON(data []byte) (*RecurringDueMessage, error) {
	var msg RecurringDueMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" || msg.UserID == "" {
		return nil, errors.New("recurring due message missing transaction_id or user_id")
	}
	return &msg, nil
}
