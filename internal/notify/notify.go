// Package notify delivers user email: budget alerts and monthly reports.
// Mailer renders the messages; a Transport hands them to a provider.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("message has no recipient")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("message has no subject")
	}
	return nil
}

// Transport sends a single message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LogTransport writes messages to the log instead of sending them. Used
// when no mail provider is configured.
type LogTransport struct{}

func (LogTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Email not sent, no transport configured",
		"to", msg.To,
		"subject", msg.Subject,
		"body_bytes", len(msg.HTML))
	return nil
}
