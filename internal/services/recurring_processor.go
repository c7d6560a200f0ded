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

// DueEventPublisher hands a due recurring transaction to the processor side,
// either over AMQP or to an in-process ThrottledQueue.
type DueEventPublisher interface {
	PublishRecurringDue(ctx context.Context, ev core.RecurringDueEvent) error
}

// RecurringScheduler enumerates due recurring transactions. It only emits
// events; generating occurrences is the processor's job.
type RecurringScheduler struct {
	storage   *storage.SQLiteRepository
	publisher DueEventPublisher
}

func NewRecurringScheduler(storage *storage.SQLiteRepository, publisher DueEventPublisher) *RecurringScheduler {
	return &RecurringScheduler{storage: storage, publisher: publisher}
}

// Sweep emits one event per transaction due at now and returns how many were
// published. A failed publish is logged and skipped; the transaction stays
// due and is picked up by the next sweep.
func (s *RecurringScheduler) Sweep(ctx context.Context, now time.Time) (int, error) {
	if s.storage == nil || s.publisher == nil {
		return 0, fmt.Errorf("scheduler not properly initialized")
	}

	due, err := s.storage.Queries().ListDueRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Sweeping recurring transactions",
		"due", len(due),
		"sweep_time", now.Format(time.RFC3339))

	published := 0
	for _, tx := range due {
		ev := core.RecurringDueEvent{TransactionID: tx.ID, UserID: tx.UserID}
		if err := s.publisher.PublishRecurringDue(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recurring due event",
				"transaction_id", tx.ID,
				"user_id", tx.UserID,
				"error", err)
			continue
		}
		published++
	}

	slog.InfoContext(ctx, "Recurring sweep complete",
		"published", published,
		"total_due", len(due))

	return published, nil
}

// errNoLongerDue rolls back a unit whose schedule moved under it.
var errNoLongerDue = errors.New("recurring transaction no longer due")

// RecurringProcessor turns a due event into a generated transaction.
type RecurringProcessor struct {
	storage *storage.SQLiteRepository
	newID   func() string
}

func NewRecurringProcessor(storage *storage.SQLiteRepository) *RecurringProcessor {
	return &RecurringProcessor{storage: storage, newID: uuid.NewString}
}

// Process handles one event at now. It returns false when the transaction
// was not due any more, which makes duplicate deliveries no-ops. Creating the
// occurrence, moving the balance and advancing the schedule share one unit.
func (p *RecurringProcessor) Process(ctx context.Context, ev core.RecurringDueEvent, now time.Time) (bool, error) {
	now = now.UTC()
	var generated core.Transaction

	err := p.storage.ExecTx(ctx, func(q *storage.Queries) error {
		tpl, err := q.GetTransaction(ctx, ev.UserID, ev.TransactionID)
		if err != nil {
			return err
		}

		state := tpl.RecurrenceStateAt(now)
		if !state.Due() {
			slog.DebugContext(ctx, "Skipping recurring transaction",
				"transaction_id", tpl.ID,
				"state", state.String())
			return errNoLongerDue
		}

		next, err := NextRecurringDate(now, tpl.Date, tpl.RecurringInterval)
		if err != nil {
			return err
		}

		generated = core.Transaction{
			ID:          p.newID(),
			UserID:      tpl.UserID,
			AccountID:   tpl.AccountID,
			Type:        tpl.Type,
			Amount:      tpl.Amount,
			Date:        now,
			Category:    tpl.Category,
			Description: strings.TrimSpace(tpl.Description + core.RecurringSuffix),
			Status:      core.StatusCompleted,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := q.CreateTransaction(ctx, generated); err != nil {
			return err
		}
		if err := applyBalanceDelta(ctx, q, generated.AccountID, generated.SignedAmount(), now); err != nil {
			return err
		}

		advanced, err := q.MarkRecurringProcessed(ctx, tpl.ID, now, next)
		if err != nil {
			return err
		}
		if !advanced {
			return errNoLongerDue
		}
		return nil
	})
	if errors.Is(err, errNoLongerDue) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("process recurring transaction %s: %w", ev.TransactionID, err)
	}

	slog.InfoContext(ctx, "Created transaction from recurring template",
		"recurring_id", ev.TransactionID,
		"transaction_id", generated.ID,
		"user_id", ev.UserID,
		"amount", generated.Amount.String())
	return true, nil
}

// Handler adapts Process to an EventHandler that stamps events with clock().
func (p *RecurringProcessor) Handler(clock func() time.Time) EventHandler {
	return func(ctx context.Context, ev core.RecurringDueEvent) error {
		_, err := p.Process(ctx, ev, clock())
		return err
	}
}
