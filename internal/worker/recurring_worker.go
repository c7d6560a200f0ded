// Package worker bridges the AMQP due-event queue to the per-user throttled
// processor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"savvycent/internal/amqp"
	"savvycent/internal/core"
	"savvycent/internal/services"
)

// Consumer delivers due messages until ctx is done. *amqp.Client implements it.
type Consumer interface {
	RunConsumer(ctx context.Context, handler func(*amqp.RecurringDueMessage, amqp.Settle)) error
}

// errUserBusy requeues a delivery whose user already holds its share of the
// prefetch window.
var errUserBusy = errors.New("user has too many due events in flight")

// RecurringWorker feeds consumed messages into a ThrottledQueue and settles
// each delivery once its event has been handled. Unacked deliveries are
// bounded by the consumer prefetch, so a slow user backs up the broker and
// not the worker's memory. No user may hold more than maxPerUser of them;
// extra deliveries go back to the broker after deferDelay so the remaining
// prefetch slots stay open for other users.
type RecurringWorker struct {
	consumer   Consumer
	queue      *services.ThrottledQueue
	maxPerUser int
	deferDelay time.Duration

	mu       sync.Mutex
	inFlight map[string]int
}

func NewRecurringWorker(consumer Consumer, queue *services.ThrottledQueue, maxPerUser int) *RecurringWorker {
	if maxPerUser < 1 {
		maxPerUser = 1
	}
	return &RecurringWorker{
		consumer:   consumer,
		queue:      queue,
		maxPerUser: maxPerUser,
		deferDelay: time.Second,
		inFlight:   make(map[string]int),
	}
}

// HandleDueMessage enqueues msg and settles the delivery with the outcome.
func (w *RecurringWorker) HandleDueMessage(msg *amqp.RecurringDueMessage, settle amqp.Settle) {
	ev := msg.Event()
	if !w.acquire(ev.UserID) {
		slog.Debug("Deferring due event for busy user",
			"transaction_id", ev.TransactionID,
			"user_id", ev.UserID,
			"max_per_user", w.maxPerUser)
		time.AfterFunc(w.deferDelay, func() { settle(errUserBusy) })
		return
	}
	w.queue.Enqueue(ev, func(err error) {
		w.release(ev.UserID)
		settle(ackable(err))
	})
}

func (w *RecurringWorker) acquire(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[userID] >= w.maxPerUser {
		return false
	}
	w.inFlight[userID]++
	return true
}

func (w *RecurringWorker) release(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[userID] <= 1 {
		delete(w.inFlight, userID)
		return
	}
	w.inFlight[userID]--
}

// Run starts the queue and consumes until ctx is done. The queue keeps
// running afterwards so Stop can requeue whatever is left.
func (w *RecurringWorker) Run(ctx context.Context) error {
	if err := w.queue.Start(ctx); err != nil {
		return fmt.Errorf("start throttled queue: %w", err)
	}
	err := w.consumer.RunConsumer(ctx, w.HandleDueMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop waits for in-flight events; queued ones are settled for redelivery.
func (w *RecurringWorker) Stop(ctx context.Context) error {
	return w.queue.Stop(ctx)
}

// ackable maps a processing result onto the ack decision. Events whose
// transaction is gone will never succeed, so they are acked instead of
// requeued.
func ackable(err error) error {
	if errors.Is(err, core.ErrNotFound) {
		slog.Warn("Dropping due event for missing transaction", "error", err)
		return nil
	}
	return err
}
