package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"savvycent/internal/core"
	"savvycent/internal/ratelimit"
)

// ThrottledQueueConfig holds configuration for the per-user throttled queue
type ThrottledQueueConfig struct {
	// PerUserLimit is how many events one user may start per Period (default: 10)
	PerUserLimit int

	// Period is the throttle window (default: 1m)
	Period time.Duration

	// MaxConcurrent bounds handlers running at once across users (default: 4)
	MaxConcurrent int
}

// DefaultThrottledQueueConfig returns sensible defaults
func DefaultThrottledQueueConfig() ThrottledQueueConfig {
	return ThrottledQueueConfig{
		PerUserLimit:  10,
		Period:        time.Minute,
		MaxConcurrent: 4,
	}
}

// EventHandler processes one due event.
type EventHandler func(ctx context.Context, ev core.RecurringDueEvent) error

type queuedEvent struct {
	ev   core.RecurringDueEvent
	done func(error)
}

// ThrottledQueue buffers due events in a FIFO per user. Each user is drained
// by at most one goroutine, gated by a per-user rate limiter, so a large
// backlog from one user waits for its own windows and never blocks others.
// Events over the limit are deferred, never dropped.
type ThrottledQueue struct {
	config  ThrottledQueueConfig
	handler EventHandler
	limiter *ratelimit.Limiter
	sem     *semaphore.Weighted

	mu       sync.Mutex
	queues   map[string][]queuedEvent
	draining map[string]bool
	running  bool
	stopped  bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewThrottledQueue creates a queue that calls handler for every event.
func NewThrottledQueue(config ThrottledQueueConfig, handler EventHandler) *ThrottledQueue {
	def := DefaultThrottledQueueConfig()
	if config.PerUserLimit <= 0 {
		config.PerUserLimit = def.PerUserLimit
	}
	if config.Period <= 0 {
		config.Period = def.Period
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = def.MaxConcurrent
	}

	return &ThrottledQueue{
		config:  config,
		handler: handler,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			Limit:  config.PerUserLimit,
			Period: config.Period,
		}),
		sem:      semaphore.NewWeighted(int64(config.MaxConcurrent)),
		queues:   make(map[string][]queuedEvent),
		draining: make(map[string]bool),
	}
}

// Start enables draining. Returns an error if already running.
func (q *ThrottledQueue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("throttled queue is already running")
	}
	q.running = true
	q.stopped = false
	q.ctx, q.cancel = context.WithCancel(ctx)

	for userID, pending := range q.queues {
		if len(pending) > 0 && !q.draining[userID] {
			q.draining[userID] = true
			q.wg.Add(1)
			go q.drain(userID)
		}
	}

	slog.InfoContext(ctx, "Throttled queue started",
		"per_user_limit", q.config.PerUserLimit,
		"period", q.config.Period,
		"max_concurrent", q.config.MaxConcurrent)
	return nil
}

// Enqueue appends ev to its user's queue. done, if not nil, is called with
// the handler result, or with context.Canceled if the queue stops first or
// was already stopped.
func (q *ThrottledQueue) Enqueue(ev core.RecurringDueEvent, done func(error)) {
	item := queuedEvent{ev: ev, done: done}
	if !q.enqueue(item) {
		item.finish(context.Canceled)
	}
}

func (q *ThrottledQueue) enqueue(item queuedEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}

	userID := item.ev.UserID
	q.queues[userID] = append(q.queues[userID], item)
	if q.running && q.ctx.Err() == nil && !q.draining[userID] {
		q.draining[userID] = true
		q.wg.Add(1)
		go q.drain(userID)
	}
	return true
}

// PublishRecurringDue implements DueEventPublisher for in-process delivery.
func (q *ThrottledQueue) PublishRecurringDue(_ context.Context, ev core.RecurringDueEvent) error {
	if !q.enqueue(queuedEvent{ev: ev}) {
		return fmt.Errorf("throttled queue is stopped: %w", context.Canceled)
	}
	return nil
}

// Pending returns the number of queued events not yet handed to the handler.
func (q *ThrottledQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, pending := range q.queues {
		n += len(pending)
	}
	return n
}

func (q *ThrottledQueue) pop(userID string) (queuedEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.queues[userID]
	if len(pending) == 0 || q.ctx.Err() != nil {
		q.draining[userID] = false
		if len(pending) == 0 {
			delete(q.queues, userID)
		}
		return queuedEvent{}, false
	}
	item := pending[0]
	q.queues[userID] = pending[1:]
	return item, true
}

func (q *ThrottledQueue) drain(userID string) {
	defer q.wg.Done()
	ctx := q.ctx

	for {
		item, ok := q.pop(userID)
		if !ok {
			return
		}
		item.finish(q.handle(ctx, item.ev))
	}
}

func (q *ThrottledQueue) handle(ctx context.Context, ev core.RecurringDueEvent) error {
	if err := q.limiter.Wait(ctx, ev.UserID); err != nil {
		return err
	}
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer q.sem.Release(1)

	if err := q.handler(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to process recurring due event",
			"transaction_id", ev.TransactionID,
			"user_id", ev.UserID,
			"error", err)
		return err
	}
	return nil
}

func (e queuedEvent) finish(err error) {
	if e.done != nil {
		e.done(err)
	}
}

// Stop cancels waiting work, waits for in-flight handlers, and fails every
// still-queued event with context.Canceled so its sender can redeliver it.
func (q *ThrottledQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "Throttled queue stop timed out")
		return ctx.Err()
	}

	q.mu.Lock()
	leftover := q.queues
	q.queues = make(map[string][]queuedEvent)
	q.running = false
	q.mu.Unlock()

	for _, pending := range leftover {
		for _, item := range pending {
			item.finish(context.Canceled)
		}
	}
	q.limiter.Stop()

	slog.InfoContext(ctx, "Throttled queue stopped")
	return nil
}

// IsRunning returns whether the queue is currently draining
func (q *ThrottledQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
