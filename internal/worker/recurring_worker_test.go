package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"savvycent/internal/amqp"
	"savvycent/internal/core"
	"savvycent/internal/services"
)

func TestAckable(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantNil bool
	}{
		{"success", nil, true},
		{"transaction deleted", fmt.Errorf("process: %w", core.ErrTransactionNotFound), true},
		{"store failure", errors.New("database is locked"), false},
		{"shutdown", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ackable(tt.err); (got == nil) != tt.wantNil {
				t.Errorf("ackable(%v) = %v", tt.err, got)
			}
		})
	}
}

// fakeConsumer delivers a fixed set of messages, then blocks until ctx is done.
type fakeConsumer struct {
	msgs    []*amqp.RecurringDueMessage
	settled *settlements
}

func (f *fakeConsumer) RunConsumer(ctx context.Context, handler func(*amqp.RecurringDueMessage, amqp.Settle)) error {
	for _, m := range f.msgs {
		handler(m, f.settled.settle(m.TransactionID))
	}
	<-ctx.Done()
	return ctx.Err()
}

type settlements struct {
	mu      sync.Mutex
	results map[string]error
	done    chan struct{}
	want    int
}

func (s *settlements) settle(id string) amqp.Settle {
	return func(err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.results[id] = err
		if len(s.results) == s.want {
			close(s.done)
		}
	}
}

func TestRecurringWorkerSettlesDeliveries(t *testing.T) {
	settled := &settlements{results: map[string]error{}, done: make(chan struct{}), want: 3}
	storeErr := errors.New("database is locked")

	queue := services.NewThrottledQueue(services.ThrottledQueueConfig{
		PerUserLimit: 10, Period: time.Minute, MaxConcurrent: 2,
	}, func(_ context.Context, ev core.RecurringDueEvent) error {
		switch ev.TransactionID {
		case "gone":
			return core.ErrTransactionNotFound
		case "flaky":
			return storeErr
		}
		return nil
	})

	consumer := &fakeConsumer{msgs: []*amqp.RecurringDueMessage{
		amqp.NewRecurringDueMessage(core.RecurringDueEvent{TransactionID: "ok", UserID: "u1"}),
		amqp.NewRecurringDueMessage(core.RecurringDueEvent{TransactionID: "gone", UserID: "u1"}),
		amqp.NewRecurringDueMessage(core.RecurringDueEvent{TransactionID: "flaky", UserID: "u2"}),
	}, settled: settled}
	w := NewRecurringWorker(consumer, queue, 5)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	select {
	case <-settled.done:
	case <-time.After(5 * time.Second):
		t.Fatal("deliveries were not settled")
	}
	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	settled.mu.Lock()
	defer settled.mu.Unlock()
	if err := settled.results["ok"]; err != nil {
		t.Errorf("ok settled with %v, want ack", err)
	}
	if err := settled.results["gone"]; err != nil {
		t.Errorf("gone settled with %v, want ack", err)
	}
	if err := settled.results["flaky"]; !errors.Is(err, storeErr) {
		t.Errorf("flaky settled with %v, want requeue", err)
	}
}

func TestRecurringWorkerCapsUserInFlight(t *testing.T) {
	settled := &settlements{results: map[string]error{}, done: make(chan struct{}), want: 5}
	unblock := make(chan struct{})

	queue := services.NewThrottledQueue(services.ThrottledQueueConfig{
		PerUserLimit: 10, Period: time.Minute, MaxConcurrent: 2,
	}, func(ctx context.Context, ev core.RecurringDueEvent) error {
		if ev.UserID == "u2" {
			close(unblock)
			return nil
		}
		select {
		case <-unblock:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	var msgs []*amqp.RecurringDueMessage
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		msgs = append(msgs, amqp.NewRecurringDueMessage(core.RecurringDueEvent{TransactionID: id, UserID: "u1"}))
	}
	msgs = append(msgs, amqp.NewRecurringDueMessage(core.RecurringDueEvent{TransactionID: "b1", UserID: "u2"}))

	w := NewRecurringWorker(&fakeConsumer{msgs: msgs, settled: settled}, queue, 2)
	w.deferDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	select {
	case <-settled.done:
	case <-time.After(5 * time.Second):
		t.Fatal("deliveries were not settled; u2 starved behind u1")
	}
	cancel()
	if err := <-runErr; err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if err := w.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	settled.mu.Lock()
	defer settled.mu.Unlock()
	for _, id := range []string{"a1", "a2", "b1"} {
		if err := settled.results[id]; err != nil {
			t.Errorf("%s settled with %v, want ack", id, err)
		}
	}
	for _, id := range []string{"a3", "a4"} {
		if err := settled.results[id]; !errors.Is(err, errUserBusy) {
			t.Errorf("%s settled with %v, want requeue as busy", id, err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.inFlight) != 0 {
		t.Errorf("inFlight = %v, want empty after all settled", w.inFlight)
	}
}
