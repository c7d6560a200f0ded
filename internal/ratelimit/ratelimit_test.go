package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, limit int, period time.Duration) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{Limit: limit, Period: period, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestLimiter_FixedWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("user-1") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	ok, wait := rl.Reserve("user-1")
	if ok {
		t.Fatal("4th request allowed, want denied")
	}
	if wait != time.Minute {
		t.Errorf("Reserve() wait = %v, want 1m", wait)
	}
	if !rl.Allow("user-2") {
		t.Error("other key denied, want independent windows")
	}

	*clock = clock.Add(time.Minute)
	if !rl.Allow("user-1") {
		t.Error("request after window reset denied")
	}
	if got := rl.GetMetrics().Denied; got != 1 {
		t.Errorf("Denied = %d, want 1", got)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, time.Minute)
	rl.Allow("a")
	*clock = clock.Add(3 * time.Minute)
	rl.Allow("b")

	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 1 {
		t.Errorf("ActiveClients() = %d, want 1", got)
	}
}

func TestLimiter_WaitDefersUntilNextWindow(t *testing.T) {
	rl := NewLimiter(Config{Limit: 1, Period: 50 * time.Millisecond, CleanupInterval: time.Hour})
	defer rl.Stop()

	ctx := context.Background()
	start := time.Now()
	if err := rl.Wait(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := rl.Wait(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second Wait returned after %v, want it deferred to the next window", elapsed)
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	rl := NewLimiter(Config{Limit: 1, Period: time.Hour, CleanupInterval: time.Hour})
	defer rl.Stop()
	rl.Allow("k")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	h := rl.Middleware(func(r *http.Request) string { return r.Header.Get("X-User-ID") }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }))

	tests := []struct {
		name string
		user string
		want int
	}{
		{"first request", "u1", http.StatusCreated},
		{"over limit", "u1", http.StatusTooManyRequests},
		{"anonymous passes", "", http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.user != "" {
				req.Header.Set("X-User-ID", tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
