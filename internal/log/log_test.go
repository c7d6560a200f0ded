package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
)

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentScheduler, JSON: true, Output: &buf})

	logger.WithComponent(ComponentBudget).Info("checked", FieldUserID, "u1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec[FieldComponent] != ComponentBudget {
		t.Errorf("component = %v, want %s", rec[FieldComponent], ComponentBudget)
	}
	if rec[FieldUserID] != "u1" {
		t.Errorf("user_id = %v", rec[FieldUserID])
	}
}

func TestLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Output: &buf})

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	logger.Warn("shown")
	if buf.Len() == 0 {
		t.Fatal("warn not logged")
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, JSON: true, Output: &buf})

	ctx := WithContext(context.Background(), logger)
	ctx = Enrich(ctx, FieldRequestID, "req_1")
	FromContext(ctx).InfoContext(ctx, "hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec[FieldRequestID] != "req_1" {
		t.Errorf("request_id = %v", rec[FieldRequestID])
	}

	if FromContext(context.Background()) == nil {
		t.Fatal("FromContext without logger returned nil")
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentLedger).
		WithUser("").
		WithError(errors.New("boom")).
		WithTransaction("tx", "acc", "EXPENSE", "10.00")

	if _, ok := f[FieldUserID]; ok {
		t.Error("empty user id should be omitted")
	}
	if f[FieldError] != "boom" || f[FieldAccountID] != "acc" {
		t.Errorf("unexpected fields %v", f)
	}
	if got := len(f.ToSlice()); got != len(f)*2 {
		t.Errorf("ToSlice() len = %d, want %d", got, len(f)*2)
	}
}
