package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"sitemonitor/internal/pkg/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

var errSend = errors.New("send failed")

func fail(context.Context) error    { return errSend }
func succeed(context.Context) error { return nil }

// Verifies the breaker opens after the threshold and rejects calls without running them.
func TestOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("webhook", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := cb.Execute(ctx, fail); !errors.Is(err, errSend) {
			t.Fatalf("expected send error, got %v", err)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("function must not run while the circuit is open")
	}
}

// Verifies a successful trial call after the reset timeout closes the circuit.
func TestHalfOpenRecovers(t *testing.T) {
	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("chat", 1, time.Minute)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("expected trial call to succeed, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}

// Verifies a failed trial call reopens the circuit immediately.
func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("email", 3, time.Minute)
	cb.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, fail)
	}
	now = now.Add(2 * time.Minute)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateOpen {
		t.Errorf("expected open state after failed trial, got %s", cb.State())
	}
}

// Verifies successes reset the failure count while closed.
func TestSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("webhook", 2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	if cb.State() != StateClosed {
		t.Errorf("expected closed state, got %s", cb.State())
	}
}
