package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		Multiplier:   2,
		MaxDelay:     5 * time.Millisecond,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.ErrTransient
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(4), func(ctx context.Context) error {
		calls++
		return apperrors.ErrNotFound
	})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err: want=ErrNotFound got=%v", err)
	}
	if calls != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

func TestDoExhaustedBudgetIsTerminal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), func(ctx context.Context) error {
		calls++
		return apperrors.ErrRateLimited
	})
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	if !errors.Is(err, apperrors.ErrTerminal) {
		t.Fatalf("err: want terminal wrap got=%v", err)
	}
	if !errors.Is(err, apperrors.ErrRateLimited) {
		t.Fatalf("err should preserve cause, got=%v", err)
	}
	if apperrors.IsRetryable(err) {
		t.Fatalf("terminal error must not be retryable")
	}
}

func TestDoRespectsContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, fastPolicy(3), func(ctx context.Context) error {
		return apperrors.ErrTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err: want=context.Canceled got=%v", err)
	}
}
