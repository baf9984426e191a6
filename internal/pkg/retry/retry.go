package retry

import (
	"context"
	"math/rand"
	"time"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
)

// Policy is an explicit retry configuration. Retry behavior is carried as a
// value so callers configure it instead of scattering loop logic.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// Jitter widens each sleep by +/- this fraction. Zero disables it,
	// which keeps tests deterministic.
	Jitter float64
}

// DefaultPolicy matches the backoff the external clients use: 4 retries,
// 1s doubling up to 10s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		Multiplier:   2,
		MaxDelay:     10 * time.Second,
		Jitter:       0.2,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or the
// attempt budget runs out. The final transient error is wrapped as terminal.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	delay := p.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		sleepFor := delay
		if p.MaxDelay > 0 && sleepFor > p.MaxDelay {
			sleepFor = p.MaxDelay
		}
		sleepFor = jitter(sleepFor, p.Jitter)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}

		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
		}
	}

	return apperrors.Terminal(lastErr)
}

func jitter(base time.Duration, frac float64) time.Duration {
	if base <= 0 || frac <= 0 {
		return base
	}
	delta := base.Seconds() * frac
	low := base.Seconds() - delta
	if low < 0 {
		low = 0
	}
	high := base.Seconds() + delta
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}
