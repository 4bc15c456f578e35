//go:build !integration

package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
	"github.com/jabinweb/sciocare-sub001/internal/resilience"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestRetry_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("should retry transient errors and return the eventual result", func(t *testing.T) {
		// --- Arrange ---
		var delays []time.Duration
		opts := resilience.RetryOptions{
			MaxRetries: 3,
			BaseDelay:  100 * time.Millisecond,
			MaxDelay:   time.Second,
			Sleep: func(ctx context.Context, d time.Duration) error {
				delays = append(delays, d)
				return nil
			},
			Rand: func() float64 { return 0 }, // no jitter, deterministic delays
		}
		attempts := 0
		op := func(ctx context.Context) (string, error) {
			attempts++
			if attempts <= 2 {
				return "", errors.New("connection reset")
			}
			return "verified", nil
		}

		// --- Act ---
		out, err := resilience.Do(ctx, newTestLogger(), "verify", opts, op)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out != "verified" {
			t.Errorf("expected operation result to pass through, got %q", out)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts (2 retries), got %d", attempts)
		}
		if len(delays) != 2 {
			t.Fatalf("expected 2 backoff waits, got %d", len(delays))
		}
		for i := 1; i < len(delays); i++ {
			if delays[i] < delays[i-1] {
				t.Errorf("delays must be non-decreasing: %v", delays)
			}
		}
		for _, d := range delays {
			if d > opts.MaxDelay {
				t.Errorf("delay %v exceeds max %v", d, opts.MaxDelay)
			}
		}
	})

	t.Run("should not retry non-retriable errors", func(t *testing.T) {
		attempts := 0
		op := func(ctx context.Context) (string, error) {
			attempts++
			return "", domain.ErrInvalidSignature
		}

		_, err := resilience.Do(ctx, newTestLogger(), "verify", resilience.RetryOptions{
			Sleep: func(context.Context, time.Duration) error { return nil },
		}, op)

		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected exactly 1 attempt, got %d", attempts)
		}
	})

	t.Run("should not retry explicitly tagged errors", func(t *testing.T) {
		attempts := 0
		tagged := domain.NonRetriable(errors.New("amount mismatch"))
		op := func(ctx context.Context) (int, error) {
			attempts++
			return 0, tagged
		}

		_, err := resilience.Do(ctx, newTestLogger(), "verify", resilience.RetryOptions{
			Sleep: func(context.Context, time.Duration) error { return nil },
		}, op)

		if err == nil || err.Error() != "amount mismatch" {
			t.Fatalf("expected tagged error back, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected exactly 1 attempt, got %d", attempts)
		}
	})

	t.Run("should return the last error after exhausting retries", func(t *testing.T) {
		attempts := 0
		lastErr := errors.New("gateway timeout")
		op := func(ctx context.Context) (string, error) {
			attempts++
			return "", lastErr
		}

		_, err := resilience.Do(ctx, newTestLogger(), "verify", resilience.RetryOptions{
			MaxRetries: 2,
			Sleep:      func(context.Context, time.Duration) error { return nil },
		}, op)

		if !errors.Is(err, lastErr) {
			t.Fatalf("expected last error, got %v", err)
		}
		if attempts != 3 {
			t.Errorf("expected 3 attempts for MaxRetries=2, got %d", attempts)
		}
	})

	t.Run("should stop when the context is cancelled between attempts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		attempts := 0
		op := func(ctx context.Context) (string, error) {
			attempts++
			cancel()
			return "", errors.New("transient")
		}

		_, err := resilience.Do(cctx, newTestLogger(), "verify", resilience.RetryOptions{MaxRetries: 5}, op)

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if attempts != 1 {
			t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
		}
	})
}

func TestRetryOptions_Delay(t *testing.T) {
	opts := resilience.RetryOptions{
		BaseDelay: time.Second,
		Factor:    2,
		MaxDelay:  5 * time.Second,
		Rand:      func() float64 { return 1 }, // maximum jitter
	}
	opts = optsWithDefaults(opts)

	// attempt 0 -> 1s, attempt 1 -> 2s, attempt 2 -> 4s, attempt 3 -> capped 5s
	cases := []struct {
		attempt int
		base    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, c := range cases {
		got := opts.Delay(c.attempt)
		min, max := c.base, c.base+time.Duration(0.1*float64(c.base))
		if got < min || got > max {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", c.attempt, got, min, max)
		}
	}
}

// optsWithDefaults mirrors the option normalization Do performs so Delay can
// be exercised directly.
func optsWithDefaults(o resilience.RetryOptions) resilience.RetryOptions {
	if o.Factor <= 0 {
		o.Factor = 2
	}
	if o.Rand == nil {
		o.Rand = func() float64 { return 0 }
	}
	return o
}
