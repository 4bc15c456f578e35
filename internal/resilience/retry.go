package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
)

// RetryOptions tunes the backoff schedule. Zero values fall back to the
// defaults below.
type RetryOptions struct {
	MaxRetries int           // additional attempts after the first (default 3)
	BaseDelay  time.Duration // default 1s
	Factor     float64       // default 2
	MaxDelay   time.Duration // cap before jitter (default 10s)

	// OnRetry, when set, is called before each retry (metrics).
	OnRetry func(name string, attempt int)

	// Test hooks. Sleep replaces the inter-attempt wait; Rand replaces the
	// jitter source. Both default to the real thing.
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// LightRetry is the policy for best-effort side effects (notifications).
var LightRetry = RetryOptions{MaxRetries: 2, BaseDelay: 500 * time.Millisecond}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.Factor <= 0 {
		o.Factor = 2
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 10 * time.Second
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	return o
}

// Delay returns the wait before retry number attempt (0-based), capped at
// MaxDelay, plus up to 10% random jitter to avoid synchronized retry storms.
func (o RetryOptions) Delay(attempt int) time.Duration {
	base := float64(o.BaseDelay) * math.Pow(o.Factor, float64(attempt))
	d := time.Duration(base)
	if d > o.MaxDelay {
		d = o.MaxDelay
	}
	return d + time.Duration(o.Rand()*0.1*float64(d))
}

// Do runs op, retrying transient failures with exponential backoff. Errors
// classified permanent by domain.IsNonRetriable are returned immediately;
// context cancellation aborts between attempts. On exhaustion the last error
// is returned unchanged.
func Do[T any](ctx context.Context, log *zerolog.Logger, name string, opts RetryOptions, op func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			d := opts.Delay(attempt - 1)
			if opts.OnRetry != nil {
				opts.OnRetry(name, attempt)
			}
			log.Debug().Str("op", name).Int("attempt", attempt).Dur("backoff", d).Msg("retrying")
			if err := opts.Sleep(ctx, d); err != nil {
				return zero, err
			}
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if domain.IsNonRetriable(err) {
			return zero, err
		}
		lastErr = err
		log.Warn().Str("op", name).Int("attempt", attempt+1).Err(err).Msg("transient failure")
	}
	log.Error().Str("op", name).Int("attempts", opts.MaxRetries+1).Err(lastErr).Msg("retries exhausted")
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
