package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jabinweb/sciocare-sub001/internal/domain"
)

type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

// Breaker tracks consecutive failures of one downstream dependency. It is
// shared across concurrent requests within a process; construct one per
// gateway so their failure domains stay separate, and pass it by reference.
type Breaker struct {
	mu           sync.Mutex
	name         string
	threshold    int
	resetTimeout time.Duration

	failures    int
	lastFailure time.Time
	state       BreakerState
	probing     bool // a half-open trial is in flight

	now     func() time.Time                     // injectable clock
	onState func(name string, state BreakerState) // optional state hook (metrics)
}

type BreakerOption func(*Breaker)

func WithClock(now func() time.Time) BreakerOption {
	return func(b *Breaker) { b.now = now }
}

func WithStateHook(fn func(name string, state BreakerState)) BreakerOption {
	return func(b *Breaker) { b.onState = fn }
}

func NewBreaker(name string, threshold int, resetTimeout time.Duration, opts ...BreakerOption) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		state:        StateClosed,
		now:          time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. While OPEN it rejects with
// domain.ErrCircuitOpen until resetTimeout has elapsed since the last
// failure, then admits exactly one trial (HALF_OPEN).
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return nil
	case StateHalfOpen:
		if b.probing {
			return domain.ErrCircuitOpen
		}
		b.probing = true
		return nil
	default: // open
		if b.now().Sub(b.lastFailure) < b.resetTimeout {
			return domain.ErrCircuitOpen
		}
		b.setState(StateHalfOpen)
		b.probing = true
		return nil
	}
}

// Success records a successful call and closes the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.state != StateClosed {
		b.setState(StateClosed)
	}
}

// Failure records a failed call, opening the breaker once the consecutive
// failure count reaches the threshold (or immediately on a failed trial).
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.threshold {
		b.probing = false
		b.setState(StateOpen)
	}
}

func (b *Breaker) setState(s BreakerState) {
	b.state = s
	if b.onState != nil {
		b.onState(b.name, s)
	}
}

// Guard runs op behind the breaker. Rejections while OPEN return
// domain.ErrCircuitOpen without invoking op. A non-retriable error is a
// valid gateway answer, not a gateway outage, so it does not trip the breaker.
func Guard[T any](ctx context.Context, b *Breaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.Allow(); err != nil {
		return zero, err
	}
	out, err := op(ctx)
	if err != nil && !domain.IsNonRetriable(err) {
		b.Failure()
		return zero, err
	}
	b.Success()
	return out, err
}
