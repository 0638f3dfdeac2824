// Package retry runs an operation until it succeeds, fails with a
// non-retryable error, or exhausts its attempt budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/chaz8081/gostt-code/internal/apperr"
)

// Strategy selects how the delay between attempts grows.
type Strategy string

const (
	Fixed       Strategy = "fixed"
	Linear      Strategy = "linear"
	Exponential Strategy = "exponential"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Fixed, Linear, Exponential:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("retry: unknown strategy %q", s)
}

// Policy configures retries.
type Policy struct {
	MaxAttempts int
	Strategy    Strategy
	BaseDelay   time.Duration
	// Multiplier scales the growth of linear and exponential delays.
	// Zero means 1 for linear and 2 for exponential.
	Multiplier float64
	// MaxDelay caps a single delay. Zero means no cap.
	MaxDelay time.Duration
	// Jitter adds a random extra of up to Jitter*delay, in [0,1].
	Jitter float64
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Strategy:    Exponential,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
		Jitter:      0.2,
	}
}

// Delay returns the wait after the given 1-based attempt, before jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d float64
	base := float64(p.BaseDelay)
	switch p.Strategy {
	case Linear:
		m := p.Multiplier
		if m <= 0 {
			m = 1
		}
		d = base * m * float64(attempt)
	case Exponential:
		m := p.Multiplier
		if m <= 0 {
			m = 2
		}
		d = base * math.Pow(m, float64(attempt-1))
	default:
		d = base
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func (p Policy) withJitter(d time.Duration, rnd func() float64) time.Duration {
	if p.Jitter <= 0 || d <= 0 {
		return d
	}
	j := p.Jitter
	if j > 1 {
		j = 1
	}
	return d + time.Duration(float64(d)*j*rnd())
}

// Validate checks the policy for invalid values.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return errors.New("retry: delays must not be negative")
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		return fmt.Errorf("retry: jitter must be within [0,1], got %v", p.Jitter)
	}
	return nil
}

// Result records the outcome of Do.
type Result[T any] struct {
	Value    T
	Err      error // last error; nil on success
	Attempts int
	// Waited is the total time spent sleeping between attempts.
	Waited time.Duration
}

// Success reports whether an attempt succeeded.
func (r Result[T]) Success() bool { return r.Err == nil }

type options struct {
	classify func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
	sleep    func(ctx context.Context, d time.Duration) error
	rnd      func() float64
}

// Option customizes Do.
type Option func(*options)

// WithClassifier replaces the retryability check. The default is
// apperr.IsRetryable.
func WithClassifier(fn func(error) bool) Option {
	return func(o *options) { o.classify = fn }
}

// WithOnRetry registers a callback invoked before each wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithSleep replaces the cooperative wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// retryAfter is implemented by errors that carry a server hint.
type retryAfter interface {
	RetryAfterHint() time.Duration
}

// Do runs op until it succeeds or the policy says stop. op receives the
// 1-based attempt number. A non-retryable error ends the loop immediately.
// Context cancellation during a wait ends the loop with ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error), opts ...Option) Result[T] {
	o := options{
		classify: apperr.IsRetryable,
		sleep:    sleepCtx,
		rnd:      rand.Float64,
	}
	for _, opt := range opts {
		opt(&o)
	}
	max := p.MaxAttempts
	if max < 1 {
		max = 1
	}

	var res Result[T]
	for attempt := 1; ; attempt++ {
		res.Attempts = attempt
		v, err := op(ctx, attempt)
		if err == nil {
			res.Value = v
			res.Err = nil
			return res
		}
		res.Err = err

		if attempt >= max || !o.classify(err) {
			return res
		}

		delay := p.withJitter(p.Delay(attempt), o.rnd)
		var hint retryAfter
		if errors.As(err, &hint) && hint.RetryAfterHint() > delay {
			delay = hint.RetryAfterHint()
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		if o.onRetry != nil {
			o.onRetry(attempt, err, delay)
		}
		if err := o.sleep(ctx, delay); err != nil {
			res.Err = err
			return res
		}
		res.Waited += delay
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
