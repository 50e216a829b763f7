package connection

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retry policy names.
const (
	RetryUnbounded   = "unbounded"
	RetryBounded     = "bounded"
	RetryExponential = "exponential"
)

// RetryConfig configures how the manager reconnects after a close.
type RetryConfig struct {
	Policy      string        // unbounded, bounded or exponential
	Delay       time.Duration // Fixed delay, or the first delay for exponential
	MaxDelay    time.Duration // Cap for exponential
	MaxAttempts int           // Consecutive attempts before giving up; 0 = never (exponential only)
}

// NewRetryPolicy builds the backoff for cfg. A policy that returns
// backoff.Stop tells the manager to give up.
func NewRetryPolicy(cfg RetryConfig) (backoff.BackOff, error) {
	if cfg.Delay <= 0 {
		return nil, fmt.Errorf("retry delay must be positive, got %s", cfg.Delay)
	}

	switch cfg.Policy {
	case "", RetryUnbounded:
		return backoff.NewConstantBackOff(cfg.Delay), nil

	case RetryBounded:
		if cfg.MaxAttempts < 1 {
			return nil, fmt.Errorf("bounded retry needs max attempts >= 1, got %d", cfg.MaxAttempts)
		}
		return newBoundedBackOff(backoff.NewConstantBackOff(cfg.Delay), cfg.MaxAttempts), nil

	case RetryExponential:
		maxDelay := cfg.MaxDelay
		if maxDelay < cfg.Delay {
			maxDelay = cfg.Delay
		}
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = cfg.Delay
		exp.MaxInterval = maxDelay
		exp.Multiplier = 2
		exp.RandomizationFactor = 0
		exp.Reset()
		if cfg.MaxAttempts > 0 {
			return newBoundedBackOff(exp, cfg.MaxAttempts), nil
		}
		return exp, nil
	}

	return nil, fmt.Errorf("unknown retry policy %q", cfg.Policy)
}

// boundedBackOff stops after max consecutive delays. Reset, called on every
// successful open, restores the full budget.
type boundedBackOff struct {
	inner    backoff.BackOff
	max      int
	attempts int
}

func newBoundedBackOff(inner backoff.BackOff, max int) *boundedBackOff {
	return &boundedBackOff{inner: inner, max: max}
}

func (b *boundedBackOff) NextBackOff() time.Duration {
	if b.attempts >= b.max {
		return backoff.Stop
	}
	b.attempts++
	return b.inner.NextBackOff()
}

func (b *boundedBackOff) Reset() {
	b.attempts = 0
	b.inner.Reset()
}
