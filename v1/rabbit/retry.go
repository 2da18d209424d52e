package rabbit

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy describes how the supervisor retries a failed connection.
//
// A cycle makes at most MaxImmediateAttempts attempts. After attempt k fails
// the supervisor waits Delay(k-1) before the next one. When the cycle is
// exhausted it waits ExhaustedWaitDelay and starts a new cycle.
type RetryPolicy struct {
	BaseDelay            time.Duration
	MaxImmediateAttempts int
	ExhaustedWaitDelay   time.Duration
}

// DefaultRetryPolicy returns 5 attempts starting at 1s, then a 30s cool-down.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:            time.Second,
		MaxImmediateAttempts: 5,
		ExhaustedWaitDelay:   30 * time.Second,
	}
}

// Validate rejects non-positive values.
func (p RetryPolicy) Validate() error {
	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w: retry base delay must be positive", ErrConfigurationError)
	}
	if p.MaxImmediateAttempts <= 0 {
		return fmt.Errorf("%w: retry attempts must be positive", ErrConfigurationError)
	}
	if p.ExhaustedWaitDelay <= 0 {
		return fmt.Errorf("%w: retry cool-down must be positive", ErrConfigurationError)
	}
	return nil
}

// Delay returns BaseDelay * 2^n.
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return p.BaseDelay * time.Duration(uint64(1)<<uint(n))
}

// backOff returns a fresh schedule for one retry cycle. It yields
// Delay(0), Delay(1), ... and stops after MaxImmediateAttempts-1 waits.
func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = p.Delay(p.MaxImmediateAttempts)
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithMaxRetries(b, uint64(p.MaxImmediateAttempts-1))
}
