package retry

import (
	"math"
	"time"
)

// Backoff computes the delay before the next automatic retry of a source.
type Backoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	MaxRetries int
}

// NewBackoff builds a policy, filling zero values with the defaults.
func NewBackoff(base, max time.Duration, multiplier float64, maxRetries int) *Backoff {
	b := &Backoff{
		BaseDelay:  base,
		MaxDelay:   max,
		Multiplier: multiplier,
		MaxRetries: maxRetries,
	}
	if b.BaseDelay <= 0 {
		b.BaseDelay = time.Minute
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 5 * time.Minute
	}
	if b.Multiplier <= 0 {
		b.Multiplier = 2.0
	}
	if b.MaxRetries <= 0 {
		b.MaxRetries = 3
	}
	return b
}

// DefaultBackoff returns the standard policy: 60s, 120s, 240s, capped at
// 300s, giving up after 3 retries.
func DefaultBackoff() *Backoff {
	return NewBackoff(0, 0, 0, 0)
}

// Delay calculates the wait after the k-th consecutive failure (0-indexed):
// BaseDelay * Multiplier^k, capped at MaxDelay. The delay is measured from
// the failing attempt, not from the first failure.
func (b *Backoff) Delay(retryCount int) time.Duration {
	delay := float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(retryCount))
	if delay > float64(b.MaxDelay) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another automatic retry is allowed after
// retryCount failures.
func (b *Backoff) ShouldRetry(retryCount int) bool {
	return retryCount < b.MaxRetries
}
