/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package retry provides a deterministic exponential backoff delay sequence
// for wait-and-retry loops around rate-limited calls. The package only
// computes delays; executing the retries (and respecting timeouts or
// cancellation while waiting) is the caller's responsibility.
package retry

import (
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Multiplier of the delay growth between attempts.
const backoffMultiplier = 2.0

// MaxRetryAttempts is the number of attempts after which ShouldRetry reports false.
const MaxRetryAttempts = 10

// ExponentialBackoff generates the delay sequence
// min(initialDelay * 2^attempt, maxDelay) with no jitter; callers needing
// jitter must add it externally.
//
// An instance serves one logical retry sequence and is not safe for
// concurrent use; call Reset to reuse it for the next independent operation.
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	attempt      int
}

// Policy defines backoff strategy in terms of the cenkalti/backoff ecosystem.
type Policy interface {
	NewBackOff() backoff.BackOff
}

var _ Policy = (*ExponentialBackoff)(nil)

// NewExponentialBackoff creates a new exponential backoff
// with the given initial and maximum delays.
func NewExponentialBackoff(initialDelay, maxDelay time.Duration) (*ExponentialBackoff, error) {
	if initialDelay < 0 {
		return nil, fmt.Errorf("initial delay should be >= 0, got %s", initialDelay)
	}
	if maxDelay < initialDelay {
		return nil, fmt.Errorf("max delay should be >= initial delay, got %s < %s", maxDelay, initialDelay)
	}
	return &ExponentialBackoff{initialDelay: initialDelay, maxDelay: maxDelay}, nil
}

// Delay returns the delay for the current attempt. It is a pure function of
// the attempt counter; call NextAttempt to advance it.
func (b *ExponentialBackoff) Delay() time.Duration {
	delay := float64(b.initialDelay) * math.Pow(backoffMultiplier, float64(b.attempt))
	if delay > float64(b.maxDelay) {
		return b.maxDelay
	}
	return time.Duration(delay)
}

// NextAttempt increments the attempt counter.
// The counter itself is unbounded; the delay is clamped by the maximum delay
// and the retry cutoff is reported by ShouldRetry.
func (b *ExponentialBackoff) NextAttempt() {
	b.attempt++
}

// Reset sets the attempt counter back to zero for the next independent operation.
func (b *ExponentialBackoff) Reset() {
	b.attempt = 0
}

// ShouldRetry reports whether another attempt may be made.
// It is true while fewer than MaxRetryAttempts attempts were recorded.
func (b *ExponentialBackoff) ShouldRetry() bool {
	return b.attempt < MaxRetryAttempts
}

// NewBackOff returns the same delay sequence as a backoff.BackOff so it can be
// consumed through the cenkalti/backoff ecosystem: exponential growth with
// multiplier 2, no randomization, delays clamped by the maximum delay, and
// backoff.Stop after MaxRetryAttempts delays. Implements Policy interface.
func (b *ExponentialBackoff) NewBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.initialDelay
	eb.MaxInterval = b.maxDelay
	eb.Multiplier = backoffMultiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	var bf backoff.BackOff = backoff.WithMaxRetries(eb, MaxRetryAttempts)
	bf.Reset()
	return bf
}
