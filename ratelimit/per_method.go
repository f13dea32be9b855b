/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PerMethodLimiter composes independent token buckets, one per named RPC method,
// so that expensive methods (e.g. eth_sendRawTransaction) can be limited tighter
// than cheap ones (e.g. eth_call).
//
// The limiter is fail-open: methods that were never registered are admitted
// unconditionally, so an unknown method can never be silently blocked.
type PerMethodLimiter struct {
	clock   Clock
	metrics MetricsCollector

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

var _ Limiter = (*PerMethodLimiter)(nil)

// PerMethodLimiterOpts represents an options for PerMethodLimiter.
type PerMethodLimiterOpts struct {
	// Clock is a time source for the underlying buckets. time.Now is used if it's not specified.
	Clock Clock

	// MetricsCollector is a collector of the admission metrics.
	// Can be nil, in this case metrics are disabled.
	MetricsCollector MetricsCollector
}

// NewPerMethodLimiter creates a new per-method limiter with no methods registered.
func NewPerMethodLimiter() *PerMethodLimiter {
	return NewPerMethodLimiterWithOpts(PerMethodLimiterOpts{})
}

// NewPerMethodLimiterWithOpts creates a new per-method limiter with the provided options.
func NewPerMethodLimiterWithOpts(opts PerMethodLimiterOpts) *PerMethodLimiter {
	metrics := opts.MetricsCollector
	if metrics == nil {
		metrics = disabledMetrics{}
	}
	return &PerMethodLimiter{
		clock:   opts.Clock,
		metrics: metrics,
		buckets: make(map[string]*TokenBucket),
	}
}

// RegisterMethod creates a token bucket for the method with the given capacity
// and refill rate in tokens per second. Registering an already registered
// method replaces its bucket, resetting the accumulated state (last writer wins).
func (pl *PerMethodLimiter) RegisterMethod(method string, capacity int, refillRate float64) error {
	bucket, err := NewTokenBucketWithOpts(capacity, refillRate, TokenBucketOpts{Clock: pl.clock})
	if err != nil {
		return fmt.Errorf("new token bucket for method %q: %w", method, err)
	}

	pl.mu.Lock()
	pl.buckets[method] = bucket
	pl.mu.Unlock()
	return nil
}

// TryAcquire attempts to admit a call of the given method.
// Unregistered methods are always admitted.
func (pl *PerMethodLimiter) TryAcquire(method string) bool {
	bucket := pl.bucket(method)
	if bucket == nil {
		pl.metrics.IncAllowed(method)
		return true
	}
	if bucket.TryAcquire() {
		pl.metrics.IncAllowed(method)
		return true
	}
	pl.metrics.IncDenied(method)
	return false
}

// bucket looks up the method's bucket under the same lock that guards
// registration, so a bucket is either fully visible or not visible at all.
func (pl *PerMethodLimiter) bucket(method string) *TokenBucket {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.buckets[method]
}

// Allow checks if a call of the method passed as key should be allowed.
// Implements Limiter interface.
func (pl *PerMethodLimiter) Allow(_ context.Context, method string) (allow bool, retryAfter time.Duration, err error) {
	bucket := pl.bucket(method)
	if bucket == nil {
		pl.metrics.IncAllowed(method)
		return true, 0, nil
	}
	if bucket.TryAcquire() {
		pl.metrics.IncAllowed(method)
		return true, 0, nil
	}
	pl.metrics.IncDenied(method)
	return false, bucket.TimeUntilAvailable(), nil
}
