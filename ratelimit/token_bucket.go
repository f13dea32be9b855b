/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// TokenBucket implements the token bucket rate limiting algorithm.
// The bucket starts full and refills continuously at refillRate tokens per second,
// allowing bursts up to capacity while maintaining the average rate over time.
type TokenBucket struct {
	capacity   int
	refillRate float64
	clock      Clock

	mu         sync.Mutex
	tokens     int
	lastRefill time.Time
}

var _ Limiter = (*TokenBucket)(nil)

// TokenBucketOpts represents an options for TokenBucket.
type TokenBucketOpts struct {
	// Clock is a time source for the bucket. time.Now is used if it's not specified.
	Clock Clock
}

// NewTokenBucket creates a new token bucket with the given capacity (burst size)
// and refill rate in tokens per second.
func NewTokenBucket(capacity int, refillRate float64) (*TokenBucket, error) {
	return NewTokenBucketWithOpts(capacity, refillRate, TokenBucketOpts{})
}

// NewTokenBucketWithOpts creates a new token bucket with the given capacity,
// refill rate in tokens per second, and options.
func NewTokenBucketWithOpts(capacity int, refillRate float64, opts TokenBucketOpts) (*TokenBucket, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity should be >= 1, got %d", capacity)
	}
	if refillRate <= 0 {
		return nil, fmt.Errorf("refill rate should be positive, got %g", refillRate)
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillRate,
		clock:      clock,
		tokens:     capacity,
		lastRefill: clock.Now(),
	}, nil
}

// TryAcquire attempts to consume a single token.
// It returns true if the token was consumed and false if the bucket is empty.
// The call never blocks.
func (b *TokenBucket) TryAcquire() bool {
	return b.TryAcquireN(1)
}

// TryAcquireN attempts to consume n tokens at once.
// Tokens accumulated since the last call are credited first;
// the refill happens even if the acquisition is then denied.
func (b *TokenBucket) TryAcquireN(n int) bool {
	if n < 1 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}

// refillLocked credits whole tokens accumulated since lastRefill.
// lastRefill is advanced only when at least one whole token is added,
// so sub-token elapsed time keeps accumulating instead of being discarded
// (otherwise buckets with fractional rates would refill slower than nominal).
func (b *TokenBucket) refillLocked() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	tokensToAdd := int(elapsed * b.refillRate)
	if tokensToAdd <= 0 {
		return
	}
	b.tokens += tokensToAdd
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// TimeUntilAvailable returns an estimate of how long the caller should wait
// before the next single token appears. It returns 0 if a token is already
// available. The estimate does not account for acquisitions needing more than
// one token.
func (b *TokenBucket) TimeUntilAvailable() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()

	if b.tokens > 0 {
		return 0
	}
	return time.Duration(math.Ceil(1000/b.refillRate)) * time.Millisecond
}

// Capacity returns the maximum number of tokens the bucket can hold.
func (b *TokenBucket) Capacity() int {
	return b.capacity
}

// RefillRate returns the refill rate in tokens per second.
func (b *TokenBucket) RefillRate() float64 {
	return b.refillRate
}

// Allow checks if the request should be allowed based on the rate limit.
// Implements Limiter interface. Key is ignored, the bucket keeps a single shared state.
func (b *TokenBucket) Allow(_ context.Context, _ string) (allow bool, retryAfter time.Duration, err error) {
	if b.TryAcquire() {
		return true, 0, nil
	}
	return false, b.TimeUntilAvailable(), nil
}
