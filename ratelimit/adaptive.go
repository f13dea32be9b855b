/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"fmt"
	"math"
	"sync"

	"github.com/acronis/go-appkit/log"
)

// Adjustment factors of AdaptiveRateLimiter. The values are multiplicative
// only, so convergence is geometric in both directions: the rate is halved
// on every "too many requests" signal and grows 10% per success.
const (
	adaptiveIncreaseFactor = 1.1
	adaptiveDecreaseFactor = 0.5
)

// AdaptiveRateLimiter is a feedback controller that keeps a target request
// rate within [minRate, maxRate] and adjusts it from signals reported by the
// caller: RecordSuccess after a completed request, RecordRateLimitError after
// a remote "too many requests" response.
//
// The limiter does not admit requests itself; use TokenBucket to mint a
// bucket reflecting the current rate.
type AdaptiveRateLimiter struct {
	minRate float64
	maxRate float64
	clock   Clock
	logger  log.FieldLogger

	mu          sync.Mutex
	currentRate float64
}

// AdaptiveRateLimiterOpts represents an options for AdaptiveRateLimiter.
type AdaptiveRateLimiterOpts struct {
	// Clock is a time source for the minted buckets. time.Now is used if it's not specified.
	Clock Clock

	// Logger is used to log rate adjustments. Can be nil, in this case logging is disabled.
	Logger log.FieldLogger
}

// NewAdaptiveRateLimiter creates a new adaptive rate limiter with the given
// initial, minimum and maximum rates in requests per second.
func NewAdaptiveRateLimiter(initialRate, minRate, maxRate float64) (*AdaptiveRateLimiter, error) {
	return NewAdaptiveRateLimiterWithOpts(initialRate, minRate, maxRate, AdaptiveRateLimiterOpts{})
}

// NewAdaptiveRateLimiterWithOpts creates a new adaptive rate limiter with the provided options.
func NewAdaptiveRateLimiterWithOpts(
	initialRate, minRate, maxRate float64, opts AdaptiveRateLimiterOpts,
) (*AdaptiveRateLimiter, error) {
	if minRate <= 0 {
		return nil, fmt.Errorf("min rate should be positive, got %g", minRate)
	}
	if maxRate < minRate {
		return nil, fmt.Errorf("max rate should be >= min rate, got %g < %g", maxRate, minRate)
	}
	if initialRate < minRate || initialRate > maxRate {
		return nil, fmt.Errorf("initial rate should be within [%g, %g], got %g", minRate, maxRate, initialRate)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	return &AdaptiveRateLimiter{
		minRate:     minRate,
		maxRate:     maxRate,
		clock:       opts.Clock,
		logger:      logger,
		currentRate: initialRate,
	}, nil
}

// RecordSuccess reports a successfully completed request.
// The target rate grows by 10%, clamped to the maximum.
func (al *AdaptiveRateLimiter) RecordSuccess() {
	al.mu.Lock()
	al.currentRate = math.Min(al.currentRate*adaptiveIncreaseFactor, al.maxRate)
	newRate := al.currentRate
	al.mu.Unlock()

	al.logger.Debug("target request rate increased after success", log.Float64("new_rate", newRate))
}

// RecordRateLimitError reports a remote "too many requests" response.
// The target rate is halved, clamped to the minimum.
func (al *AdaptiveRateLimiter) RecordRateLimitError() {
	al.mu.Lock()
	al.currentRate = math.Max(al.currentRate*adaptiveDecreaseFactor, al.minRate)
	newRate := al.currentRate
	al.mu.Unlock()

	al.logger.Warn("target request rate decreased after rate limit error", log.Float64("new_rate", newRate))
}

// CurrentRate returns the current target rate in requests per second.
func (al *AdaptiveRateLimiter) CurrentRate() float64 {
	al.mu.Lock()
	defer al.mu.Unlock()
	return al.currentRate
}

// TokenBucket mints a new token bucket reflecting the current target rate:
// capacity is the rate rounded down (at least 1), refill rate is the rate itself.
// The returned bucket is a disposable snapshot, not a live view; consuming its
// tokens does not feed back into the limiter, and later rate adjustments do
// not change already minted buckets.
func (al *AdaptiveRateLimiter) TokenBucket() *TokenBucket {
	rate := al.CurrentRate()
	capacity := int(math.Floor(rate))
	if capacity < 1 {
		capacity = 1
	}
	bucket, _ := NewTokenBucketWithOpts(capacity, rate, TokenBucketOpts{Clock: al.clock}) // rate > 0 is guaranteed by construction
	return bucket
}
