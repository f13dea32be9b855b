/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/acronis/go-appkit/log/logtest"
)

// AdaptiveRateLimiterTestSuite contains tests for AdaptiveRateLimiter
type AdaptiveRateLimiterTestSuite struct {
	suite.Suite
}

func TestAdaptiveRateLimiter(t *testing.T) {
	suite.Run(t, new(AdaptiveRateLimiterTestSuite))
}

func (ts *AdaptiveRateLimiterTestSuite) TestConstructorValidation() {
	tests := []struct {
		name                          string
		initialRate, minRate, maxRate float64
		wantErrMsg                    string
	}{
		{name: "zero min rate", initialRate: 10, minRate: 0, maxRate: 100, wantErrMsg: "min rate should be positive, got 0"},
		{name: "max below min", initialRate: 10, minRate: 10, maxRate: 5, wantErrMsg: "max rate should be >= min rate, got 5 < 10"},
		{name: "initial below min", initialRate: 1, minRate: 5, maxRate: 100, wantErrMsg: "initial rate should be within [5, 100], got 1"},
		{name: "initial above max", initialRate: 200, minRate: 5, maxRate: 100, wantErrMsg: "initial rate should be within [5, 100], got 200"},
	}
	for _, tt := range tests {
		ts.Run(tt.name, func() {
			_, err := NewAdaptiveRateLimiter(tt.initialRate, tt.minRate, tt.maxRate)
			ts.EqualError(err, tt.wantErrMsg)
		})
	}
}

func (ts *AdaptiveRateLimiterTestSuite) TestGeometricAdjustment() {
	limiter, err := NewAdaptiveRateLimiter(50, 5, 100)
	ts.NoError(err)
	ts.InDelta(50, limiter.CurrentRate(), 0.0001)

	limiter.RecordSuccess()
	limiter.RecordSuccess()
	limiter.RecordSuccess()
	ts.InDelta(50*1.1*1.1*1.1, limiter.CurrentRate(), 0.0001) // ≈66.55

	limiter.RecordRateLimitError()
	ts.InDelta(50*1.1*1.1*1.1/2, limiter.CurrentRate(), 0.0001)
}

func (ts *AdaptiveRateLimiterTestSuite) TestRateIsClamped() {
	limiter, err := NewAdaptiveRateLimiter(50, 5, 100)
	ts.NoError(err)

	for i := 0; i < 100; i++ {
		limiter.RecordSuccess()
	}
	ts.InDelta(100, limiter.CurrentRate(), 0.0001)

	for i := 0; i < 100; i++ {
		limiter.RecordRateLimitError()
	}
	ts.InDelta(5, limiter.CurrentRate(), 0.0001)
}

func (ts *AdaptiveRateLimiterTestSuite) TestRateStaysInBoundsUnderRandomFeedback() {
	limiter, err := NewAdaptiveRateLimiter(50, 5, 100)
	ts.NoError(err)

	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		if rnd.Intn(2) == 0 {
			limiter.RecordSuccess()
		} else {
			limiter.RecordRateLimitError()
		}
		rate := limiter.CurrentRate()
		ts.GreaterOrEqual(rate, 5.0)
		ts.LessOrEqual(rate, 100.0)
	}
}

func (ts *AdaptiveRateLimiterTestSuite) TestTokenBucketSnapshot() {
	limiter, err := NewAdaptiveRateLimiter(50, 5, 100)
	ts.NoError(err)

	bucket := limiter.TokenBucket()
	ts.Equal(50, bucket.Capacity())
	ts.InDelta(50, bucket.RefillRate(), 0.0001)

	// Capacity is the rate rounded down.
	limiter.RecordSuccess()
	bucket = limiter.TokenBucket()
	ts.Equal(55, bucket.Capacity()) // 50 * 1.1 = 55.000000000000007
	ts.InDelta(55, bucket.RefillRate(), 0.0001)
}

func (ts *AdaptiveRateLimiterTestSuite) TestTokenBucketSnapshotCapacityIsAtLeastOne() {
	limiter, err := NewAdaptiveRateLimiter(0.5, 0.5, 100)
	ts.NoError(err)

	bucket := limiter.TokenBucket()
	ts.Equal(1, bucket.Capacity())
	ts.InDelta(0.5, bucket.RefillRate(), 0.0001)
}

func (ts *AdaptiveRateLimiterTestSuite) TestTokenBucketSnapshotIsDisposable() {
	limiter, err := NewAdaptiveRateLimiter(10, 5, 100)
	ts.NoError(err)

	bucket := limiter.TokenBucket()
	for bucket.TryAcquire() {
	}

	// Draining the minted bucket must not feed back into the limiter,
	// and later adjustments must not change the minted bucket.
	ts.InDelta(10, limiter.CurrentRate(), 0.0001)
	limiter.RecordRateLimitError()
	ts.InDelta(10, bucket.RefillRate(), 0.0001)
}

func (ts *AdaptiveRateLimiterTestSuite) TestRateDecreaseIsLogged() {
	logRecorder := logtest.NewRecorder()
	limiter, err := NewAdaptiveRateLimiterWithOpts(50, 5, 100, AdaptiveRateLimiterOpts{Logger: logRecorder})
	ts.NoError(err)

	limiter.RecordRateLimitError()

	entry, found := logRecorder.FindEntry("target request rate decreased after rate limit error")
	ts.True(found)
	field, found := entry.FindField("new_rate")
	ts.True(found)
	ts.InDelta(25, math.Float64frombits(uint64(field.Int)), 0.0001) // logf keeps float64 bits in Int
}
