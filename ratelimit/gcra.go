/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"
)

// GCRALimiter implements GCRA (Generic Cell Rate Algorithm), a leaky bucket variant.
// Unlike TokenBucket it spreads the allowed requests evenly over the rate
// interval instead of admitting them in bursts (an extra burst allowance can
// be configured). Good explanation of the algorithm: https://brandur.org/rate-limiting#gcra.
//
// The limiter keeps an independent state per key, which makes it suitable for
// multi-tenant quotas on top of the same endpoint.
type GCRALimiter struct {
	limiter *throttled.GCRARateLimiterCtx
	maxRate Rate
}

var _ Limiter = (*GCRALimiter)(nil)

// NewGCRALimiter creates a new GCRA rate limiter allowing maxRate requests per key
// plus maxBurst extra requests on top of it. maxKeys bounds the number of keys
// tracked in memory.
func NewGCRALimiter(maxRate Rate, maxBurst, maxKeys int) (*GCRALimiter, error) {
	if maxRate.Count < 1 || maxRate.Duration <= 0 {
		return nil, fmt.Errorf("invalid max rate %q", maxRate)
	}
	gcraStore, err := memstore.NewCtx(maxKeys)
	if err != nil {
		return nil, fmt.Errorf("new in-memory store: %w", err)
	}
	gcraLimiter, err := throttled.NewGCRARateLimiterCtx(gcraStore, throttled.RateQuota{
		MaxRate:  throttled.PerDuration(maxRate.Count, maxRate.Duration),
		MaxBurst: maxBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("new GCRA rate limiter: %w", err)
	}
	return &GCRALimiter{limiter: gcraLimiter, maxRate: maxRate}, nil
}

// MaxRate returns the configured per-key rate.
func (l *GCRALimiter) MaxRate() Rate {
	return l.maxRate
}

// Allow checks if the request should be allowed based on the rate limit.
// Implements Limiter interface.
func (l *GCRALimiter) Allow(ctx context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	limited, res, err := l.limiter.RateLimitCtx(ctx, key, 1)
	if err != nil {
		return false, 0, err
	}
	return !limited, res.RetryAfter, nil
}
