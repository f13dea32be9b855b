/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/lrucache"
)

// DefaultKeyedLimiterMaxKeys is a default value of the maximum keys number for KeyedLimiter.
const DefaultKeyedLimiterMaxKeys = 10000

// KeyedLimiter maintains an independent token bucket per key
// (tenant ID, remote address, API token, ...). Buckets are stored in an LRU
// cache, so the number of tracked keys stays bounded; a key evicted under
// pressure starts over with a full bucket on its next request.
type KeyedLimiter struct {
	getBucket func(key string) *TokenBucket
}

var _ Limiter = (*KeyedLimiter)(nil)

// KeyedLimiterOpts represents an options for KeyedLimiter.
type KeyedLimiterOpts struct {
	// MaxKeys bounds the number of keys tracked in memory.
	// DefaultKeyedLimiterMaxKeys is used if it's not specified.
	MaxKeys int

	// Clock is a time source for the underlying buckets. time.Now is used if it's not specified.
	Clock Clock
}

// NewKeyedLimiter creates a new keyed limiter; each key gets its own token
// bucket with the given capacity and refill rate in tokens per second.
func NewKeyedLimiter(capacity int, refillRate float64) (*KeyedLimiter, error) {
	return NewKeyedLimiterWithOpts(capacity, refillRate, KeyedLimiterOpts{})
}

// NewKeyedLimiterWithOpts creates a new keyed limiter with the provided options.
func NewKeyedLimiterWithOpts(capacity int, refillRate float64, opts KeyedLimiterOpts) (*KeyedLimiter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("capacity should be >= 1, got %d", capacity)
	}
	if refillRate <= 0 {
		return nil, fmt.Errorf("refill rate should be positive, got %g", refillRate)
	}
	maxKeys := opts.MaxKeys
	if maxKeys == 0 {
		maxKeys = DefaultKeyedLimiterMaxKeys
	}
	store, err := lrucache.New[string, *TokenBucket](maxKeys, nil)
	if err != nil {
		return nil, fmt.Errorf("new LRU in-memory store for keys: %w", err)
	}
	return &KeyedLimiter{
		getBucket: func(key string) *TokenBucket {
			bucket, _ := store.GetOrAdd(key, func() *TokenBucket {
				bucket, _ := NewTokenBucketWithOpts(capacity, refillRate, TokenBucketOpts{Clock: opts.Clock})
				return bucket
			})
			return bucket
		},
	}, nil
}

// TryAcquire attempts to consume a token from the key's bucket.
func (kl *KeyedLimiter) TryAcquire(key string) bool {
	return kl.getBucket(key).TryAcquire()
}

// Allow checks if the request should be allowed based on the key's rate limit.
// Implements Limiter interface.
func (kl *KeyedLimiter) Allow(_ context.Context, key string) (allow bool, retryAfter time.Duration, err error) {
	bucket := kl.getBucket(key)
	if bucket.TryAcquire() {
		return true, 0, nil
	}
	return false, bucket.TimeUntilAvailable(), nil
}
