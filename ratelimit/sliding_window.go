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

// SlidingWindow implements sliding window rate limiting algorithm.
// It keeps a log of admission timestamps and admits a request only while
// fewer than maxRequests timestamps fall within the window. Unlike TokenBucket
// it enforces a hard cap per interval with no refill smoothing.
type SlidingWindow struct {
	maxRequests    int
	windowDuration time.Duration
	clock          Clock

	mu         sync.Mutex
	requestLog []time.Time // ordered, oldest first
}

var _ Limiter = (*SlidingWindow)(nil)

// SlidingWindowOpts represents an options for SlidingWindow.
type SlidingWindowOpts struct {
	// Clock is a time source for the window. time.Now is used if it's not specified.
	Clock Clock
}

// NewSlidingWindow creates a new sliding window limiter
// admitting at most maxRequests requests per windowDuration.
func NewSlidingWindow(maxRequests int, windowDuration time.Duration) (*SlidingWindow, error) {
	return NewSlidingWindowWithOpts(maxRequests, windowDuration, SlidingWindowOpts{})
}

// NewSlidingWindowWithOpts creates a new sliding window limiter with the provided options.
func NewSlidingWindowWithOpts(maxRequests int, windowDuration time.Duration, opts SlidingWindowOpts) (*SlidingWindow, error) {
	if maxRequests < 1 {
		return nil, fmt.Errorf("max requests should be >= 1, got %d", maxRequests)
	}
	if windowDuration <= 0 {
		return nil, fmt.Errorf("window duration should be positive, got %s", windowDuration)
	}
	clock := opts.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &SlidingWindow{
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
		clock:          clock,
	}, nil
}

// TryAcquire attempts to admit a request.
// Stale log entries are pruned first; the pruning is kept even when the
// request is then denied. The call never blocks.
func (w *SlidingWindow) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.pruneLocked(now)

	if len(w.requestLog) < w.maxRequests {
		w.requestLog = append(w.requestLog, now)
		return true
	}
	return false
}

// CurrentRequestCount returns the number of requests admitted within the
// current window. It is not a pure read: stale entries are pruned before
// counting.
func (w *SlidingWindow) CurrentRequestCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(w.clock.Now())
	return len(w.requestLog)
}

// pruneLocked trims the log prefix that fell out of the window.
// The log is ordered (monotonic clock), so a prefix trim is sufficient.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	i := 0
	for i < len(w.requestLog) && now.Sub(w.requestLog[i]) > w.windowDuration {
		i++
	}
	if i > 0 {
		w.requestLog = append(w.requestLog[:0], w.requestLog[i:]...)
	}
}

// Allow checks if the request should be allowed based on the rate limit.
// Implements Limiter interface. Key is ignored, the window keeps a single shared state.
// On denial, retryAfter estimates when the oldest logged request leaves the window.
func (w *SlidingWindow) Allow(_ context.Context, _ string) (allow bool, retryAfter time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.pruneLocked(now)

	if len(w.requestLog) < w.maxRequests {
		w.requestLog = append(w.requestLog, now)
		return true, 0, nil
	}
	return false, w.requestLog[0].Add(w.windowDuration).Sub(now), nil
}
