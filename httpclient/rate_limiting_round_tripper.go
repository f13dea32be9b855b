/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package httpclient provides a rate-limited HTTP transport for clients
// calling throughput-limited endpoints. It is the glue between the admission
// primitives of the ratelimit package and an actual http.RoundTripper: the
// transport waits for permission before sending and reports the outcome back
// to an adaptive limiter, but it never retries a request by itself.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/acronis/go-ratekit/ratelimit"
)

// Default parameter values for RateLimitingRoundTripper.
const (
	DefaultRateLimitingBurst       = 1
	DefaultRateLimitingWaitTimeout = 15 * time.Second
)

// RateLimitingRoundTripper wraps an object implementing http.RoundTripper interface
// and paces outgoing requests to the configured rate. When an adaptive limiter is
// attached, every response is reported to it ("too many requests" responses decrease
// the target rate, successful ones increase it) and the pacing limit follows the
// adapted rate.
type RateLimitingRoundTripper struct {
	Delegate http.RoundTripper

	rateLimiter *rate.Limiter

	RateLimit   int
	Burst       int
	WaitTimeout time.Duration

	adaptive *ratelimit.AdaptiveRateLimiter
}

// RateLimitingRoundTripperOpts represents an options for RateLimitingRoundTripper.
type RateLimitingRoundTripperOpts struct {
	// Burst is the number of requests that may be sent back-to-back
	// before the pacing kicks in. DefaultRateLimitingBurst is used if it's not specified.
	Burst int

	// WaitTimeout is an upper bound for how long a request may wait for its send slot.
	// DefaultRateLimitingWaitTimeout is used if it's not specified.
	WaitTimeout time.Duration

	// AdaptiveLimiter is the feedback controller to report request outcomes to.
	// Can be nil, in this case the rate limit stays fixed.
	AdaptiveLimiter *ratelimit.AdaptiveRateLimiter
}

// NewRateLimitingRoundTripper creates a new RateLimitingRoundTripper with the specified
// fixed rate limit in requests per second.
func NewRateLimitingRoundTripper(delegate http.RoundTripper, rateLimit int) (*RateLimitingRoundTripper, error) {
	return NewRateLimitingRoundTripperWithOpts(delegate, rateLimit, RateLimitingRoundTripperOpts{})
}

// NewRateLimitingRoundTripperWithOpts creates a new RateLimitingRoundTripper with the specified
// rate limit and options. For options that are not presented, the default values will be used.
// If opts.AdaptiveLimiter is set, its current rate overrides the rateLimit argument.
func NewRateLimitingRoundTripperWithOpts(
	delegate http.RoundTripper, rateLimit int, opts RateLimitingRoundTripperOpts,
) (*RateLimitingRoundTripper, error) {
	if opts.AdaptiveLimiter != nil {
		rateLimit = rateLimitFromAdaptive(opts.AdaptiveLimiter)
	}
	if rateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}

	if opts.Burst < 0 {
		return nil, fmt.Errorf("burst must be positive")
	}
	if opts.Burst == 0 {
		opts.Burst = DefaultRateLimitingBurst
	}

	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = DefaultRateLimitingWaitTimeout
	}

	return &RateLimitingRoundTripper{
		Delegate:    delegate,
		rateLimiter: rate.NewLimiter(rate.Limit(rateLimit), opts.Burst),
		RateLimit:   rateLimit,
		Burst:       opts.Burst,
		WaitTimeout: opts.WaitTimeout,
		adaptive:    opts.AdaptiveLimiter,
	}, nil
}

// RoundTrip executes a single HTTP transaction, returning a Response for the provided Request.
func (rt *RateLimitingRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		defer func() {
			_ = r.Body.Close() // Per RoundTripper contract.
		}()
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.WaitTimeout)
	defer cancel()

	if err := rt.rateLimiter.Wait(ctx); err != nil {
		if !errors.Is(ctx.Err(), context.Canceled) {
			return nil, &RateLimitingWaitError{Inner: err}
		}
	}

	resp, err := rt.Delegate.RoundTrip(r)

	if rt.adaptive != nil {
		rt.reportOutcome(resp, err)
		rt.adaptLimit()
	}

	return resp, err
}

// reportOutcome feeds the request outcome back to the adaptive limiter.
// Transport errors and server-side failures are neither successes nor rate
// limit signals, so they leave the target rate untouched.
func (rt *RateLimitingRoundTripper) reportOutcome(resp *http.Response, err error) {
	if err != nil || resp == nil {
		return
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rt.adaptive.RecordRateLimitError()
	case resp.StatusCode < http.StatusInternalServerError:
		rt.adaptive.RecordSuccess()
	}
}

// adaptLimit syncs the pacer with the adapted target rate.
// rate.Limiter serializes SetLimit internally, concurrent round trips are fine.
func (rt *RateLimitingRoundTripper) adaptLimit() {
	newLimit := rate.Limit(rateLimitFromAdaptive(rt.adaptive))
	if rt.rateLimiter.Limit() != newLimit {
		rt.rateLimiter.SetLimit(newLimit)
	}
}

func rateLimitFromAdaptive(adaptive *ratelimit.AdaptiveRateLimiter) int {
	limit := int(adaptive.CurrentRate())
	if limit < 1 {
		return 1 // Send 1 request per second instead of stopping at all.
	}
	return limit
}

// RateLimitingWaitError is returned in RoundTrip method of RateLimitingRoundTripper
// when the wait for a send slot is timed out.
type RateLimitingWaitError struct {
	Inner error
}

func (e *RateLimitingWaitError) Error() string {
	return fmt.Sprintf("wait due to client side rate limiting: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *RateLimitingWaitError) Unwrap() error {
	return e.Inner
}
