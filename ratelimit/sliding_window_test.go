/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// SlidingWindowTestSuite contains tests for SlidingWindow
type SlidingWindowTestSuite struct {
	suite.Suite
}

func TestSlidingWindow(t *testing.T) {
	suite.Run(t, new(SlidingWindowTestSuite))
}

func (ts *SlidingWindowTestSuite) TestConstructorValidation() {
	_, err := NewSlidingWindow(0, time.Second)
	ts.EqualError(err, "max requests should be >= 1, got 0")

	_, err = NewSlidingWindow(5, 0)
	ts.EqualError(err, "window duration should be positive, got 0s")

	_, err = NewSlidingWindow(5, -time.Second)
	ts.EqualError(err, "window duration should be positive, got -1s")
}

func (ts *SlidingWindowTestSuite) TestHardCapPerWindow() {
	clock := newTestClock()
	window, err := NewSlidingWindowWithOpts(5, time.Second, SlidingWindowOpts{Clock: clock})
	ts.NoError(err)

	for i := 0; i < 5; i++ {
		ts.True(window.TryAcquire(), "request %d should be admitted", i+1)
	}
	ts.False(window.TryAcquire())
	ts.Equal(5, window.CurrentRequestCount())

	// Once the initial burst falls out of the window, admissions resume.
	clock.Advance(time.Second + time.Millisecond)
	ts.True(window.TryAcquire())
	ts.Equal(1, window.CurrentRequestCount())
}

func (ts *SlidingWindowTestSuite) TestWindowSlides() {
	clock := newTestClock()
	window, err := NewSlidingWindowWithOpts(2, time.Second, SlidingWindowOpts{Clock: clock})
	ts.NoError(err)

	ts.True(window.TryAcquire())
	clock.Advance(800 * time.Millisecond)
	ts.True(window.TryAcquire())
	ts.False(window.TryAcquire())

	// At +1.1s only the first entry is stale; pruning it frees one slot.
	clock.Advance(300 * time.Millisecond)
	ts.True(window.TryAcquire())
	ts.Equal(2, window.CurrentRequestCount())
}

func (ts *SlidingWindowTestSuite) TestCountIsMutatingRead() {
	clock := newTestClock()
	window, err := NewSlidingWindowWithOpts(3, time.Second, SlidingWindowOpts{Clock: clock})
	ts.NoError(err)

	ts.True(window.TryAcquire())
	ts.True(window.TryAcquire())
	ts.Equal(2, window.CurrentRequestCount())

	clock.Advance(2 * time.Second)
	ts.Equal(0, window.CurrentRequestCount())
}

func (ts *SlidingWindowTestSuite) TestAllow() {
	clock := newTestClock()
	window, err := NewSlidingWindowWithOpts(1, time.Second, SlidingWindowOpts{Clock: clock})
	ts.NoError(err)

	ctx := context.Background()

	allow, retryAfter, err := window.Allow(ctx, "")
	ts.NoError(err)
	ts.True(allow)
	ts.Equal(time.Duration(0), retryAfter)

	// The denial estimates when the oldest logged request leaves the window.
	clock.Advance(400 * time.Millisecond)
	allow, retryAfter, err = window.Allow(ctx, "")
	ts.NoError(err)
	ts.False(allow)
	ts.Equal(600*time.Millisecond, retryAfter)
}
