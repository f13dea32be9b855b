/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides client-side rate limiting primitives for callers
// that issue requests against throughput-limited endpoints (typically RPC
// providers with hard requests-per-second quotas).
//
// The package offers several interchangeable admission policies:
//   - TokenBucket: fixed-capacity, continuously-refilling counter
//   - SlidingWindow: timestamp-log based counter with hard per-interval caps
//   - GCRALimiter: keyed leaky bucket variant (GCRA)
//   - PerMethodLimiter: independent token buckets per named RPC method
//   - KeyedLimiter: independent token buckets per key with bounded cardinality
//   - AdaptiveRateLimiter: feedback controller that tunes its rate from
//     observed success and "too many requests" signals
//
// None of the limiters performs I/O or blocks: every operation is a short
// in-memory computation that returns an admission decision and, on denial, an
// estimate of how long to wait. Turning a denial into an actual wait-and-retry
// loop is the caller's job (see the retry package for delay sequences and the
// httpclient package for a ready-made paced transport).
//
// All limiters are safe for concurrent use. Each instance owns its state and
// guards it with a single mutex; operations on one instance are linearizable.
package ratelimit
