// Package resilience guards calls to remote transcription backends.
//
//   - Retry re-runs a failing call with capped exponential backoff and jitter.
//   - CircuitBreaker stops calling a backend after consecutive failures and
//     probes it again once a cool-down has elapsed.
//   - RateLimiter is a token bucket that paces requests to APIs with a
//     requests-per-minute quota.
//
// The provider package composes them in the order limiter, breaker, retry.
package resilience
