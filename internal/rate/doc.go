// Package rate implements the per-client, per-route request limiter.
//
// # Window semantics
//
// Fixed-window counters: one atomic increment per request against
// "{prefix}:{client}:{route}", with the expiry armed on the first hit of each
// window. A request is denied once the count exceeds the configured limit.
// Because windows are aligned to their first request, a client can land up to
// twice the limit across a window boundary.
//
// # Failure policy
//
// The limiter fails open: when the counter store cannot be reached the
// request is admitted and a warning is logged. Throttling is a protection,
// not an authentication decision.
//
// # What this package must NOT do
//
//   - Decide anything about tokens or sessions.
//   - Be imported outside the sessionkit module.
package rate
