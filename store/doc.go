// Package store is the key-value and windowed-counter capability used by the
// session lifecycle and the rate limiter.
//
// Callers depend on the KV, Counter and Store interfaces and receive a
// concrete implementation at construction time. Two implementations ship:
//
//   - Redis, over a go-redis UniversalClient, for production and for sharing
//     state across replicas.
//   - Memory, a process-local map for development and tests.
//
// Every Redis call is bounded by an operation timeout. Transport failures
// surface as ErrUnavailable so callers can decide between failing closed and
// failing open.
package store
