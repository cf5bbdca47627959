// Package sessionkit issues, rotates and revokes session credentials: a
// short-lived signed access token and a long-lived, single-use refresh token
// whose fingerprint is kept in a shared store.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([TokenPair], [AuthResult], [MetricsSnapshot]). Flow
// orchestration and rate limiting live under internal/. Token encoding lives
// in jwt, revocation records in session, and the key-value capability in
// store.
//
// User storage and password hashing are collaborators supplied by the
// caller through [UserProvider] and [PasswordHasher].
//
// # What this package must NOT do
//
//   - Set cookies or write HTTP responses. Transport belongs to middleware.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Log or persist raw refresh tokens. Only fingerprints are stored.
//
// # Failure reporting
//
// Every token failure wraps [ErrInvalidToken] and carries a distinguishing
// sentinel for logs and metrics. Responses should collapse them with
// [IsAuthFailure]. [ErrStoreUnavailable] is the only retryable failure.
package sessionkit
