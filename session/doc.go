// Package session owns the revocation records that make refresh tokens
// single-use.
//
// # Record layout
//
// One record exists per live refresh token, under the key
// "{prefix}:{subject}:{jti}" (prefix defaults to "refresh"). The value is the
// hex SHA-256 fingerprint of the token and the TTL equals the refresh
// lifetime, so an expired token and a revoked token are both simply absent.
//
// # Architecture boundaries
//
// [Records] is the only writer of these keys. It does NOT parse tokens,
// compare fingerprints, or decide whether a refresh is allowed; those
// decisions belong to the lifecycle flows.
//
// # What this package must NOT do
//
//   - Import sessionkit or jwt (no upward imports).
//   - Store raw token material. Only fingerprints are persisted.
package session
