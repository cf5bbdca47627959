// Package internal contains helpers that are private to sessionkit: token id
// generation and token fingerprinting.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators for issue, refresh and logout
//   - rate: fixed-window rate limiter over the shared store
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionkit API.
//   - Hold or log raw token material.
package internal
