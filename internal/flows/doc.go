// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunIssue, RunRefresh, RunLogout, etc.) accepts a typed
// dependency struct and returns an explicit result value. Failures are
// reported as a FailureKind plus the underlying error, never by panicking or
// by unwinding through the caller.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token codec, the revocation records
// and the user collaborator. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import sessionkit (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency interfaces.
package flows
