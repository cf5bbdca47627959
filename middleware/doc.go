// Package middleware adapts sessionkit.Engine to net/http.
//
// # Handlers
//
//   - [Guard] verifies the access token (Authorization: Bearer, then the
//     access cookie) and stores the [sessionkit.AuthResult] in the request
//     context. No store call.
//   - [RequireUser] additionally loads the user and rejects deleted or
//     disabled accounts.
//   - [RateLimit] admits each request against the engine's per-client,
//     per-route window and answers 429 once it is spent.
//   - [RequestLogger] attaches a request-scoped slog.Logger with a ULID
//     req_id and logs one line per request.
//
// [SetAuthCookies] and [ClearAuthCookies] implement the cookie contract:
// http-only, Path=/, Max-Age equal to the token lifetime, cleared with
// Max-Age=-1.
//
// # What this package must NOT do
//
//   - Parse or mint tokens. All token decisions come from the Engine.
//   - Tell clients why a token was rejected. Every token failure is the
//     same 401.
package middleware
