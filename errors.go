package sessionkit

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is wrapped by every token validation failure.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedToken is returned for undecodable tokens or tokens
	// missing required claims.
	ErrMalformedToken = fmt.Errorf("%w: malformed", ErrInvalidToken)
	// ErrInvalidSignature is returned when the signature does not verify.
	ErrInvalidSignature = fmt.Errorf("%w: bad signature", ErrInvalidToken)
	// ErrTokenExpired is returned for correctly signed tokens past exp.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	// ErrWrongTokenType is returned when an access token is presented where
	// a refresh token is expected, or the reverse.
	ErrWrongTokenType = fmt.Errorf("%w: wrong type", ErrInvalidToken)
	// ErrRevokedOrExpired is returned when the refresh record is absent:
	// the token was already used, logged out, or its record expired.
	ErrRevokedOrExpired = fmt.Errorf("%w: revoked or expired", ErrInvalidToken)
	// ErrFingerprintMismatch is returned when a record exists but was
	// written for different token bytes.
	ErrFingerprintMismatch = fmt.Errorf("%w: fingerprint mismatch", ErrInvalidToken)

	// ErrStoreUnavailable is returned when the revocation store cannot be
	// reached. The operation may be retried.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrRateLimited is returned by Admit when the client exhausted its
	// window budget.
	ErrRateLimited = errors.New("rate limit exceeded")

	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountExists      = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrPasswordPolicy     = errors.New("password policy violation")
	ErrEngineNotReady     = errors.New("engine not ready")
	ErrTokenIssue         = errors.New("token issuance failed")
)

// ErrorKind is a stable, loggable classification of engine errors.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindMalformed
	KindInvalidSignature
	KindExpired
	KindWrongType
	KindRevokedOrExpired
	KindFingerprintMismatch
	KindStoreUnavailable
	KindRateLimited
	KindUnauthorized
	KindInvalidCredentials
	KindAccountExists
	KindUsernameTaken
	KindAccountDisabled
	KindInvalidInput
	KindInternal
)

var errorKindNames = [...]string{
	KindNone:                "none",
	KindMalformed:           "malformed",
	KindInvalidSignature:    "invalid_signature",
	KindExpired:             "expired",
	KindWrongType:           "wrong_type",
	KindRevokedOrExpired:    "revoked_or_expired",
	KindFingerprintMismatch: "fingerprint_mismatch",
	KindStoreUnavailable:    "store_unavailable",
	KindRateLimited:         "rate_limited",
	KindUnauthorized:        "unauthorized",
	KindInvalidCredentials:  "invalid_credentials",
	KindAccountExists:       "account_exists",
	KindUsernameTaken:       "username_taken",
	KindAccountDisabled:     "account_disabled",
	KindInvalidInput:        "invalid_input",
	KindInternal:            "internal",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(errorKindNames) {
		return "internal"
	}
	return errorKindNames[k]
}

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrMalformedToken, KindMalformed},
	{ErrInvalidSignature, KindInvalidSignature},
	{ErrTokenExpired, KindExpired},
	{ErrWrongTokenType, KindWrongType},
	{ErrRevokedOrExpired, KindRevokedOrExpired},
	{ErrFingerprintMismatch, KindFingerprintMismatch},
	{ErrInvalidToken, KindMalformed},
	{ErrStoreUnavailable, KindStoreUnavailable},
	{ErrRateLimited, KindRateLimited},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountExists, KindAccountExists},
	{ErrUsernameTaken, KindUsernameTaken},
	{ErrAccountDisabled, KindAccountDisabled},
	{ErrInvalidInput, KindInvalidInput},
	{ErrPasswordPolicy, KindInvalidInput},
}

// KindOf classifies err. A nil error is KindNone; errors not produced by
// the engine are KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

// IsAuthFailure reports whether err should be answered with a generic
// "authentication failed" response.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrUnauthorized)
}

// IsRetryable reports whether the same request may succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
