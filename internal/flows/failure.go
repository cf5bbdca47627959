package flows

import (
	"errors"

	"github.com/MrEthical07/sessionkit/jwt"
	"github.com/MrEthical07/sessionkit/session"
)

// FailureKind classifies flow failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureMalformed
	FailureInvalidSignature
	FailureExpired
	FailureWrongType
	FailureRevokedOrExpired
	FailureFingerprintMismatch
	FailureStoreUnavailable
	FailureMint
)

var failureNames = [...]string{
	FailureNone:                "none",
	FailureMalformed:           "malformed",
	FailureInvalidSignature:    "invalid_signature",
	FailureExpired:             "expired",
	FailureWrongType:           "wrong_type",
	FailureRevokedOrExpired:    "revoked_or_expired",
	FailureFingerprintMismatch: "fingerprint_mismatch",
	FailureStoreUnavailable:    "store_unavailable",
	FailureMint:                "mint",
}

// String returns the snake_case name used in log attributes.
func (k FailureKind) String() string {
	if k < 0 || int(k) >= len(failureNames) {
		return "unknown"
	}
	return failureNames[k]
}

// TokenFailure reports whether k is a token validation failure, as opposed
// to an infrastructure failure.
func (k FailureKind) TokenFailure() bool {
	switch k {
	case FailureMalformed,
		FailureInvalidSignature,
		FailureExpired,
		FailureWrongType,
		FailureRevokedOrExpired,
		FailureFingerprintMismatch:
		return true
	default:
		return false
	}
}

// classifyTokenError maps codec errors onto failure kinds.
func classifyTokenError(err error) FailureKind {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return FailureExpired
	case errors.Is(err, jwt.ErrInvalidSignature):
		return FailureInvalidSignature
	case errors.Is(err, jwt.ErrWrongType):
		return FailureWrongType
	default:
		return FailureMalformed
	}
}

// classifyRecordError maps revocation store errors onto failure kinds.
func classifyRecordError(err error) FailureKind {
	if errors.Is(err, session.ErrRecordNotFound) {
		return FailureRevokedOrExpired
	}
	return FailureStoreUnavailable
}
