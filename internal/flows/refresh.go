package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/sessionkit/jwt"
)

var (
	errFingerprintMismatch = errors.New("refresh token does not match its record")
	errAlreadyRevoked      = errors.New("refresh record already consumed")
)

// RefreshResult carries either the rotated token pair or failure metadata.
type RefreshResult struct {
	Failure FailureKind
	Err     error
	Subject string
	// OldTokenID is the jti of the presented refresh token, set once it has
	// been verified.
	OldTokenID     string
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
	// Revoked reports whether the presented token's record was consumed. It
	// can be true on a failed result when issuance failed after revocation.
	Revoked bool
}

// RefreshDeps captures refresh rotation dependencies.
type RefreshDeps struct {
	Issue            IssueDeps
	FingerprintEqual func(a, b string) bool
}

// RunRefresh validates a refresh token against its revocation record,
// consumes the record and issues a new pair.
//
// The record delete is the linearization point: among concurrent refreshes
// of one token only the caller whose delete removed the record proceeds to
// mint.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Issue.Codec.VerifyKind(refreshToken, jwt.KindRefresh)
	if err != nil {
		return RefreshResult{Failure: classifyTokenError(err), Err: err}
	}
	subject, jti := claims.Subject, claims.ID

	stored, err := deps.Issue.Records.Lookup(ctx, subject, jti)
	if err != nil {
		return RefreshResult{
			Failure:    classifyRecordError(err),
			Err:        err,
			Subject:    subject,
			OldTokenID: jti,
		}
	}

	if !deps.FingerprintEqual(stored, deps.Issue.Fingerprint(refreshToken)) {
		return RefreshResult{
			Failure:    FailureFingerprintMismatch,
			Err:        errFingerprintMismatch,
			Subject:    subject,
			OldTokenID: jti,
		}
	}

	removed, err := deps.Issue.Records.Revoke(ctx, subject, jti)
	if err != nil {
		return RefreshResult{
			Failure:    FailureStoreUnavailable,
			Err:        err,
			Subject:    subject,
			OldTokenID: jti,
		}
	}
	if !removed {
		return RefreshResult{
			Failure:    FailureRevokedOrExpired,
			Err:        errAlreadyRevoked,
			Subject:    subject,
			OldTokenID: jti,
		}
	}

	issued := RunIssue(ctx, subject, deps.Issue)
	if issued.Failure != FailureNone {
		return RefreshResult{
			Failure:    issued.Failure,
			Err:        issued.Err,
			Subject:    subject,
			OldTokenID: jti,
			Revoked:    true,
		}
	}

	return RefreshResult{
		Failure:        FailureNone,
		Subject:        subject,
		OldTokenID:     jti,
		AccessToken:    issued.AccessToken,
		RefreshToken:   issued.RefreshToken,
		RefreshTokenID: issued.RefreshTokenID,
		Revoked:        true,
	}
}
