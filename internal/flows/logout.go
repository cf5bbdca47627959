package flows

import (
	"context"

	"github.com/MrEthical07/sessionkit/jwt"
)

// LogoutResult describes what a logout actually did. Logout never fails for
// the caller; Failure explains why nothing was revoked.
type LogoutResult struct {
	Failure FailureKind
	Err     error
	// NoToken is set when no refresh token was presented.
	NoToken bool
	Subject string
	Revoked bool
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	Codec   TokenCodec
	Records RecordStore
}

// RunLogout revokes the record of a valid refresh token.
func RunLogout(ctx context.Context, refreshToken string, deps LogoutDeps) LogoutResult {
	if refreshToken == "" {
		return LogoutResult{NoToken: true}
	}

	claims, err := deps.Codec.VerifyKind(refreshToken, jwt.KindRefresh)
	if err != nil {
		return LogoutResult{Failure: classifyTokenError(err), Err: err}
	}

	removed, err := deps.Records.Revoke(ctx, claims.Subject, claims.ID)
	if err != nil {
		return LogoutResult{
			Failure: FailureStoreUnavailable,
			Err:     err,
			Subject: claims.Subject,
		}
	}

	return LogoutResult{
		Failure: FailureNone,
		Subject: claims.Subject,
		Revoked: removed,
	}
}
