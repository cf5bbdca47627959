package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/sessionkit/jwt"
)

// IssueResult carries either a fresh token pair or failure metadata.
type IssueResult struct {
	Failure        FailureKind
	Err            error
	Subject        string
	AccessToken    string
	RefreshToken   string
	RefreshTokenID string
}

// IssueDeps captures issuance dependencies.
type IssueDeps struct {
	Codec       TokenCodec
	Records     RecordStore
	Fingerprint func(string) string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

// RunIssue mints an access/refresh pair for subject and persists the
// revocation record of the refresh token. No tokens are returned unless the
// record was written.
func RunIssue(ctx context.Context, subject string, deps IssueDeps) IssueResult {
	if subject == "" {
		return IssueResult{Failure: FailureMint, Err: errors.New("empty subject")}
	}

	access, _, err := deps.Codec.Mint(subject, jwt.KindAccess, deps.AccessTTL)
	if err != nil {
		return IssueResult{Failure: FailureMint, Err: err, Subject: subject}
	}
	refresh, jti, err := deps.Codec.Mint(subject, jwt.KindRefresh, deps.RefreshTTL)
	if err != nil {
		return IssueResult{Failure: FailureMint, Err: err, Subject: subject}
	}

	if err := deps.Records.Save(ctx, subject, jti, deps.Fingerprint(refresh), deps.RefreshTTL); err != nil {
		return IssueResult{Failure: FailureStoreUnavailable, Err: err, Subject: subject}
	}

	return IssueResult{
		Failure:        FailureNone,
		Subject:        subject,
		AccessToken:    access,
		RefreshToken:   refresh,
		RefreshTokenID: jti,
	}
}
