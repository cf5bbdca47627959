package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/sessionkit/jwt"
)

// TokenCodec mints and verifies signed tokens. *jwt.Manager satisfies it.
type TokenCodec interface {
	Mint(subject string, kind jwt.Kind, ttl time.Duration) (string, string, error)
	VerifyKind(token string, kind jwt.Kind) (*jwt.Claims, error)
}

// RecordStore is the revocation record capability. *session.Records
// satisfies it.
type RecordStore interface {
	Save(ctx context.Context, subject, jti, fingerprint string, ttl time.Duration) error
	Lookup(ctx context.Context, subject, jti string) (string, error)
	Revoke(ctx context.Context, subject, jti string) (bool, error)
}

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Issue    IssueDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Validate ValidateDeps
	Account  AccountDeps
	Login    LoginDeps
}
