package sessionkit

import (
	"context"
	"time"
)

// UserRecord is the view of a principal the engine needs. The user store
// owns the full record.
type UserRecord struct {
	UserID       string
	Email        string
	Username     string
	PasswordHash string
	Active       bool
	Deleted      bool
	CreatedAt    time.Time
}

// CreateUserInput is passed to [UserProvider.CreateUser] during signup. The
// email is already normalized and the password already hashed.
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
}

// UserProvider is the user store collaborator. Lookups must return
// [ErrUserNotFound] (or an error wrapping it) for unknown users.
type UserProvider interface {
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByUsername(ctx context.Context, username string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
}

// PasswordHasher is the password hashing collaborator. Verify returns
// false, not an error, for a wrong password.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) (bool, error)
}

// PasswordPolicyChecker is implemented by hashers that bound new passwords.
// Without it the engine applies password.DefaultPolicy.
type PasswordPolicyChecker interface {
	CheckPolicy(plain string) error
}

// PasswordUpgrader is implemented by hashers that can tell when a stored
// hash was made with weaker settings.
type PasswordUpgrader interface {
	NeedsUpgrade(hashed string) (bool, error)
}

// PasswordHashUpdater is implemented by user providers that accept a
// replacement hash. Together with a PasswordUpgrader it lets Signin
// re-hash stale passwords.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// TokenPair is the transport contract returned by every issuing operation.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	AccessTTL    time.Duration `json:"-"`
	RefreshTTL   time.Duration `json:"-"`
}

// SignupInput is the request shape of [Engine.Signup].
type SignupInput struct {
	Email    string
	Username string
	Password string
}

// SignupResult holds the created user and its first token pair.
type SignupResult struct {
	User   UserRecord
	Tokens *TokenPair
}

// AuthResult is returned by [Engine.ValidateAccess].
type AuthResult struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LogoutResult reports what Logout did. Logout always succeeds for the
// caller; Err carries the reason nothing was revoked, for logs only.
type LogoutResult struct {
	NoToken bool
	Revoked bool
	Err     error
}
