package flows

import (
	"context"
	"errors"
)

// LoginResult is the flow-local signin response shape. Rehashed and
// RehashErr report the stored-hash upgrade, which never fails the login.
type LoginResult struct {
	User      AccountUserRecord
	Issue     IssueResult
	Rehashed  bool
	RehashErr error
}

// LoginErrors carries host-level sentinel errors used by login flows.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountDisabled    error
	UserNotFound       error
	Unauthorized       error
}

// LoginDeps captures signin and current-user dependencies.
type LoginDeps struct {
	GetUserByEmail func(context.Context, string) (AccountUserRecord, error)
	GetUserByID    func(context.Context, string) (AccountUserRecord, error)
	VerifyPassword func(plain, hashed string) (bool, error)

	// Optional. All three must be set for stored hashes to be upgraded
	// after a successful password check.
	NeedsRehash        func(hashed string) (bool, error)
	HashPassword       func(string) (string, error)
	UpdatePasswordHash func(ctx context.Context, userID, hash string) error

	Issue  IssueDeps
	Errors LoginErrors
}

// RunLogin authenticates email and password and issues a token pair.
//
// Unknown and deleted accounts are indistinguishable from a wrong password.
// Inactive accounts are reported as disabled before the password is checked.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.GetUserByEmail == nil || deps.VerifyPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}

	user, err := deps.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return nil, deps.Errors.InvalidCredentials
		}
		return nil, err
	}
	if user.Deleted {
		return nil, deps.Errors.InvalidCredentials
	}
	if !user.Active {
		return nil, deps.Errors.AccountDisabled
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, deps.Errors.InvalidCredentials
	}

	res := &LoginResult{User: user}
	res.Rehashed, res.RehashErr = rehash(ctx, user, password, deps)
	res.Issue = RunIssue(ctx, user.UserID, deps.Issue)
	return res, nil
}

func rehash(ctx context.Context, user AccountUserRecord, password string, deps LoginDeps) (bool, error) {
	if deps.NeedsRehash == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return false, nil
	}
	stale, err := deps.NeedsRehash(user.PasswordHash)
	if err != nil || !stale {
		return false, err
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		return false, err
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		return false, err
	}
	return true, nil
}

// CurrentUserResult carries the resolved user or a classified failure.
type CurrentUserResult struct {
	Failure FailureKind
	Err     error
	User    AccountUserRecord
}

// RunCurrentUser validates an access token and loads its subject.
func RunCurrentUser(ctx context.Context, accessToken string, validate ValidateDeps, deps LoginDeps) CurrentUserResult {
	if deps.GetUserByID == nil {
		return CurrentUserResult{Err: deps.Errors.EngineNotReady}
	}

	v := RunValidate(accessToken, validate)
	if v.Failure != FailureNone {
		return CurrentUserResult{Failure: v.Failure, Err: v.Err}
	}

	user, err := deps.GetUserByID(ctx, v.Claims.Subject)
	if err != nil {
		if errors.Is(err, deps.Errors.UserNotFound) {
			return CurrentUserResult{Err: deps.Errors.Unauthorized}
		}
		return CurrentUserResult{Err: err}
	}
	if user.Deleted {
		return CurrentUserResult{Err: deps.Errors.Unauthorized}
	}
	if !user.Active {
		return CurrentUserResult{Err: deps.Errors.AccountDisabled, User: user}
	}
	return CurrentUserResult{User: user}
}
