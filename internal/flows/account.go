package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxUsernameLength = 150

// AccountUserRecord is a flow-local user model used by account and login flows.
type AccountUserRecord struct {
	UserID       string
	Email        string
	Username     string
	PasswordHash string
	Active       bool
	Deleted      bool
	CreatedAt    time.Time
}

type AccountCreateRequest struct {
	Email    string
	Username string
	Password string
}

type AccountCreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
}

// AccountCreateResult holds the created user and the outcome of issuing its
// first token pair. A user can exist even when Issue failed.
type AccountCreateResult struct {
	User  AccountUserRecord
	Issue IssueResult
}

// AccountErrors carries host-level sentinel errors used by account flows.
type AccountErrors struct {
	EngineNotReady error
	InvalidInput   error
	PasswordPolicy error
	AccountExists  error
	UsernameTaken  error
	UserNotFound   error
}

// AccountDeps captures signup dependencies. CheckPassword applies the
// hasher's length policy before any lookup.
type AccountDeps struct {
	GetUserByEmail    func(context.Context, string) (AccountUserRecord, error)
	GetUserByUsername func(context.Context, string) (AccountUserRecord, error)
	CheckPassword     func(string) error
	HashPassword      func(string) (string, error)
	CreateUser        func(context.Context, AccountCreateUserInput) (AccountUserRecord, error)

	Issue  IssueDeps
	Errors AccountErrors
}

// NormalizeEmail lower-cases and trims an address for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RunCreateAccount registers a user and issues its first token pair.
func RunCreateAccount(ctx context.Context, req AccountCreateRequest, deps AccountDeps) (*AccountCreateResult, error) {
	if deps.GetUserByEmail == nil || deps.CheckPassword == nil || deps.HashPassword == nil || deps.CreateUser == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, deps.Errors.InvalidInput
	}
	username := strings.TrimSpace(req.Username)
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, deps.Errors.InvalidInput
	}
	if err := deps.CheckPassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, err)
	}

	if _, err := deps.GetUserByEmail(ctx, email); err == nil {
		return nil, deps.Errors.AccountExists
	} else if !errors.Is(err, deps.Errors.UserNotFound) {
		return nil, err
	}

	if username != "" && deps.GetUserByUsername != nil {
		if _, err := deps.GetUserByUsername(ctx, username); err == nil {
			return nil, deps.Errors.UsernameTaken
		} else if !errors.Is(err, deps.Errors.UserNotFound) {
			return nil, err
		}
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := deps.CreateUser(ctx, AccountCreateUserInput{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}

	return &AccountCreateResult{
		User:  user,
		Issue: RunIssue(ctx, user.UserID, deps.Issue),
	}, nil
}
