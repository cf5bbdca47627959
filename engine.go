package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionkit/internal/flows"
	"github.com/MrEthical07/sessionkit/internal/rate"
	"github.com/MrEthical07/sessionkit/jwt"
	"github.com/MrEthical07/sessionkit/session"
	"github.com/MrEthical07/sessionkit/store"
)

// Engine runs the session lifecycle: issue, refresh, logout and access
// validation, plus signup, signin and per-client rate limiting.
//
// An Engine is safe for concurrent use. Build it with [Builder.Build].
type Engine struct {
	config       Config
	store        store.Store
	records      *session.Records
	limiter      *rate.Limiter
	jwtManager   *jwt.Manager
	flows        flows.Service
	userProvider UserProvider
	passwordHash PasswordHasher
	events       *eventDispatcher
	metrics      *Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// Config returns a copy of the configuration the engine was built with.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// Close flushes pending lifecycle events. The store is owned by the caller
// and is not closed.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.events.Close()
}

// EventsDropped reports events that never reached the sink, either because
// the buffer was full or because they arrived after Close.
func (e *Engine) EventsDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.events.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Ping checks the backing store.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Issue mints an access/refresh pair for subject and records the refresh
// token. If the record cannot be written no token is returned and the error
// is ErrStoreUnavailable.
func (e *Engine) Issue(ctx context.Context, subject string) (*TokenPair, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	r := e.flows.Issue(ctx, subject)
	if r.Failure != flows.FailureNone {
		return nil, e.issueFailed(ctx, "issue", r)
	}
	e.issued(ctx, r)
	return e.tokenPair(r.AccessToken, r.RefreshToken), nil
}

func (e *Engine) issued(ctx context.Context, r flows.IssueResult) {
	e.metricInc(MetricIssueSuccess)
	e.emit(ctx, Event{Type: EventIssued, Subject: r.Subject, TokenID: r.RefreshTokenID, Success: true})
}

func (e *Engine) issueFailed(ctx context.Context, op string, r flows.IssueResult) error {
	e.metricInc(MetricIssueFailure)
	err := failureError(r.Failure)
	if r.Failure == flows.FailureStoreUnavailable {
		e.metricInc(MetricStoreUnavailable)
	}
	e.logger.ErrorContext(ctx, "token issue failed",
		"op", op,
		"kind", r.Failure.String(),
		"subject", r.Subject,
		"error", r.Err,
	)
	e.emit(ctx, Event{Type: EventIssued, Subject: r.Subject, Kind: r.Failure.String()})
	return err
}

// Signup creates a user and issues its first token pair.
//
// When the user was created but issuance failed, the result carries the
// user with nil Tokens alongside the error.
func (e *Engine) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	res, err := e.flows.CreateAccount(ctx, flows.AccountCreateRequest{
		Email:    in.Email,
		Username: in.Username,
		Password: in.Password,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) || errors.Is(err, ErrUsernameTaken) {
			e.metricInc(MetricSignupDuplicate)
		}
		e.logger.InfoContext(ctx, "signup rejected", "op", "signup", "kind", KindOf(err).String())
		e.emit(ctx, Event{Type: EventSignup, Kind: KindOf(err).String()})
		return nil, err
	}

	out := &SignupResult{User: fromFlowUser(res.User)}
	if res.Issue.Failure != flows.FailureNone {
		return out, e.issueFailed(ctx, "signup", res.Issue)
	}
	e.issued(ctx, res.Issue)
	e.metricInc(MetricSignupSuccess)
	e.emit(ctx, Event{Type: EventSignup, Subject: out.User.UserID, Success: true})

	out.Tokens = e.tokenPair(res.Issue.AccessToken, res.Issue.RefreshToken)
	return out, nil
}

// Signin checks email and password and issues a token pair.
//
// Unknown users, deleted users and wrong passwords all return
// ErrInvalidCredentials. Inactive users get ErrAccountDisabled.
func (e *Engine) Signin(ctx context.Context, email, password string) (*TokenPair, error) {
	res, err := e.flows.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrAccountDisabled) {
			e.metricInc(MetricAccountDisabled)
		}
		e.metricInc(MetricSigninFailure)
		e.logger.InfoContext(ctx, "signin rejected", "op", "signin", "kind", KindOf(err).String())
		e.emit(ctx, Event{Type: EventSigninDenied, Kind: KindOf(err).String()})
		return nil, err
	}
	switch {
	case res.RehashErr != nil:
		e.logger.WarnContext(ctx, "password rehash failed", "op", "signin", "subject", res.User.UserID, "error", res.RehashErr)
	case res.Rehashed:
		e.logger.InfoContext(ctx, "password rehashed", "op", "signin", "subject", res.User.UserID)
	}
	if res.Issue.Failure != flows.FailureNone {
		e.metricInc(MetricSigninFailure)
		return nil, e.issueFailed(ctx, "signin", res.Issue)
	}
	e.issued(ctx, res.Issue)
	e.metricInc(MetricSigninSuccess)
	e.emit(ctx, Event{Type: EventSignin, Subject: res.User.UserID, Success: true})
	return e.tokenPair(res.Issue.AccessToken, res.Issue.RefreshToken), nil
}

// Refresh consumes refreshToken and returns a new pair.
//
// A token is usable exactly once: a second presentation, or the loser of a
// concurrent race, gets ErrRevokedOrExpired. Store failures return
// ErrStoreUnavailable; when the failure happened before the old record was
// deleted the old token stays valid and the call can be retried.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	r := e.flows.Refresh(ctx, refreshToken)
	e.metrics.Observe(MetricRefreshLatency, time.Since(start))

	if r.Failure != flows.FailureNone {
		e.metricInc(MetricRefreshFailure)
		switch r.Failure {
		case flows.FailureRevokedOrExpired:
			e.metricInc(MetricRefreshReplay)
		case flows.FailureFingerprintMismatch:
			e.metricInc(MetricFingerprintMismatch)
		case flows.FailureStoreUnavailable:
			e.metricInc(MetricStoreUnavailable)
		}

		attrs := []any{
			"op", "refresh",
			"kind", r.Failure.String(),
			"subject", r.Subject,
			"revoked", r.Revoked,
		}
		if r.Failure.TokenFailure() {
			e.logger.WarnContext(ctx, "refresh rejected", attrs...)
		} else {
			e.logger.ErrorContext(ctx, "refresh failed", append(attrs, "error", r.Err)...)
		}
		e.emit(ctx, Event{
			Type:    EventRefreshDenied,
			Subject: r.Subject,
			TokenID: r.OldTokenID,
			Kind:    r.Failure.String(),
		})
		return nil, failureError(r.Failure)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emit(ctx, Event{Type: EventRefreshed, Subject: r.Subject, TokenID: r.RefreshTokenID, Success: true})
	return e.tokenPair(r.AccessToken, r.RefreshToken), nil
}

// Logout revokes the record of refreshToken if it is a valid refresh token.
//
// Logout always succeeds from the caller's point of view: a missing token,
// an invalid token and a store failure are reported in LogoutResult.Err for
// logging only. Clearing client-side credentials is the caller's next step.
func (e *Engine) Logout(ctx context.Context, refreshToken string) LogoutResult {
	e.metricInc(MetricLogout)
	if !e.flows.Initialized() {
		return LogoutResult{Err: ErrEngineNotReady}
	}

	r := e.flows.Logout(ctx, refreshToken)
	switch {
	case r.NoToken:
		return LogoutResult{NoToken: true}
	case r.Failure.TokenFailure():
		e.metricInc(MetricLogoutInvalidToken)
		e.logger.WarnContext(ctx, "logout with unusable token", "op", "logout", "kind", r.Failure.String())
		return LogoutResult{Err: failureError(r.Failure)}
	case r.Failure != flows.FailureNone:
		e.metricInc(MetricStoreUnavailable)
		e.logger.ErrorContext(ctx, "logout revoke failed",
			"op", "logout",
			"kind", r.Failure.String(),
			"subject", r.Subject,
			"error", r.Err,
		)
		return LogoutResult{Err: failureError(r.Failure)}
	}

	e.emit(ctx, Event{Type: EventLoggedOut, Subject: r.Subject, Success: true})
	return LogoutResult{Revoked: r.Revoked}
}

// ValidateAccess verifies an access token. No store access happens.
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string) (*AuthResult, error) {
	if !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	r := e.flows.Validate(accessToken)
	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	if r.Failure != flows.FailureNone {
		e.metricInc(MetricValidateFailure)
		e.logger.DebugContext(ctx, "access token rejected", "op", "validate", "kind", r.Failure.String())
		return nil, failureError(r.Failure)
	}
	return authResult(r.Claims), nil
}

// CurrentUser validates accessToken and loads its subject from the user
// provider. Missing and deleted users are ErrUnauthorized.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*UserRecord, error) {
	r := e.flows.CurrentUser(ctx, accessToken)
	if r.Failure != flows.FailureNone {
		e.metricInc(MetricValidateFailure)
		e.logger.DebugContext(ctx, "access token rejected", "op", "current_user", "kind", r.Failure.String())
		return nil, failureError(r.Failure)
	}
	if r.Err != nil {
		if errors.Is(r.Err, ErrAccountDisabled) {
			e.metricInc(MetricAccountDisabled)
		}
		e.logger.InfoContext(ctx, "current user rejected",
			"op", "current_user",
			"kind", KindOf(r.Err).String(),
			"subject", r.User.UserID,
		)
		return nil, r.Err
	}
	user := fromFlowUser(r.User)
	return &user, nil
}

// Admit counts one request of client against route. It returns
// ErrRateLimited once the window budget is spent. When the counter store
// fails the request is admitted.
func (e *Engine) Admit(ctx context.Context, client, route string) error {
	if e.limiter == nil {
		return nil
	}
	d := e.limiter.Admit(ctx, client, route)
	if d.FailOpen {
		e.metricInc(MetricRateLimitFailOpen)
	}
	if !d.Allowed {
		e.metricInc(MetricRateLimited)
		e.emit(ctx, Event{Type: EventRateLimited, Kind: KindRateLimited.String()})
		return ErrRateLimited
	}
	return nil
}

func (e *Engine) tokenPair(access, refresh string) *TokenPair {
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		AccessTTL:    e.config.JWT.AccessTTL,
		RefreshTTL:   e.config.JWT.RefreshTTL,
	}
}

func authResult(c *jwt.Claims) *AuthResult {
	out := &AuthResult{UserID: c.Subject, TokenID: c.ID}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}

func failureError(kind flows.FailureKind) error {
	switch kind {
	case flows.FailureNone:
		return nil
	case flows.FailureMalformed:
		return ErrMalformedToken
	case flows.FailureInvalidSignature:
		return ErrInvalidSignature
	case flows.FailureExpired:
		return ErrTokenExpired
	case flows.FailureWrongType:
		return ErrWrongTokenType
	case flows.FailureRevokedOrExpired:
		return ErrRevokedOrExpired
	case flows.FailureFingerprintMismatch:
		return ErrFingerprintMismatch
	case flows.FailureStoreUnavailable:
		return ErrStoreUnavailable
	default:
		return ErrTokenIssue
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emit(ctx context.Context, event Event) {
	if e.events == nil {
		return
	}
	event.Timestamp = e.now()
	if event.ClientIP == "" {
		event.ClientIP = ClientIPFromContext(ctx)
	}
	e.events.Emit(ctx, event)
}
