package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Issue.Codec != nil && s.deps.Issue.Records != nil
}

func (s Service) Issue(ctx context.Context, subject string) IssueResult {
	return RunIssue(ctx, subject, s.deps.Issue)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) RefreshResult {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, refreshToken string) LogoutResult {
	return RunLogout(ctx, refreshToken, s.deps.Logout)
}

func (s Service) Validate(tokenStr string) ValidateResult {
	return RunValidate(tokenStr, s.deps.Validate)
}

func (s Service) CreateAccount(ctx context.Context, req AccountCreateRequest) (*AccountCreateResult, error) {
	return RunCreateAccount(ctx, req, s.deps.Account)
}

func (s Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) CurrentUser(ctx context.Context, accessToken string) CurrentUserResult {
	return RunCurrentUser(ctx, accessToken, s.deps.Validate, s.deps.Login)
}
