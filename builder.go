package sessionkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionkit/internal"
	"github.com/MrEthical07/sessionkit/internal/flows"
	"github.com/MrEthical07/sessionkit/internal/rate"
	"github.com/MrEthical07/sessionkit/jwt"
	"github.com/MrEthical07/sessionkit/password"
	"github.com/MrEthical07/sessionkit/session"
	"github.com/MrEthical07/sessionkit/store"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be built once.
type Builder struct {
	config Config
	store  store.Store
	redis  redis.UniversalClient

	userProvider UserProvider
	hasher       PasswordHasher
	eventSink    EventSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the revocation and rate-limit store. It takes precedence
// over WithRedis.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRedis wraps client in a store.Redis using Config.Store.OpTimeout.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordHasher overrides the default Argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink sets where lifecycle events go. Events are only dispatched
// when Config.Events.Enabled is true.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides the time source used for token timestamps. Tests
// only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st := b.store
	if st == nil {
		if b.redis == nil {
			return nil, errors.New("store or redis client required")
		}
		st = store.NewRedis(b.redis, cfg.Store.OpTimeout)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.DefaultConfig())
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	records := session.NewRecords(st, cfg.Store.RefreshPrefix)

	engine := &Engine{
		config:       cloneConfig(cfg),
		store:        st,
		records:      records,
		jwtManager:   jm,
		userProvider: b.userProvider,
		passwordHash: hasher,
		metrics:      NewMetrics(cfg.Metrics),
		events:       newEventDispatcher(cfg.Events, b.eventSink),
		logger:       logger.With("component", "sessionkit"),
		now:          now,
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(st, rate.Config{
			Requests:  cfg.RateLimit.Requests,
			Window:    cfg.RateLimit.Window,
			KeyPrefix: cfg.RateLimit.KeyPrefix,
		}, engine.logger)
	}

	engine.flows = flows.New(engine.buildFlowDeps())

	b.built = true
	return engine, nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	issue := flows.IssueDeps{
		Codec:       e.jwtManager,
		Records:     e.records,
		Fingerprint: internal.Fingerprint,
		AccessTTL:   e.config.JWT.AccessTTL,
		RefreshTTL:  e.config.JWT.RefreshTTL,
	}

	deps := flows.Deps{
		Issue: issue,
		Refresh: flows.RefreshDeps{
			Issue:            issue,
			FingerprintEqual: internal.FingerprintEqual,
		},
		Logout: flows.LogoutDeps{
			Codec:   e.jwtManager,
			Records: e.records,
		},
		Validate: flows.ValidateDeps{Codec: e.jwtManager},
		Account: flows.AccountDeps{
			Issue: issue,
			Errors: flows.AccountErrors{
				EngineNotReady: ErrEngineNotReady,
				InvalidInput:   ErrInvalidInput,
				PasswordPolicy: ErrPasswordPolicy,
				AccountExists:  ErrAccountExists,
				UsernameTaken:  ErrUsernameTaken,
				UserNotFound:   ErrUserNotFound,
			},
		},
		Login: flows.LoginDeps{
			Issue: issue,
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				InvalidCredentials: ErrInvalidCredentials,
				AccountDisabled:    ErrAccountDisabled,
				UserNotFound:       ErrUserNotFound,
				Unauthorized:       ErrUnauthorized,
			},
		},
	}

	if h := e.passwordHash; h != nil {
		deps.Account.CheckPassword = passwordPolicy(h)
		deps.Account.HashPassword = hashWithPolicy(h)
		deps.Login.VerifyPassword = h.Verify
		if up, ok := h.(PasswordUpgrader); ok {
			if updater, ok := e.userProvider.(PasswordHashUpdater); ok {
				deps.Login.NeedsRehash = up.NeedsUpgrade
				deps.Login.HashPassword = h.Hash
				deps.Login.UpdatePasswordHash = updater.UpdatePasswordHash
			}
		}
	}

	if up := e.userProvider; up != nil {
		byEmail := func(ctx context.Context, email string) (flows.AccountUserRecord, error) {
			u, err := up.GetUserByEmail(ctx, email)
			return toFlowUser(u), err
		}
		deps.Account.GetUserByEmail = byEmail
		deps.Account.GetUserByUsername = func(ctx context.Context, username string) (flows.AccountUserRecord, error) {
			u, err := up.GetUserByUsername(ctx, username)
			return toFlowUser(u), err
		}
		deps.Account.CreateUser = func(ctx context.Context, in flows.AccountCreateUserInput) (flows.AccountUserRecord, error) {
			u, err := up.CreateUser(ctx, CreateUserInput{
				Email:        in.Email,
				Username:     in.Username,
				PasswordHash: in.PasswordHash,
			})
			return toFlowUser(u), err
		}
		deps.Login.GetUserByEmail = byEmail
		deps.Login.GetUserByID = func(ctx context.Context, id string) (flows.AccountUserRecord, error) {
			u, err := up.GetUserByID(ctx, id)
			return toFlowUser(u), err
		}
	}

	return deps
}

func passwordPolicy(h PasswordHasher) func(string) error {
	if pc, ok := h.(PasswordPolicyChecker); ok {
		return pc.CheckPolicy
	}
	return password.DefaultPolicy().Check
}

// hashWithPolicy maps a hasher's own policy rejection onto ErrPasswordPolicy.
func hashWithPolicy(h PasswordHasher) func(string) (string, error) {
	return func(plain string) (string, error) {
		hash, err := h.Hash(plain)
		if errors.Is(err, password.ErrPolicy) {
			return "", fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
		}
		return hash, err
	}
}

func toFlowUser(u UserRecord) flows.AccountUserRecord {
	return flows.AccountUserRecord{
		UserID:       u.UserID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Deleted:      u.Deleted,
		CreatedAt:    u.CreatedAt,
	}
}

func fromFlowUser(u flows.AccountUserRecord) UserRecord {
	return UserRecord{
		UserID:       u.UserID,
		Email:        u.Email,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Deleted:      u.Deleted,
		CreatedAt:    u.CreatedAt,
	}
}
