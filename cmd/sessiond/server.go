package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionkit"
	promexport "github.com/MrEthical07/sessionkit/metrics/export/prometheus"
	"github.com/MrEthical07/sessionkit/middleware"
	"github.com/MrEthical07/sessionkit/password"
	"github.com/MrEthical07/sessionkit/store"
	"github.com/MrEthical07/sessionkit/userstore"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

type server struct {
	engine  *sessionkit.Engine
	cookies sessionkit.CookieConfig
	logger  *slog.Logger
}

func newServer(engine *sessionkit.Engine, logger *slog.Logger) *server {
	return &server{
		engine:  engine,
		cookies: engine.Config().Cookie,
		logger:  logger,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	limit := middleware.RateLimit(s.engine)

	mux.Handle("POST /api/v1/auth/signup", limit(http.HandlerFunc(s.handleSignup)))
	mux.Handle("POST /api/v1/auth/signin", limit(http.HandlerFunc(s.handleSignin)))
	mux.Handle("POST /api/v1/auth/refresh", limit(http.HandlerFunc(s.handleRefresh)))
	mux.Handle("POST /api/v1/auth/logout", limit(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /api/v1/auth/me", limit(middleware.RequireUser(s.engine)(http.HandlerFunc(s.handleMe))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promexport.Handler(s.engine))

	return middleware.RequestLogger(s.logger)(mux)
}

// run builds the store and engine, serves until ctx is done and then shuts
// down within cfg.ShutdownGrace.
func run(ctx context.Context, cfg serverConfig, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	hasher, err := newHasher()
	if err != nil {
		return err
	}

	engine, err := sessionkit.New().
		WithConfig(cfg.Session).
		WithStore(st).
		WithUserProvider(userstore.New()).
		WithPasswordHasher(hasher).
		WithLogger(logger).
		WithEventSink(sessionkit.NewSlogSink(logger, slog.LevelInfo)).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newServer(engine, logger).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Addr, "store", storeKind(st))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		logger.Info("shutting down", "grace", cfg.ShutdownGrace)
		return srv.Shutdown(shutdownCtx)
	})
	if mem, ok := st.(*store.Memory); ok {
		g.Go(func() error {
			sweep(gctx, mem, logger)
			return nil
		})
	}
	return g.Wait()
}

// newHasher hashes with Argon2id and still verifies bcrypt-sha256 hashes
// imported from an older user directory.
func newHasher() (password.Multi, error) {
	primary, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return password.Multi{}, fmt.Errorf("argon2: %w", err)
	}
	legacy, err := password.NewBcrypt(password.BcryptConfig{PreHash: true})
	if err != nil {
		return password.Multi{}, fmt.Errorf("bcrypt: %w", err)
	}
	return password.Multi{Primary: primary, Legacy: legacy}, nil
}

// openStore connects to Redis when a URL is configured. A server that does
// not answer the startup ping is logged and used anyway: refresh and
// logout report the store as unavailable and the limiter admits requests
// until it comes back.
func openStore(ctx context.Context, cfg serverConfig, logger *slog.Logger) (store.Store, error) {
	if cfg.RedisURL == "" {
		logger.Warn("no redis url configured, using in-process store")
		return store.NewMemory(), nil
	}

	r, err := store.Open(ctx, store.Options{
		URL:          cfg.RedisURL,
		OpTimeout:    cfg.Session.Store.OpTimeout,
		PingAttempts: cfg.RedisPingAttempts,
		Logger:       logger,
	})
	if err == nil {
		return r, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	opts, perr := redis.ParseURL(cfg.RedisURL)
	if perr != nil {
		return nil, fmt.Errorf("parse redis url: %w", perr)
	}
	logger.Warn("redis connection failed, continuing degraded", "error", err)
	return store.NewRedis(redis.NewClient(opts), cfg.Session.Store.OpTimeout), nil
}

func sweep(ctx context.Context, mem *store.Memory, logger *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := mem.Sweep(); n > 0 {
				logger.Debug("swept expired keys", "count", n)
			}
		}
	}
}

func storeKind(st store.Store) string {
	if _, ok := st.(*store.Memory); ok {
		return "memory"
	}
	return "redis"
}
