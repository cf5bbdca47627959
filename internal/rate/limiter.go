package rate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/MrEthical07/sessionkit/store"
)

const (
	// DefaultRequests is the per-window budget used when Config.Requests is 0.
	DefaultRequests = 60
	// DefaultWindow is used when Config.Window is 0.
	DefaultWindow = 60 * time.Second
	// DefaultKeyPrefix namespaces counter keys.
	DefaultKeyPrefix = "rl"

	unknownClient = "unknown"
)

// Config holds limiter tuning parameters.
type Config struct {
	Requests  int
	Window    time.Duration
	KeyPrefix string
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Count is the value of the window counter after this request. It is 0
	// when the store could not be reached.
	Count int64
	Limit int
	// FailOpen is set when the request was admitted because the store failed.
	FailOpen bool
}

// Limiter admits or rejects requests using a shared windowed counter.
type Limiter struct {
	counter store.Counter
	config  Config
	logger  *slog.Logger
}

// New creates a Limiter over counter. Zero config fields take their defaults
// and a nil logger selects slog.Default.
func New(counter store.Counter, cfg Config, logger *slog.Logger) *Limiter {
	if cfg.Requests <= 0 {
		cfg.Requests = DefaultRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		counter: counter,
		config:  cfg,
		logger:  logger,
	}
}

// Config returns the effective configuration.
func (l *Limiter) Config() Config {
	return l.config
}

// Key returns the counter key for a client and route.
func (l *Limiter) Key(client, route string) string {
	if client == "" {
		client = unknownClient
	}
	return l.config.KeyPrefix + ":" + client + ":" + route
}

// Admit counts one request for (client, route) and decides whether it may
// proceed.
func (l *Limiter) Admit(ctx context.Context, client, route string) Decision {
	key := l.Key(client, route)

	count, err := l.counter.IncrWindow(ctx, key, l.config.Window)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter store unavailable, admitting request",
			"key", key,
			"error", err,
		)
		return Decision{Allowed: true, Limit: l.config.Requests, FailOpen: true}
	}

	return Decision{
		Allowed: count <= int64(l.config.Requests),
		Count:   count,
		Limit:   l.config.Requests,
	}
}
