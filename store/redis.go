package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOpTimeout bounds every Redis round trip.
const DefaultOpTimeout = 2 * time.Second

// incrWindowScript increments the counter and arms its expiry on the first
// hit. A counter found without a TTL is re-armed so it can never live forever.
const incrWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 or redis.call("PTTL", KEYS[1]) == -1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrWindowLua = redis.NewScript(incrWindowScript)

// Redis implements Store over a go-redis client.
type Redis struct {
	client    redis.UniversalClient
	opTimeout time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis wraps an existing client. A zero opTimeout selects
// DefaultOpTimeout.
func NewRedis(client redis.UniversalClient, opTimeout time.Duration) *Redis {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Redis{client: client, opTimeout: opTimeout}
}

func (r *Redis) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	removed, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return removed > 0, nil
}

func (r *Redis) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	if window <= 0 {
		return 0, ErrInvalidTTL
	}
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	count, err := incrWindowLua.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return count, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Options configures Open.
type Options struct {
	// URL is a redis:// or rediss:// connection string.
	URL          string
	OpTimeout    time.Duration
	PingAttempts int
	PingInterval time.Duration
	Logger       *slog.Logger
}

func (o *Options) withDefaults() {
	if o.OpTimeout <= 0 {
		o.OpTimeout = DefaultOpTimeout
	}
	if o.PingAttempts <= 0 {
		o.PingAttempts = 10
	}
	if o.PingInterval <= 0 {
		o.PingInterval = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Open connects to the server named by opts.URL and waits until it answers
// PING, retrying up to PingAttempts times. The client is closed when every
// attempt fails.
func Open(ctx context.Context, opts Options) (*Redis, error) {
	opts.withDefaults()

	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	r := NewRedis(redis.NewClient(parsed), opts.OpTimeout)

	var lastErr error
	for attempt := 1; attempt <= opts.PingAttempts; attempt++ {
		if lastErr = r.Ping(ctx); lastErr == nil {
			opts.Logger.Info("redis connected", "addr", parsed.Addr, "attempt", attempt)
			return r, nil
		}
		opts.Logger.Warn("redis ping failed",
			"addr", parsed.Addr,
			"attempt", attempt,
			"max_attempts", opts.PingAttempts,
			"error", lastErr,
		)
		if attempt == opts.PingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = r.Close()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(opts.PingInterval):
		}
	}

	_ = r.Close()
	return nil, lastErr
}
