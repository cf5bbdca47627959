package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/sessionkit"
)

type serverConfig struct {
	Addr              string        // listen address (default: :8000)
	RedisURL          string        // empty selects the in-process store
	RedisPingAttempts int           // startup ping attempts (default: 10)
	LogLevel          string        // debug, info, warn, error (default: info)
	LogFormat         string        // json, text (default: json)
	Env               string        // dev, prod (default: dev)
	ShutdownGrace     time.Duration // default: 10s
	Session           sessionkit.Config
}

// loadConfig reads the server configuration from the environment. Each
// setting is looked up under its SESSIONKIT_ name first, then under the
// legacy name when one exists. A set but unparseable value is an error.
func loadConfig(getenv func(string) string) (serverConfig, error) {
	env := &envReader{getenv: getenv}

	cfg := serverConfig{
		Addr:              env.getStr("127.0.0.1:8000", "SESSIONKIT_ADDR"),
		RedisURL:          env.getStr("", "SESSIONKIT_REDIS_URL", "REDIS_URL"),
		RedisPingAttempts: env.getInt(10, "SESSIONKIT_REDIS_PING_ATTEMPTS"),
		LogLevel:          env.getStr("info", "SESSIONKIT_LOG_LEVEL", "LOG_LEVEL"),
		LogFormat:         env.getStr("json", "SESSIONKIT_LOG_FORMAT", "LOG_FORMAT"),
		Env:               env.getStr("dev", "SESSIONKIT_ENV", "ENV"),
		ShutdownGrace:     env.getDuration(10*time.Second, "SESSIONKIT_SHUTDOWN_GRACE"),
		Session:           sessionkit.DefaultConfig(),
	}

	s := &cfg.Session
	method, err := parseAlgorithm(env.getStr("hs256", "SESSIONKIT_ALGORITHM", "ALGORITHM"))
	if err != nil {
		return cfg, err
	}
	s.JWT.SigningMethod = method
	s.JWT.AccessTTL = time.Duration(env.getInt(int(s.JWT.AccessTTL/time.Minute),
		"SESSIONKIT_ACCESS_TOKEN_EXPIRE_MINUTES", "ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute
	s.JWT.RefreshTTL = time.Duration(env.getInt(int(s.JWT.RefreshTTL/(24*time.Hour)),
		"SESSIONKIT_REFRESH_TOKEN_EXPIRE_DAYS", "REFRESH_TOKEN_EXPIRE_DAYS")) * 24 * time.Hour
	s.JWT.Issuer = env.getStr("", "SESSIONKIT_JWT_ISSUER")
	s.JWT.Audience = env.getStr("", "SESSIONKIT_JWT_AUDIENCE")
	s.JWT.KeyID = env.getStr("", "SESSIONKIT_JWT_KEY_ID")

	switch method {
	case "hs256":
		s.JWT.PrivateKey = []byte(env.getStr("", "SESSIONKIT_SECRET_KEY", "SECRET_KEY"))
	case "ed25519":
		if s.JWT.PrivateKey, err = readKeyFile(env.getStr("", "SESSIONKIT_PRIVATE_KEY_FILE")); err != nil {
			return cfg, err
		}
		if s.JWT.PublicKey, err = readKeyFile(env.getStr("", "SESSIONKIT_PUBLIC_KEY_FILE")); err != nil {
			return cfg, err
		}
	}

	s.RateLimit.Enabled = env.getBool(true, "SESSIONKIT_RATE_LIMIT_ENABLED")
	s.RateLimit.Requests = env.getInt(s.RateLimit.Requests, "SESSIONKIT_RATE_LIMIT_REQUESTS", "RATE_LIMIT_REQUESTS")
	s.RateLimit.Window = time.Duration(env.getInt(int(s.RateLimit.Window/time.Second),
		"SESSIONKIT_RATE_LIMIT_WINDOW_SECONDS", "RATE_LIMIT_WINDOW_SECONDS")) * time.Second

	s.Cookie.Secure = env.getBool(false, "SESSIONKIT_COOKIE_SECURE", "AUTH_COOKIE_SECURE")
	s.Cookie.Domain = env.getStr("", "SESSIONKIT_COOKIE_DOMAIN", "AUTH_COOKIE_DOMAIN")
	if s.Cookie.SameSite, err = sessionkit.ParseSameSite(env.getStr("lax", "SESSIONKIT_COOKIE_SAMESITE", "AUTH_COOKIE_SAMESITE")); err != nil {
		return cfg, err
	}

	s.Events.Enabled = env.getBool(true, "SESSIONKIT_EVENTS_ENABLED")

	if err := env.err(); err != nil {
		return cfg, err
	}
	if err := s.Validate(); err != nil {
		return cfg, fmt.Errorf("session config: %w", err)
	}
	return cfg, nil
}

func parseAlgorithm(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "hs256":
		return "hs256", nil
	case "ed25519", "eddsa":
		return "ed25519", nil
	default:
		return "", fmt.Errorf("unsupported signing algorithm %q", v)
	}
}

func readKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return b, nil
}

type envReader struct {
	getenv func(string) string
	errs   []error
}

// lookup returns the first non-empty value among keys and the key it was
// found under.
func (e *envReader) lookup(keys ...string) (string, string) {
	for _, k := range keys {
		if v := strings.TrimSpace(e.getenv(k)); v != "" {
			return k, v
		}
	}
	return "", ""
}

func (e *envReader) invalid(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) getStr(def string, keys ...string) string {
	if _, v := e.lookup(keys...); v != "" {
		return v
	}
	return def
}

func (e *envReader) getInt(def int, keys ...string) int {
	key, v := e.lookup(keys...)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return n
}

func (e *envReader) getBool(def bool, keys ...string) bool {
	key, v := e.lookup(keys...)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return b
}

func (e *envReader) getDuration(def time.Duration, keys ...string) time.Duration {
	key, v := e.lookup(keys...)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(key, v, err)
		return def
	}
	return d
}
