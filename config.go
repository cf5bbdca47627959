package sessionkit

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Config defines every tunable of the engine.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	JWT       JWTConfig
	Cookie    CookieConfig
	RateLimit RateLimitConfig
	Store     StoreConfig
	Metrics   MetricsConfig
	Events    EventsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token lifetimes and signing material.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	KeyID         string
	// VerifyKeys keeps retired keys verifiable during a key rotation.
	VerifyKeys map[string][]byte
	Issuer     string
	Audience   string
	Leeway     time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig describes the cookies the HTTP layer sets for a token pair.
type CookieConfig struct {
	AccessName  string
	RefreshName string
	Secure      bool
	Domain      string
	SameSite    http.SameSite
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig configures the per-client, per-route limiter.
type RateLimitConfig struct {
	Enabled   bool
	Requests  int
	Window    time.Duration
	KeyPrefix string
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig configures key layout and timeouts of the revocation store.
type StoreConfig struct {
	RefreshPrefix string
	// OpTimeout bounds each store call when the engine wraps a raw Redis
	// client passed to Builder.WithRedis.
	OpTimeout time.Duration
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// EventsConfig configures the asynchronous lifecycle event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// DefaultConfig returns the defaults: 30 minute access tokens, 7 day
// refresh tokens, HS256, 60 requests per minute. Signing keys must still be
// supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
		},
		Cookie: CookieConfig{
			AccessName:  "access_token",
			RefreshName: "refresh_token",
			Secure:      false,
			SameSite:    http.SameSiteLaxMode,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Requests:  60,
			Window:    60 * time.Second,
			KeyPrefix: "rl",
		},
		Store: StoreConfig{
			RefreshPrefix: "refresh",
			OpTimeout:     2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

const minHMACKeyLength = 32

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL < time.Second || c.JWT.RefreshTTL < time.Second {
		return errors.New("JWT token lifetimes must be at least one second")
	}

	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < minHMACKeyLength {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Cookie
	if strings.TrimSpace(c.Cookie.AccessName) == "" || strings.TrimSpace(c.Cookie.RefreshName) == "" {
		return errors.New("Cookie names must not be empty")
	}
	if c.Cookie.AccessName == c.Cookie.RefreshName {
		return errors.New("Cookie AccessName and RefreshName must differ")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return errors.New("RateLimit Requests must be > 0")
		}
		if c.RateLimit.Window < time.Second {
			return errors.New("RateLimit Window must be >= 1s")
		}
	}

	// Store
	if c.Store.OpTimeout < 0 {
		return errors.New("Store OpTimeout must be >= 0")
	}
	if strings.Contains(c.Store.RefreshPrefix, ":") {
		return errors.New("Store RefreshPrefix must not contain ':'")
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when Enabled is true")
	}

	return nil
}

// ParseSameSite maps "lax", "strict", "none" (any case) to http.SameSite.
// An empty string selects Lax.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, errors.New("unknown SameSite value " + s)
	}
}
