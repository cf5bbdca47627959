package main

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigLegacyNames(t *testing.T) {
	cfg, err := loadConfig(envFrom(map[string]string{
		"SECRET_KEY":                  strings.Repeat("k", 32),
		"ALGORITHM":                   "HS256",
		"ACCESS_TOKEN_EXPIRE_MINUTES": "15",
		"REFRESH_TOKEN_EXPIRE_DAYS":   "2",
		"REDIS_URL":                   "redis://localhost:6379/0",
		"RATE_LIMIT_REQUESTS":         "10",
		"RATE_LIMIT_WINDOW_SECONDS":   "30",
		"AUTH_COOKIE_SECURE":          "true",
		"AUTH_COOKIE_SAMESITE":        "strict",
	}))
	require.NoError(t, err)

	assert.Equal(t, "hs256", cfg.Session.JWT.SigningMethod)
	assert.Equal(t, 15*time.Minute, cfg.Session.JWT.AccessTTL)
	assert.Equal(t, 48*time.Hour, cfg.Session.JWT.RefreshTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 10, cfg.Session.RateLimit.Requests)
	assert.Equal(t, 30*time.Second, cfg.Session.RateLimit.Window)
	assert.True(t, cfg.Session.Cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cfg.Session.Cookie.SameSite)
}

func TestLoadConfigPrefixedNamesWin(t *testing.T) {
	cfg, err := loadConfig(envFrom(map[string]string{
		"SECRET_KEY":            strings.Repeat("a", 32),
		"SESSIONKIT_SECRET_KEY": strings.Repeat("b", 32),
		"REDIS_URL":             "redis://legacy:6379",
		"SESSIONKIT_REDIS_URL":  "redis://prefixed:6379",
		"SESSIONKIT_ADDR":       ":9000",
	}))
	require.NoError(t, err)
	assert.Equal(t, []byte(strings.Repeat("b", 32)), cfg.Session.JWT.PrivateKey)
	assert.Equal(t, "redis://prefixed:6379", cfg.RedisURL)
	assert.Equal(t, ":9000", cfg.Addr)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(envFrom(map[string]string{
		"SECRET_KEY": strings.Repeat("k", 32),
	}))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Session.JWT.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Session.JWT.RefreshTTL)
	assert.Equal(t, 60, cfg.Session.RateLimit.Requests)
	assert.Equal(t, http.SameSiteLaxMode, cfg.Session.Cookie.SameSite)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.ShutdownGrace)
}

func TestLoadConfigRejects(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"short secret":   {"SECRET_KEY": "short"},
		"bad algorithm":  {"SECRET_KEY": strings.Repeat("k", 32), "ALGORITHM": "RS256"},
		"bad samesite":   {"SECRET_KEY": strings.Repeat("k", 32), "AUTH_COOKIE_SAMESITE": "sometimes"},
		"none insecure":  {"SECRET_KEY": strings.Repeat("k", 32), "AUTH_COOKIE_SAMESITE": "none"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := loadConfig(envFrom(env))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigRejectsUnparseableValues(t *testing.T) {
	secret := strings.Repeat("k", 32)
	cases := map[string]string{
		"ACCESS_TOKEN_EXPIRE_MINUTES":          "6O",
		"SESSIONKIT_REDIS_PING_ATTEMPTS":       "ten",
		"SESSIONKIT_RATE_LIMIT_ENABLED":        "yes please",
		"SESSIONKIT_SHUTDOWN_GRACE":            "10",
		"SESSIONKIT_RATE_LIMIT_REQUESTS":       "1e3",
		"SESSIONKIT_COOKIE_SECURE":             "on",
		"SESSIONKIT_REFRESH_TOKEN_EXPIRE_DAYS": "7d",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			_, err := loadConfig(envFrom(map[string]string{"SECRET_KEY": secret, key: value}))
			require.Error(t, err)
			assert.ErrorContains(t, err, key)
		})
	}

	_, err := loadConfig(envFrom(map[string]string{
		"SECRET_KEY":                  secret,
		"ACCESS_TOKEN_EXPIRE_MINUTES": "6O",
		"SESSIONKIT_SHUTDOWN_GRACE":   "soon",
	}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "ACCESS_TOKEN_EXPIRE_MINUTES")
	assert.ErrorContains(t, err, "SESSIONKIT_SHUTDOWN_GRACE")
}

func TestGenSecretCommand(t *testing.T) {
	cmd := newRootCmd(envFrom(nil))
	var out strings.Builder
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"gen-secret"})
	require.NoError(t, cmd.Execute())
	assert.Len(t, strings.TrimSpace(out.String()), 64)
}
