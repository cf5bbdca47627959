package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionkit"
)

type authResultContextKey struct{}

type userContextKey struct{}

// AuthResultFromContext returns the result stored by Guard or RequireUser.
func AuthResultFromContext(ctx context.Context) (*sessionkit.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*sessionkit.AuthResult)
	return res, ok
}

// UserFromContext returns the user stored by RequireUser.
func UserFromContext(ctx context.Context) (*sessionkit.UserRecord, bool) {
	u, ok := ctx.Value(userContextKey{}).(*sessionkit.UserRecord)
	return u, ok
}

// Guard rejects requests without a valid access token.
func Guard(engine *sessionkit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteUnauthorized(w, "Not authenticated")
				return
			}

			token, ok := AccessToken(r, engine.Config().Cookie)
			if !ok {
				WriteUnauthorized(w, "Not authenticated")
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				WriteUnauthorized(w, "Could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser is Guard plus a user lookup. Deleted or unknown users get
// 401, disabled users 403.
func RequireUser(engine *sessionkit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteUnauthorized(w, "Not authenticated")
				return
			}

			token, ok := AccessToken(r, engine.Config().Cookie)
			if !ok {
				WriteUnauthorized(w, "Not authenticated")
				return
			}

			user, err := engine.CurrentUser(r.Context(), token)
			switch {
			case err == nil:
			case sessionkit.KindOf(err) == sessionkit.KindAccountDisabled:
				WriteError(w, http.StatusForbidden, "Inactive user")
				return
			case sessionkit.IsAuthFailure(err):
				WriteUnauthorized(w, "Could not validate credentials")
				return
			default:
				WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			ctx = context.WithValue(ctx, authResultContextKey{}, &sessionkit.AuthResult{UserID: user.UserID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessToken reads the bearer token, falling back to the access cookie.
func AccessToken(r *http.Request, cfg sessionkit.CookieConfig) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if c, err := r.Cookie(cfg.AccessName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// RefreshTokenCookie reads the refresh cookie.
func RefreshTokenCookie(r *http.Request, cfg sessionkit.CookieConfig) (string, bool) {
	c, err := r.Cookie(cfg.RefreshName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

// WriteUnauthorized writes a 401 with a Bearer challenge.
func WriteUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, msg)
}

// WriteError writes {"detail": msg} with status.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// WriteJSON writes v as a JSON response body.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
