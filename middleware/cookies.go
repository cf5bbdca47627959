package middleware

import (
	"net/http"

	"github.com/MrEthical07/sessionkit"
)

// SetAuthCookies writes both tokens as http-only cookies whose Max-Age
// matches the token lifetimes.
func SetAuthCookies(w http.ResponseWriter, cfg sessionkit.CookieConfig, pair *sessionkit.TokenPair) {
	if pair == nil {
		return
	}
	http.SetCookie(w, authCookie(cfg, cfg.AccessName, pair.AccessToken, int(pair.AccessTTL.Seconds())))
	http.SetCookie(w, authCookie(cfg, cfg.RefreshName, pair.RefreshToken, int(pair.RefreshTTL.Seconds())))
}

// ClearAuthCookies expires both cookies.
func ClearAuthCookies(w http.ResponseWriter, cfg sessionkit.CookieConfig) {
	http.SetCookie(w, authCookie(cfg, cfg.AccessName, "", -1))
	http.SetCookie(w, authCookie(cfg, cfg.RefreshName, "", -1))
}

func authCookie(cfg sessionkit.CookieConfig, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	}
}
