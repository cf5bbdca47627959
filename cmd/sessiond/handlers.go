package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionkit"
	"github.com/MrEthical07/sessionkit/middleware"
)

const maxBodyBytes = 1 << 20

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type signupResponse struct {
	User   userResponse          `json:"user"`
	Tokens *sessionkit.TokenPair `json:"tokens"`
}

func publicUser(u sessionkit.UserRecord) userResponse {
	return userResponse{UserID: u.UserID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (s *server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	res, err := s.engine.Signup(r.Context(), sessionkit.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	middleware.SetAuthCookies(w, s.cookies, res.Tokens)
	middleware.WriteJSON(w, http.StatusCreated, signupResponse{
		User:   publicUser(res.User),
		Tokens: res.Tokens,
	})
}

func (s *server) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		middleware.WriteError(w, http.StatusUnprocessableEntity, "Invalid request body")
		return
	}

	pair, err := s.engine.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	middleware.SetAuthCookies(w, s.cookies, pair)
	middleware.WriteJSON(w, http.StatusOK, pair)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := s.refreshToken(w, r)
	if !ok {
		middleware.WriteUnauthorized(w, "Refresh token is required")
		return
	}

	pair, err := s.engine.Refresh(r.Context(), token)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	middleware.SetAuthCookies(w, s.cookies, pair)
	middleware.WriteJSON(w, http.StatusOK, pair)
}

// handleLogout always answers 204 and clears both cookies.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := s.refreshToken(w, r)
	res := s.engine.Logout(r.Context(), token)
	if res.Err != nil {
		middleware.LoggerFromContext(r.Context()).InfoContext(r.Context(), "logout without revocation",
			"kind", sessionkit.KindOf(res.Err).String(),
		)
	}

	middleware.ClearAuthCookies(w, s.cookies)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteUnauthorized(w, "Not authenticated")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, publicUser(*user))
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Ping(r.Context()); err != nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// refreshToken reads the token from the JSON body, falling back to the
// refresh cookie.
func (s *server) refreshToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req, true); err == nil && req.RefreshToken != "" {
		return req.RefreshToken, true
	}
	return middleware.RefreshTokenCookie(r, s.cookies)
}

func (s *server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch sessionkit.KindOf(err) {
	case sessionkit.KindAccountExists:
		middleware.WriteError(w, http.StatusConflict, "Email already registered")
	case sessionkit.KindUsernameTaken:
		middleware.WriteError(w, http.StatusConflict, "Username already taken")
	case sessionkit.KindInvalidInput:
		middleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case sessionkit.KindInvalidCredentials:
		middleware.WriteUnauthorized(w, "Invalid credentials")
	case sessionkit.KindAccountDisabled:
		middleware.WriteError(w, http.StatusForbidden, "Inactive user")
	case sessionkit.KindStoreUnavailable:
		middleware.WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
	default:
		if sessionkit.IsAuthFailure(err) {
			middleware.WriteUnauthorized(w, "Could not validate credentials")
			return
		}
		middleware.LoggerFromContext(r.Context()).ErrorContext(r.Context(), "request failed", "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// decodeJSON decodes a bounded JSON body into v. With optional set an
// empty body is not an error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	if r.Body == nil {
		if optional {
			return nil
		}
		return io.EOF
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
