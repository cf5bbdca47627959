package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/sessionkit/internal"
	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used to sign and verify tokens.
//
// It is fixed for the lifetime of a Manager.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 private key (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC-SHA256 secret.
	MethodHS256 SigningMethod = "hs256"
)

// Kind is the value of the "type" claim.
type Kind string

const (
	// KindAccess marks short-lived access tokens.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived, single-use refresh tokens.
	KindRefresh Kind = "refresh"
)

var (
	// ErrMalformed is returned when a token cannot be decoded or carries
	// unusable claims.
	ErrMalformed = errors.New("malformed token")
	// ErrInvalidSignature is returned when the signature does not verify
	// under any configured key.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned for correctly signed tokens past their exp.
	ErrExpired = errors.New("token expired")
	// ErrWrongType is returned by VerifyKind when the type claim differs.
	ErrWrongType = errors.New("unexpected token type")
)

// Config holds signing material and validation policy.
//
// Config is read once by NewManager and treated as immutable afterwards.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	// KeyID is written to the kid header of minted tokens.
	KeyID string
	// VerifyKeys lists every key still accepted for verification, indexed
	// by kid. Retired keys stay here until their tokens have expired.
	VerifyKeys map[string][]byte
	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Manager mints and verifies signed session tokens.
//
// A Manager is safe for concurrent use.
type Manager struct {
	config Config
	method jwt.SigningMethod
	parser *jwt.Parser
}

// Claims is the signed payload of both access and refresh tokens:
// sub, type, iat, exp and jti, plus optional iss and aud.
type Claims struct {
	Type Kind `json:"type"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if len(key) == 0 {
				return nil, fmt.Errorf("empty hs256 verify key for kid %q", kid)
			}
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	m := &Manager{config: cfg}
	m.method = m.getMethod()

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// Mint signs a new token of the given kind for subject and returns it with
// its freshly generated token id.
func (j *Manager) Mint(subject string, kind Kind, ttl time.Duration) (string, string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", "", errors.New("empty subject")
	}
	if kind != KindAccess && kind != KindRefresh {
		return "", "", fmt.Errorf("unknown token kind %q", kind)
	}
	if ttl <= 0 {
		return "", "", errors.New("invalid TTL")
	}

	tokenID, err := internal.NewTokenID()
	if err != nil {
		return "", "", fmt.Errorf("generate token id: %w", err)
	}

	now := j.config.Now()
	claims := Claims{
		Type: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    j.config.Issuer,
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	token := jwt.NewWithClaims(j.method, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", "", err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", "", err
	}
	return signed, tokenID, nil
}

// Verify checks signature and expiry and returns the claims. Claims are only
// read after the signature has been verified.
func (j *Manager) Verify(tokenStr string) (*Claims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &Claims{}, j.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.IssuedAt != nil && claims.ExpiresAt != nil && !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return nil, fmt.Errorf("%w: exp not after iat", ErrMalformed)
	}
	if claims.IssuedAt != nil {
		maxAllowed := j.config.Now().Add(j.config.MaxFutureIAT)
		if claims.IssuedAt.Time.After(maxAllowed) {
			return nil, fmt.Errorf("%w: iat too far in the future", ErrMalformed)
		}
	}

	return claims, nil
}

// VerifyKind is Verify plus a check of the type claim and of the presence of
// sub, jti and iat.
func (j *Manager) VerifyKind(tokenStr string, kind Kind) (*Claims, error) {
	claims, err := j.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != kind {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongType, claims.Type, kind)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrMalformed)
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrMalformed)
	}
	return claims, nil
}

func (j *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != j.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)

	if len(j.config.VerifyKeys) > 0 {
		if kid == "" {
			// Tokens minted before kids were configured: try every key.
			return j.verifyKeySet()
		}
		key, ok := j.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return j.keyBytesToVerifyKey(key)
	}

	if j.config.KeyID != "" && kid != "" && kid != j.config.KeyID {
		return nil, errors.New("unknown kid")
	}

	return j.getVerifyKey()
}

func (j *Manager) verifyKeySet() (jwt.VerificationKeySet, error) {
	set := jwt.VerificationKeySet{Keys: make([]jwt.VerificationKey, 0, len(j.config.VerifyKeys)+1)}
	if primary, err := j.getVerifyKey(); err == nil && primary != nil {
		set.Keys = append(set.Keys, primary)
	}
	for _, key := range j.config.VerifyKeys {
		vk, err := j.keyBytesToVerifyKey(key)
		if err != nil {
			return set, err
		}
		set.Keys = append(set.Keys, vk)
	}
	return set, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		if len(j.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured")
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		if len(j.config.PublicKey) == 0 {
			return nil, errors.New("ed25519 public key not configured")
		}
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
