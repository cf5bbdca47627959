package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// tokenIDSize is the number of random bytes behind every jti (256 bits).
const tokenIDSize = 32

// NewTokenID returns a fresh URL-safe token identifier.
func NewTokenID() (string, error) {
	var raw [tokenIDSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NewSecret returns n random bytes for use as signing material.
func NewSecret(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("secret size must be positive")
	}
	out := make([]byte, n)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fingerprint returns the hex SHA-256 digest of the exact token bytes.
// Stores keep the fingerprint in place of the token itself.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// FingerprintEqual compares two fingerprints in constant time.
func FingerprintEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
