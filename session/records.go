package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/sessionkit/store"
)

// DefaultPrefix namespaces revocation records.
const DefaultPrefix = "refresh"

var (
	// ErrRecordNotFound is returned when no record exists for the token,
	// either because it was revoked or because it expired.
	ErrRecordNotFound = errors.New("revocation record not found")

	// ErrStoreUnavailable wraps transport failures of the backing store.
	ErrStoreUnavailable = errors.New("revocation store unavailable")

	errEmptyKeyPart = errors.New("subject and jti are required")
)

// Records stores one fingerprint per outstanding refresh token.
//
// Records is safe for concurrent use when the underlying KV is.
type Records struct {
	kv     store.KV
	prefix string
}

// NewRecords binds a Records to kv. An empty prefix selects DefaultPrefix.
func NewRecords(kv store.KV, prefix string) *Records {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Records{kv: kv, prefix: prefix}
}

// Key returns the storage key of the record for (subject, jti).
func (r *Records) Key(subject, jti string) string {
	return r.prefix + ":" + subject + ":" + jti
}

// Save writes the fingerprint with the given lifetime. Saving an existing
// key overwrites it and restarts its TTL.
func (r *Records) Save(ctx context.Context, subject, jti, fingerprint string, ttl time.Duration) error {
	if subject == "" || jti == "" {
		return errEmptyKeyPart
	}
	if err := r.kv.Put(ctx, r.Key(subject, jti), fingerprint, ttl); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// Lookup returns the stored fingerprint, or ErrRecordNotFound.
func (r *Records) Lookup(ctx context.Context, subject, jti string) (string, error) {
	if subject == "" || jti == "" {
		return "", ErrRecordNotFound
	}
	fingerprint, err := r.kv.Get(ctx, r.Key(subject, jti))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrRecordNotFound
		}
		return "", wrapStoreErr(err)
	}
	return fingerprint, nil
}

// Revoke deletes the record and reports whether this call removed it. Among
// concurrent callers for the same record at most one observes true.
func (r *Records) Revoke(ctx context.Context, subject, jti string) (bool, error) {
	if subject == "" || jti == "" {
		return false, nil
	}
	removed, err := r.kv.Delete(ctx, r.Key(subject, jti))
	if err != nil {
		return false, wrapStoreErr(err)
	}
	return removed, nil
}

func wrapStoreErr(err error) error {
	if errors.Is(err, store.ErrInvalidTTL) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
