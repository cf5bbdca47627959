package password

import "strings"

// Hasher is satisfied by Argon2 and Bcrypt.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
	CheckPolicy(password string) error
}

// Multi hashes new passwords with Primary and verifies stored hashes with
// whichever hasher matches their prefix. It lets a user directory move
// from bcrypt to Argon2id one login at a time.
type Multi struct {
	Primary *Argon2
	Legacy  *Bcrypt
}

func (m Multi) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

// CheckPolicy applies the primary hasher's policy.
func (m Multi) CheckPolicy(password string) error {
	return m.Primary.CheckPolicy(password)
}

func (m Multi) Verify(password, encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		if m.Legacy == nil {
			return false, ErrMalformedHash
		}
		return m.Legacy.Verify(password, encodedHash)
	}
	return m.Primary.Verify(password, encodedHash)
}

// NeedsUpgrade is true for every legacy hash.
func (m Multi) NeedsUpgrade(encodedHash string) (bool, error) {
	if isBcryptHash(encodedHash) {
		return true, nil
	}
	return m.Primary.NeedsUpgrade(encodedHash)
}

func isBcryptHash(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}

var (
	_ Hasher = (*Argon2)(nil)
	_ Hasher = (*Bcrypt)(nil)
	_ Hasher = Multi{}
)
