package password

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxInput is the number of bytes bcrypt actually reads.
const bcryptMaxInput = 72

// Bcrypt hashes passwords with bcrypt.
//
// With PreHash set, the password is first reduced to the base64 SHA-256
// digest (44 bytes) so inputs longer than 72 bytes are not silently
// truncated. Hashes made with and without PreHash are not interchangeable.
type Bcrypt struct {
	cost    int
	preHash bool
	policy  Policy
}

// BcryptConfig configures a Bcrypt hasher. Zero Cost selects
// bcrypt.DefaultCost and a zero Policy selects DefaultPolicy.
type BcryptConfig struct {
	Cost    int
	PreHash bool
	Policy  Policy
}

func NewBcrypt(cfg BcryptConfig) (*Bcrypt, error) {
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	policy := cfg.Policy.orDefault()
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Bcrypt{cost: cfg.Cost, preHash: cfg.PreHash, policy: policy}, nil
}

// CheckPolicy applies the length policy. Without PreHash it also rejects
// inputs bcrypt would truncate.
func (b *Bcrypt) CheckPolicy(password string) error {
	if err := b.policy.Check(password); err != nil {
		return err
	}
	if !b.preHash && len(password) > bcryptMaxInput {
		return fmt.Errorf("%w: %d bytes, bcrypt reads %d", ErrPasswordTooLong, len(password), bcryptMaxInput)
	}
	return nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if err := b.CheckPolicy(password); err != nil {
		return "", err
	}
	out, err := bcrypt.GenerateFromPassword(b.input(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether password matches hashed. A wrong or oversized
// password is (false, nil).
func (b *Bcrypt) Verify(password, hashed string) (bool, error) {
	if b.policy.tooLongToVerify(password) || (!b.preHash && len(password) > bcryptMaxInput) {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), b.input(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether hashed was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(hashed string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}

func (b *Bcrypt) input(password string) []byte {
	if !b.preHash {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
