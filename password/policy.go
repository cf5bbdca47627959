package password

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Signup length bounds, counted in characters (runes).
const (
	DefaultMinRunes = 8
	DefaultMaxRunes = 128
)

var (
	// ErrPolicy matches every rejection of a new password.
	ErrPolicy        = errors.New("password policy violation")
	ErrMalformedHash = errors.New("malformed password hash")
)

var (
	ErrPasswordTooShort error = policyError("password too short")
	ErrPasswordTooLong  error = policyError("password too long")
)

// policyError is a policy sentinel that also matches ErrPolicy.
type policyError string

func (e policyError) Error() string { return string(e) }

func (e policyError) Is(target error) bool { return target == ErrPolicy }

// Policy bounds the passwords a hasher accepts for new hashes. Verify
// applies only the upper bound, so stored hashes of shorter passwords
// keep working after the minimum is raised.
type Policy struct {
	MinRunes int
	MaxRunes int
}

// DefaultPolicy accepts 8 to 128 characters.
func DefaultPolicy() Policy {
	return Policy{MinRunes: DefaultMinRunes, MaxRunes: DefaultMaxRunes}
}

// Check returns ErrPasswordTooShort or ErrPasswordTooLong when plain is out
// of bounds.
func (p Policy) Check(plain string) error {
	if len(plain) > p.maxBytes() {
		return ErrPasswordTooLong
	}
	n := utf8.RuneCountInString(plain)
	switch {
	case n < p.MinRunes:
		return fmt.Errorf("%w: %d characters, need %d", ErrPasswordTooShort, n, p.MinRunes)
	case n > p.MaxRunes:
		return fmt.Errorf("%w: %d characters, limit %d", ErrPasswordTooLong, n, p.MaxRunes)
	}
	return nil
}

// tooLongToVerify bounds the work Verify does on attacker-chosen input.
func (p Policy) tooLongToVerify(plain string) bool {
	return len(plain) > p.maxBytes()
}

// maxBytes is the largest UTF-8 encoding of MaxRunes characters.
func (p Policy) maxBytes() int {
	return p.MaxRunes * utf8.UTFMax
}

func (p Policy) orDefault() Policy {
	if p == (Policy{}) {
		return DefaultPolicy()
	}
	return p
}

func (p Policy) validate() error {
	if p.MinRunes < 1 {
		return errors.New("password policy minimum must be >= 1")
	}
	if p.MaxRunes < p.MinRunes {
		return errors.New("password policy maximum must be >= minimum")
	}
	return nil
}
