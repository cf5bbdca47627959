package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Lower bounds for both configured and decoded parameters. A stored hash
// below them is treated as malformed rather than verified cheaply.
const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	phcPrefix = "$argon2id$"
)

// phcEncoding is unpadded standard base64, as in the PHC string format.
var phcEncoding = base64.RawStdEncoding

// Config holds Argon2id cost parameters and the length policy.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	// Policy applies to Hash. The zero value selects DefaultPolicy.
	Policy Policy
}

// DefaultConfig returns interactive-login parameters: 64 MiB, t=3, p=2.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		Policy:      DefaultPolicy(),
	}
}

// Argon2 hashes passwords with Argon2id. Safe for concurrent use.
type Argon2 struct {
	params argon2Params
	salt   uint32
	policy Policy
}

// argon2Params is the cost triple plus output length, shared by the
// configured hasher and decoded hashes.
type argon2Params struct {
	memory      uint32
	time        uint32
	parallelism uint8
	keyLength   uint32
}

func (p argon2Params) key(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.parallelism, p.keyLength)
}

// weakerThan reports whether p costs less than target in any dimension.
func (p argon2Params) weakerThan(target argon2Params) bool {
	return p.memory < target.memory ||
		p.time < target.time ||
		p.parallelism < target.parallelism ||
		p.keyLength != target.keyLength
}

func (p argon2Params) check() error {
	switch {
	case p.memory < minMemoryKB:
		return fmt.Errorf("memory must be >= %d KiB", minMemoryKB)
	case p.time < minTimeCost:
		return errors.New("time must be >= 1")
	case p.parallelism < minParallelism:
		return errors.New("parallelism must be >= 1")
	case p.keyLength < minKeyLength:
		return fmt.Errorf("key length must be >= %d", minKeyLength)
	}
	return nil
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	params := argon2Params{
		memory:      cfg.Memory,
		time:        cfg.Time,
		parallelism: cfg.Parallelism,
		keyLength:   cfg.KeyLength,
	}
	if err := params.check(); err != nil {
		return nil, fmt.Errorf("argon2 config: %w", err)
	}
	if cfg.SaltLength < minSaltLength {
		return nil, fmt.Errorf("argon2 config: salt length must be >= %d", minSaltLength)
	}
	policy := cfg.Policy.orDefault()
	if err := policy.validate(); err != nil {
		return nil, err
	}
	return &Argon2{params: params, salt: cfg.SaltLength, policy: policy}, nil
}

// CheckPolicy applies the length policy without hashing.
func (a *Argon2) CheckPolicy(password string) error {
	return a.policy.Check(password)
}

// Hash checks password against the policy and returns its PHC encoding
// under a fresh random salt. Bytes are hashed as given, without Unicode
// normalization.
func (a *Argon2) Hash(password string) (string, error) {
	if err := a.policy.Check(password); err != nil {
		return "", err
	}

	salt := make([]byte, a.salt)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	return encodePHC(a.params, salt, a.params.key(password, salt)), nil
}

// Verify reports whether password matches encodedHash. A wrong password,
// including one longer than the policy allows, is (false, nil). An
// unparseable hash wraps ErrMalformedHash.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	params, salt, want, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if a.policy.tooLongToVerify(password) {
		return false, nil
	}
	return subtle.ConstantTimeCompare(params.key(password, salt), want) == 1, nil
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	params, _, _, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}
	return params.weakerThan(a.params), nil
}

func encodePHC(p argon2Params, salt, key []byte) string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		phcPrefix, argon2.Version, p.memory, p.time, p.parallelism,
		phcEncoding.EncodeToString(salt), phcEncoding.EncodeToString(key))
}

// decodePHC parses $argon2id$v=19$m=..,t=..,p=..$salt$key. Parameters must
// appear in that order.
func decodePHC(encoded string) (argon2Params, []byte, []byte, error) {
	var p argon2Params
	malformed := func(reason string) (argon2Params, []byte, []byte, error) {
		return p, nil, nil, fmt.Errorf("%w: %s", ErrMalformedHash, reason)
	}

	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return malformed("not an argon2id hash")
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return malformed("wrong field count")
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil || version != argon2.Version {
		return malformed("unsupported version")
	}
	var tail string
	n, _ := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d%s", &p.memory, &p.time, &p.parallelism, &tail)
	if n != 3 {
		return malformed("bad parameters")
	}

	salt, err := phcEncoding.DecodeString(fields[2])
	if err != nil || len(salt) < int(minSaltLength) {
		return malformed("bad salt")
	}
	key, err := phcEncoding.DecodeString(fields[3])
	if err != nil {
		return malformed("bad key")
	}
	p.keyLength = uint32(len(key))

	if err := p.check(); err != nil {
		return malformed(err.Error())
	}
	return p, salt, key, nil
}
