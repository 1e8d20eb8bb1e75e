package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2Prefix          = "$argon2id$"
)

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns interactive-login parameters (64 MiB, t=3, p=2).
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{Memory: 64 * 1024, Time: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Validate checks the lower bounds for each parameter.
func (p Argon2Params) Validate() error {
	switch {
	case p.Memory < minMemoryKB:
		return errors.New("password: argon2 memory must be >= 8192 KB")
	case p.Time < minTimeCost:
		return errors.New("password: argon2 time must be >= 1")
	case p.Parallelism < minParallelism:
		return errors.New("password: argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltLength:
		return errors.New("password: argon2 salt length must be >= 16")
	case p.KeyLength < minKeyLength:
		return errors.New("password: argon2 key length must be >= 16")
	}
	return nil
}

// Argon2 hashes with argon2id and encodes results in PHC string format.
type Argon2 struct {
	params    Argon2Params
	minLength int
}

// NewArgon2 validates params and returns a hasher.
func NewArgon2(params Argon2Params, minLength int) (*Argon2, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if minLength < 1 {
		return nil, errors.New("password: minimum length must be >= 1")
	}
	return &Argon2{params: params, minLength: minLength}, nil
}

// Handles reports whether encoded is an argon2id PHC string.
func (a *Argon2) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

// Hash returns `$argon2id$v=19$m=..,t=..,p=..$salt$hash`.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if utf8.RuneCountInString(plaintext) < a.minLength {
		return "", ErrWeakPassword
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, a.params.Time, a.params.Memory, a.params.Parallelism, a.params.KeyLength)

	return fmt.Sprintf(
		"%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters embedded in encoded and compares in
// constant time.
func (a *Argon2) Verify(plaintext, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(plaintext), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, parsed.keyLength)
	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1, nil
}

// NeedsUpgrade reports whether encoded used weaker parameters than the configured ones.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return a.params.Memory > parsed.memory ||
		a.params.Time > parsed.time ||
		a.params.Parallelism > parsed.parallelism ||
		a.params.KeyLength != parsed.keyLength, nil
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformedHash, reason)
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, malformed("invalid PHC format")
	}
	if parts[1] != "argon2id" {
		return nil, ErrUnsupportedHash
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if !strings.HasPrefix(parts[2], "v=") || err != nil {
		return nil, malformed("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, ErrUnsupportedHash
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, malformed("invalid salt")
	}
	hash, err := base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) == 0 {
		return nil, malformed("invalid hash")
	}

	p.salt = salt
	p.hash = hash
	p.keyLength = uint32(len(hash))
	return p, nil
}

func parseParams(part string) (*parsedPHC, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, malformed("invalid parameter format")
	}

	var (
		out  parsedPHC
		seen = map[string]bool{}
	)
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || seen[k] {
			return nil, malformed("invalid parameter entry")
		}
		seen[k] = true

		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return nil, malformed("invalid memory parameter")
			}
			out.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return nil, malformed("invalid time parameter")
			}
			out.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return nil, malformed("invalid parallelism parameter")
			}
			out.parallelism = uint8(n)
		default:
			return nil, malformed("unsupported parameter")
		}
	}
	return &out, nil
}
