package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// BcryptMaxBytes is the longest plaintext bcrypt hashes in full. Longer input would share
// a hash with its 72-byte prefix.
const BcryptMaxBytes = 72

// Bcrypt hashes with bcrypt at a fixed cost.
type Bcrypt struct {
	cost      int
	minLength int
}

// NewBcrypt returns a bcrypt hasher. cost must be within bcrypt's allowed range.
func NewBcrypt(cost, minLength int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password: bcrypt cost must be in [%d,%d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if minLength < 1 {
		return nil, errors.New("password: minimum length must be >= 1")
	}
	return &Bcrypt{cost: cost, minLength: minLength}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// Handles reports whether encoded looks like a bcrypt hash.
func (b *Bcrypt) Handles(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$")
}

// Hash returns a salted bcrypt hash of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if utf8.RuneCountInString(plaintext) < b.minLength {
		return "", ErrWeakPassword
	}
	if len(plaintext) > BcryptMaxBytes {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", fmt.Errorf("password: bcrypt: %w", err)
	}
	return string(out), nil
}

// Verify compares plaintext against encoded. A mismatch is (false, nil). Plaintexts over
// [BcryptMaxBytes] never match, since Hash refuses them.
func (b *Bcrypt) Verify(plaintext, encoded string) (bool, error) {
	if len(plaintext) > BcryptMaxBytes {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// NeedsUpgrade reports whether encoded was produced at a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encoded string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	return cost < b.cost, nil
}
