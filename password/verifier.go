package password

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
)

// Hasher is one password hashing scheme.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
	NeedsUpgrade(encoded string) (bool, error)
	Handles(encoded string) bool
}

// Verifier hashes with a primary [Hasher] and verifies hashes from any registered one.
type Verifier struct {
	primary Hasher
	all     []Hasher

	dummyOnce sync.Once
	dummy     string
}

// NewVerifier returns a Verifier that hashes with primary and also accepts hashes produced
// by legacy.
func NewVerifier(primary Hasher, legacy ...Hasher) *Verifier {
	all := make([]Hasher, 0, 1+len(legacy))
	all = append(all, primary)
	for _, h := range legacy {
		if h != nil {
			all = append(all, h)
		}
	}
	return &Verifier{primary: primary, all: all}
}

// Hash hashes plaintext with the primary hasher.
func (v *Verifier) Hash(plaintext string) (string, error) {
	return v.primary.Hash(plaintext)
}

// Verify checks plaintext against encoded using the hasher that produced it.
func (v *Verifier) Verify(plaintext, encoded string) (bool, error) {
	h := v.hasherFor(encoded)
	if h == nil {
		return false, ErrUnsupportedHash
	}
	return h.Verify(plaintext, encoded)
}

// NeedsUpgrade reports whether encoded should be replaced by a primary hash. Hashes from a
// non-primary scheme always need an upgrade.
func (v *Verifier) NeedsUpgrade(encoded string) (bool, error) {
	h := v.hasherFor(encoded)
	if h == nil {
		return false, ErrUnsupportedHash
	}
	if h != v.primary {
		return true, nil
	}
	return h.NeedsUpgrade(encoded)
}

// VerifyDummy spends the same work as a real verification against a hash nobody knows.
// It is used for unknown usernames so response timing does not reveal which names exist.
func (v *Verifier) VerifyDummy(plaintext string) {
	v.dummyOnce.Do(func() {
		buf := make([]byte, 32)
		_, _ = rand.Read(buf)
		v.dummy, _ = v.primary.Hash(hex.EncodeToString(buf))
	})
	if v.dummy == "" {
		return
	}
	_, _ = v.primary.Verify(plaintext, v.dummy)
}

func (v *Verifier) hasherFor(encoded string) Hasher {
	for _, h := range v.all {
		if h.Handles(encoded) {
			return h
		}
	}
	return nil
}
