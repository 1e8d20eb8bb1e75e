package password

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestBcrypt(t *testing.T, cost int) *Bcrypt {
	t.Helper()
	h, err := NewBcrypt(cost, 8)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	return h
}

func TestBcryptRoundTrip(t *testing.T) {
	h := newTestBcrypt(t, bcrypt.MinCost)

	passwords := []string{"correct horse", "pässwörd-ünïcode", "12345678"}
	for _, pw := range passwords {
		hash, err := h.Hash(pw)
		if err != nil {
			t.Fatalf("Hash(%q) error: %v", pw, err)
		}
		if !h.Handles(hash) {
			t.Fatalf("expected bcrypt prefix, got %q", hash)
		}
		ok, err := h.Verify(pw, hash)
		if err != nil || !ok {
			t.Fatalf("Verify(%q): ok=%v err=%v", pw, ok, err)
		}
		for _, other := range passwords {
			if other == pw {
				continue
			}
			ok, err := h.Verify(other, hash)
			if err != nil {
				t.Fatalf("Verify error: %v", err)
			}
			if ok {
				t.Fatalf("Verify(%q) against hash of %q should fail", other, pw)
			}
		}
	}
}

func TestBcryptSaltsDiffer(t *testing.T) {
	h := newTestBcrypt(t, bcrypt.MinCost)
	a, _ := h.Hash("same-password")
	b, _ := h.Hash("same-password")
	if a == b {
		t.Fatal("expected distinct salts for identical plaintexts")
	}
}

func TestBcryptMinimumLengthCountsRunes(t *testing.T) {
	h := newTestBcrypt(t, bcrypt.MinCost)

	if _, err := h.Hash("seven77"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	// Eight characters, sixteen bytes.
	if _, err := h.Hash("ääääääää"); err != nil {
		t.Fatalf("expected eight-rune password to be accepted, got %v", err)
	}
}

func TestBcryptRejectsOverlongPlaintext(t *testing.T) {
	h := newTestBcrypt(t, bcrypt.MinCost)
	full := strings.Repeat("a", BcryptMaxBytes)

	if _, err := h.Hash(full + "b"); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	hash, err := h.Hash(full)
	if err != nil {
		t.Fatalf("Hash of %d bytes failed: %v", BcryptMaxBytes, err)
	}
	if ok, err := h.Verify(full, hash); err != nil || !ok {
		t.Fatalf("Verify exact: ok=%v err=%v", ok, err)
	}
	if ok, err := h.Verify(full+"DIFFERENT", hash); err != nil || ok {
		t.Fatalf("Verify with shared 72-byte prefix: ok=%v err=%v", ok, err)
	}
}

func TestBcryptNeedsUpgrade(t *testing.T) {
	low := newTestBcrypt(t, bcrypt.MinCost)
	hash, err := low.Hash("upgrade-me")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if up, err := low.NeedsUpgrade(hash); err != nil || up {
		t.Fatalf("same cost: up=%v err=%v", up, err)
	}
	high := newTestBcrypt(t, bcrypt.MinCost+1)
	if up, err := high.NeedsUpgrade(hash); err != nil || !up {
		t.Fatalf("higher cost: up=%v err=%v", up, err)
	}
	if _, err := high.NeedsUpgrade("garbage"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestBcryptMalformedHash(t *testing.T) {
	h := newTestBcrypt(t, bcrypt.MinCost)
	if _, err := h.Verify("whatever1", "$2a$broken"); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestNewBcryptRejectsCost(t *testing.T) {
	if _, err := NewBcrypt(bcrypt.MinCost-1, 8); err == nil {
		t.Fatal("expected cost below minimum to be rejected")
	}
	if _, err := NewBcrypt(bcrypt.MaxCost+1, 8); err == nil {
		t.Fatal("expected cost above maximum to be rejected")
	}
}
