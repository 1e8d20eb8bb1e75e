package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestVerifierDispatchesByFormat(t *testing.T) {
	bc := newTestBcrypt(t, bcrypt.MinCost)
	ar := newTestArgon2(t, Argon2Params{Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	v := NewVerifier(bc, ar)

	bHash, err := v.Hash("bcrypt-primary")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	aHash, err := ar.Hash("argon-legacy")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if ok, err := v.Verify("bcrypt-primary", bHash); err != nil || !ok {
		t.Fatalf("bcrypt verify: ok=%v err=%v", ok, err)
	}
	if ok, err := v.Verify("argon-legacy", aHash); err != nil || !ok {
		t.Fatalf("argon2 verify: ok=%v err=%v", ok, err)
	}

	if up, err := v.NeedsUpgrade(aHash); err != nil || !up {
		t.Fatalf("non-primary hash should need upgrade: up=%v err=%v", up, err)
	}
	if up, err := v.NeedsUpgrade(bHash); err != nil || up {
		t.Fatalf("primary hash should not need upgrade: up=%v err=%v", up, err)
	}

	if _, err := v.Verify("x", "plaintext-in-store"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}

func TestVerifyDummyDoesNotPanic(t *testing.T) {
	v := NewVerifier(newTestBcrypt(t, bcrypt.MinCost))
	v.VerifyDummy("anything")
	v.VerifyDummy("anything-else")
	if v.dummy == "" {
		t.Fatal("expected dummy hash to be initialized")
	}
}
