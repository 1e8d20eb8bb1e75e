package internal

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestNewSigningSecret(t *testing.T) {
	a, err := NewSigningSecret()
	if err != nil {
		t.Fatalf("NewSigningSecret: %v", err)
	}
	if len(a) != 2*SigningSecretBytes {
		t.Fatalf("expected %d hex chars, got %d", 2*SigningSecretBytes, len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Fatalf("secret is not hex: %v", err)
	}
	b, _ := NewSigningSecret()
	if a == b {
		t.Fatal("expected distinct secrets")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestRandomHexPropagatesReaderError(t *testing.T) {
	if _, err := randomHex(failingReader{}, 8); err == nil {
		t.Fatal("expected reader error")
	}
	got, err := randomHex(bytes.NewReader([]byte{0xde, 0xad}), 2)
	if err != nil || got != "dead" {
		t.Fatalf("got %q err=%v", got, err)
	}
}
