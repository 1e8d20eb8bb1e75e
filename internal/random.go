package internal

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// SigningSecretBytes is the entropy of a generated signing secret before hex encoding.
const SigningSecretBytes = 64

// NewSigningSecret returns SigningSecretBytes random bytes, hex-encoded.
func NewSigningSecret() (string, error) {
	return randomHex(rand.Reader, SigningSecretBytes)
}

func randomHex(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
