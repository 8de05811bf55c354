package mocks

import (
	"bytes"
	"errors"
	"strings"

	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

var (
	_ driven.SecretHasher = (*MockSecretHasher)(nil)
	_ driven.Sealer       = (*MockSealer)(nil)
)

// MockSecretHasher prefixes secrets instead of hashing.
// NOT secure - only for testing.
type MockSecretHasher struct{}

func (MockSecretHasher) Hash(secret string) (string, error) {
	return "hashed:" + secret, nil
}

func (MockSecretHasher) Verify(secret, hash string) bool {
	return strings.TrimPrefix(hash, "hashed:") == secret && strings.HasPrefix(hash, "hashed:")
}

// MockSealer prefixes plaintext with its binding instead of encrypting.
// NOT secure - only for testing.
type MockSealer struct{}

func sealedPrefix(binding []byte) []byte {
	return append(append([]byte("sealed:"), binding...), '|')
}

func (MockSealer) Seal(plaintext, binding []byte) ([]byte, error) {
	return append(sealedPrefix(binding), plaintext...), nil
}

func (MockSealer) Open(blob, binding []byte) ([]byte, error) {
	prefix := sealedPrefix(binding)
	if !bytes.HasPrefix(blob, prefix) {
		return nil, errors.New("not sealed for this binding")
	}
	return blob[len(prefix):], nil
}
