package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

var _ driven.Sealer = (*Sealer)(nil)

// KeySize is the TOKEN_ENCRYPTION_KEY length in bytes (AES-256).
const KeySize = 32

// sealLabel prefixes the additional data of every blob. Bump the suffix
// to retire blobs sealed under an older layout.
const sealLabel = "oauth-broker/upstream-token/v1\x00"

var (
	// ErrInvalidKeySize is returned when the key is not KeySize bytes.
	ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")

	// ErrBlobTooShort is returned when a blob cannot hold a nonce and tag.
	ErrBlobTooShort = errors.New("sealed blob is too short")

	// ErrOpenFailed is returned for a wrong key, a wrong binding or a corrupted blob.
	ErrOpenFailed = errors.New("sealed blob does not open")
)

// Sealer encrypts the upstream access tokens carried by codes and broker tokens.
// A blob is nonce || AES-256-GCM ciphertext, authenticated together with the
// grant binding it was sealed for, so it cannot be moved onto another grant.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer from a raw key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewSealerFromHex creates a Sealer from the hex form used in TOKEN_ENCRYPTION_KEY.
func NewSealerFromHex(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode TOKEN_ENCRYPTION_KEY: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext for binding under a fresh random nonce.
func (s *Sealer) Seal(plaintext, binding []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	blob := make([]byte, nonceSize, nonceSize+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(blob); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(blob, blob, plaintext, additionalData(binding)), nil
}

// Open decrypts a blob sealed for the same binding.
func (s *Sealer) Open(blob, binding []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(blob) < nonceSize+s.aead.Overhead() {
		return nil, ErrBlobTooShort
	}
	plaintext, err := s.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], additionalData(binding))
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

func additionalData(binding []byte) []byte {
	return append([]byte(sealLabel), binding...)
}
