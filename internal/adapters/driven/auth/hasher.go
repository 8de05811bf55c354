package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// Ensure Hasher implements SecretHasher
var _ driven.SecretHasher = (*Hasher)(nil)

// Hasher hashes client secrets with bcrypt
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the default bcrypt cost
func NewHasher() *Hasher {
	return &Hasher{cost: bcrypt.DefaultCost}
}

// NewHasherWithCost creates a hasher with a custom bcrypt cost
func NewHasherWithCost(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash generates a bcrypt hash from a plaintext secret
func (h *Hasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// Verify checks if a secret matches a bcrypt hash
func (h *Hasher) Verify(secret, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret))
	return err == nil
}
