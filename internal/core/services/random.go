package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// generateRandomString generates a hex-encoded string of n random bytes.
func generateRandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// newOpaqueToken returns a random v4 UUID string used for state tokens,
// authorization codes, access/refresh tokens and client credentials.
func newOpaqueToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return id.String(), nil
}

// verifyPKCE checks a code verifier against the challenge stored with the code.
func verifyPKCE(challenge string, method domain.CodeChallengeMethod, verifier string) bool {
	if verifier == "" {
		return false
	}
	var computed string
	switch method {
	case domain.CodeChallengeS256:
		computed = oauth2.S256ChallengeFromVerifier(verifier)
	case domain.CodeChallengePlain, "":
		computed = verifier
	default:
		return false
	}
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}
