package driven

// SecretHasher hashes client secrets for storage.
type SecretHasher interface {
	// Hash returns a one-way hash of secret
	Hash(secret string) (string, error)

	// Verify checks if secret matches hash
	Verify(secret, hash string) bool
}

// Sealer encrypts values that are stored at rest, such as upstream access tokens.
type Sealer interface {
	// Seal encrypts plaintext into an opaque blob that only opens with the same binding
	Seal(plaintext, binding []byte) ([]byte, error)

	// Open decrypts a blob produced by Seal
	Open(blob, binding []byte) ([]byte, error)
}
