package upstream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

type jwksFixture struct {
	key     *rsa.PrivateKey
	server  *httptest.Server
	fetches atomic.Int32
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &jwksFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "test-key",
			Algorithm: string(jose.RS256),
			Use:       "sig",
		}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *jwksFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-123",
		"email": "user@example.com",
		"name":  "Test User",
		"aud":   "upstream-client",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func (f *jwksFixture) verifier() *Verifier {
	return NewVerifier(VerifierConfig{
		JWKSURL:  f.server.URL,
		Audience: "upstream-client",
		Cache:    NewJWKSCache(f.server.Client(), time.Hour),
	})
}

func TestVerifier_Valid(t *testing.T) {
	f := newJWKSFixture(t)

	claims, err := f.verifier().Verify(context.Background(), f.sign(t, "test-key", validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, []string{"upstream-client"}, claims.Audience)
}

func TestVerifier_Malformed(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier()

	for _, token := range []string{"", "a.b", "a.b.c.d", "not-base64!.x.y"} {
		_, err := v.Verify(context.Background(), token)
		assert.ErrorIs(t, err, domain.ErrMalformedToken, "token %q", token)
	}
	assert.Equal(t, int32(0), f.fetches.Load(), "segment checks run before the JWKS fetch")
}

func TestVerifier_NonCanonicalSignature(t *testing.T) {
	f := newJWKSFixture(t)
	token := f.sign(t, "test-key", validClaims())

	// A 256-byte signature leaves four unused bits in the last character.
	// Setting the lowest one keeps the decoded bytes but breaks canonical form.
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	last := strings.IndexByte(base64URLAlphabet, sig[len(sig)-1])
	require.GreaterOrEqual(t, last, 0)
	sig[len(sig)-1] = base64URLAlphabet[last|1]
	require.NotEqual(t, parts[2], string(sig))
	parts[2] = string(sig)

	_, err := f.verifier().Verify(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, domain.ErrMalformedToken)
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestVerifier_TamperedPayload(t *testing.T) {
	f := newJWKSFixture(t)
	token := f.sign(t, "test-key", validClaims())

	parts := strings.Split(token, ".")
	forged := validClaims()
	forged["sub"] = "admin"
	payload, err := json.Marshal(forged)
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(payload)

	_, err = f.verifier().Verify(context.Background(), strings.Join(parts, "."))
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerifier_Expired(t *testing.T) {
	f := newJWKSFixture(t)
	claims := validClaims()
	claims["exp"] = time.Now().Add(-time.Minute).Unix()

	_, err := f.verifier().Verify(context.Background(), f.sign(t, "test-key", claims))
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerifier_UnknownKid(t *testing.T) {
	f := newJWKSFixture(t)

	_, err := f.verifier().Verify(context.Background(), f.sign(t, "rotated-away", validClaims()))
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestVerifier_WrongAlgorithm(t *testing.T) {
	f := newJWKSFixture(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString([]byte("shared"))
	require.NoError(t, err)

	_, err = f.verifier().Verify(context.Background(), signed)
	assert.ErrorIs(t, err, domain.ErrSignatureInvalid)
}

func TestVerifier_MissingSubject(t *testing.T) {
	f := newJWKSFixture(t)
	claims := validClaims()
	delete(claims, "sub")

	_, err := f.verifier().Verify(context.Background(), f.sign(t, "test-key", claims))
	assert.ErrorIs(t, err, domain.ErrMalformedToken)
}

func TestVerifier_AudienceMismatch(t *testing.T) {
	f := newJWKSFixture(t)
	claims := validClaims()
	claims["aud"] = "someone-else"

	_, err := f.verifier().Verify(context.Background(), f.sign(t, "test-key", claims))
	assert.Error(t, err)
}

func TestVerifier_Issuer(t *testing.T) {
	f := newJWKSFixture(t)
	v := NewVerifier(VerifierConfig{
		JWKSURL:  f.server.URL,
		Audience: "upstream-client",
		Issuer:   "https://idp.example",
		Cache:    NewJWKSCache(f.server.Client(), time.Hour),
	})

	claims := validClaims()
	claims["iss"] = "https://idp.example"
	got, err := v.Verify(context.Background(), f.sign(t, "test-key", claims))
	require.NoError(t, err)
	assert.Equal(t, "https://idp.example", got.Issuer)

	claims["iss"] = "https://evil.example"
	_, err = v.Verify(context.Background(), f.sign(t, "test-key", claims))
	assert.Error(t, err)

	delete(claims, "iss")
	_, err = v.Verify(context.Background(), f.sign(t, "test-key", claims))
	assert.Error(t, err)
}

func TestVerifier_JWKSUnavailable(t *testing.T) {
	f := newJWKSFixture(t)
	token := f.sign(t, "test-key", validClaims())
	f.server.Close()

	_, err := f.verifier().Verify(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestJWKSCache_CachesByURL(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier()

	for i := 0; i < 3; i++ {
		_, err := v.Verify(context.Background(), f.sign(t, "test-key", validClaims()))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.fetches.Load())
}

func TestJWKSCache_Expiry(t *testing.T) {
	f := newJWKSFixture(t)
	cache := NewJWKSCache(f.server.Client(), time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	_, err := cache.Get(context.Background(), f.server.URL)
	require.NoError(t, err)
	_, err = cache.Get(context.Background(), f.server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.fetches.Load())

	now = now.Add(2 * time.Minute)
	_, err = cache.Get(context.Background(), f.server.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.fetches.Load())
}

func TestJWKSCache_RefreshIsRateLimited(t *testing.T) {
	f := newJWKSFixture(t)
	v := f.verifier()

	// refetches for unknown kids are throttled right after a fetch
	_, _ = v.Verify(context.Background(), f.sign(t, "unknown-1", validClaims()))
	_, _ = v.Verify(context.Background(), f.sign(t, "unknown-2", validClaims()))
	assert.Equal(t, int32(1), f.fetches.Load())
}

func TestJWKSCache_Disabled(t *testing.T) {
	f := newJWKSFixture(t)
	cache := NewJWKSCache(f.server.Client(), 0)

	_, _ = cache.Get(context.Background(), f.server.URL)
	_, _ = cache.Get(context.Background(), f.server.URL)
	assert.Equal(t, int32(2), f.fetches.Load())
}
