package upstream

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// Ensure Verifier implements IDTokenVerifier
var _ driven.IDTokenVerifier = (*Verifier)(nil)

// idTokenClaims are the claims read from an upstream ID token
type idTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// VerifierConfig holds configuration for the Verifier.
type VerifierConfig struct {
	// JWKSURL is where the upstream publishes its signing keys.
	JWKSURL string

	// Audience, when set, must appear in the token's aud claim.
	Audience string

	// Issuer, when set, must equal the token's iss claim.
	Issuer string

	Cache *JWKSCache

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Verifier checks RS256-signed upstream ID tokens against the upstream JWKS.
type Verifier struct {
	jwksURL string
	cache   *JWKSCache
	parser  *jwt.Parser
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	cache := cfg.Cache
	if cache == nil {
		cache = NewJWKSCache(nil, 0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Verifier{
		jwksURL: cfg.JWKSURL,
		cache:   cache,
		parser:  jwt.NewParser(opts...),
	}
}

// Verify checks segment count, key id, signature and expiry, in that order,
// and returns the identity claims.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*domain.IDTokenClaims, error) {
	if strings.Count(idToken, ".") != 2 {
		return nil, fmt.Errorf("%w: token must have 3 segments", domain.ErrMalformedToken)
	}

	claims := &idTokenClaims{}
	_, err := v.parser.ParseWithClaims(idToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.key(ctx, kid)
	})
	if err != nil {
		return nil, mapJWTError(err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", domain.ErrMalformedToken)
	}

	result := &domain.IDTokenClaims{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// key finds the RSA key for kid, refetching the key set once on a miss to
// pick up rotated keys.
func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	keys, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}
	if key := findRSAKey(keys, kid); key != nil {
		return key, nil
	}

	keys, err = v.cache.Refresh(ctx, v.jwksURL)
	if err != nil {
		return nil, err
	}
	if key := findRSAKey(keys, kid); key != nil {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q", domain.ErrKeyNotFound, kid)
}

func findRSAKey(keys *jose.JSONWebKeySet, kid string) *rsa.PublicKey {
	for _, k := range keys.Key(kid) {
		if pub, ok := k.Key.(*rsa.PublicKey); ok {
			return pub
		}
	}
	return nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrUpstreamUnavailable),
		errors.Is(err, domain.ErrMalformedUpstreamResponse):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
}
