package driven

import (
	"context"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// UpstreamProvider is the upstream OpenID Connect provider the broker delegates
// user authentication to.
type UpstreamProvider interface {
	// AuthCodeURL builds the upstream authorization URL for a new state.
	// codeChallenge and method are omitted from the URL when empty.
	AuthCodeURL(state, codeChallenge string, method domain.CodeChallengeMethod) string

	// Exchange performs the authorization_code grant against the upstream token endpoint.
	// verifier is the PKCE code verifier, empty when the broker holds none.
	//
	// Errors:
	//   - *domain.UpstreamError when the upstream responds with a non-2xx status
	//   - domain.ErrMalformedUpstreamResponse when access_token or id_token is missing
	//   - domain.ErrUpstreamUnavailable when the upstream cannot be reached
	Exchange(ctx context.Context, code, state, verifier string) (*domain.UpstreamTokens, error)
}

// IDTokenVerifier verifies upstream RS256 ID tokens against the upstream JWKS.
type IDTokenVerifier interface {
	// Verify checks structure, signing key, signature and expiry, in that order,
	// and returns the identity claims.
	Verify(ctx context.Context, idToken string) (*domain.IDTokenClaims, error)
}
