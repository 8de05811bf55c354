package domain

import (
	"strings"
	"time"
)

// Key prefixes for records in the expiring key-value store
const (
	StateKeyPrefix   = "oauth:state:"
	CodeKeyPrefix    = "oauth:code:"
	TokenKeyPrefix   = "oauth:token:"
	RefreshKeyPrefix = "oauth:refresh:"
	ClientKeyPrefix  = "oauth:client:"
)

// Record lifetimes
const (
	StateTTL        = 10 * time.Minute
	CodeTTL         = 10 * time.Minute
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	ClientTTL       = 30 * 24 * time.Hour
	ApprovalTTL     = 30 * 24 * time.Hour
)

// UpstreamScope is the scope requested from the upstream identity provider.
const UpstreamScope = "openid email profile"

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// Grant types accepted at the token endpoint
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
)

// ResponseTypeCode is the only supported response_type.
const ResponseTypeCode = "code"

// CodeChallengeMethod is a PKCE transformation
type CodeChallengeMethod string

const (
	CodeChallengePlain CodeChallengeMethod = "plain"
	CodeChallengeS256  CodeChallengeMethod = "S256"
)

// IsValid reports whether the method is supported
func (m CodeChallengeMethod) IsValid() bool {
	return m == CodeChallengePlain || m == CodeChallengeS256
}

// AuthRequest is the client's original authorization request.
// It is persisted at /authorize and restored at /callback.
type AuthRequest struct {
	ClientID            string              `json:"client_id"`
	RedirectURI         string              `json:"redirect_uri"`
	Scope               []string            `json:"scope,omitempty"`
	State               string              `json:"state,omitempty"`
	CodeChallenge       string              `json:"code_challenge,omitempty"`
	CodeChallengeMethod CodeChallengeMethod `json:"code_challenge_method,omitempty"`
}

// Validate checks the fields required before the request can be persisted
func (r *AuthRequest) Validate() error {
	if r.ClientID == "" || r.RedirectURI == "" {
		return ErrInvalidRequest
	}
	if r.CodeChallenge != "" && !r.CodeChallengeMethod.IsValid() {
		return ErrInvalidRequest
	}
	return nil
}

// StateRecord is stored under StateKeyPrefix+state for the duration of the upstream leg.
type StateRecord struct {
	Request AuthRequest `json:"request"`

	// UpstreamVerifier is the broker's own PKCE verifier for the upstream
	// exchange. Empty when the client's challenge was forwarded instead.
	UpstreamVerifier string    `json:"upstream_verifier,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuthorizationCode is a single-use grant issued at /callback.
type AuthorizationCode struct {
	Code                string              `json:"code"`
	ClientID            string              `json:"client_id"`
	RedirectURI         string              `json:"redirect_uri"`
	Scope               []string            `json:"scope,omitempty"`
	UserID              string              `json:"user_id"`
	Email               string              `json:"email,omitempty"`
	Name                string              `json:"name,omitempty"`
	UpstreamAccessToken []byte              `json:"upstream_access_token,omitempty"` // sealed
	CodeChallenge       string              `json:"code_challenge,omitempty"`
	CodeChallengeMethod CodeChallengeMethod `json:"code_challenge_method,omitempty"`
	IssuedAt            time.Time           `json:"issued_at"`
}

// AccessTokenRecord is stored under TokenKeyPrefix+token
type AccessTokenRecord struct {
	Token               string    `json:"token"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"`
	Scope               []string  `json:"scope,omitempty"`
	Email               string    `json:"email,omitempty"`
	Name                string    `json:"name,omitempty"`
	UpstreamAccessToken []byte    `json:"upstream_access_token,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// IsExpired checks if the token has expired
func (r *AccessTokenRecord) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// AuthContext returns the identity the token was issued for
func (r *AccessTokenRecord) AuthContext() *AuthContext {
	return &AuthContext{
		ClientID: r.ClientID,
		UserID:   r.UserID,
		Email:    r.Email,
		Name:     r.Name,
		Scope:    r.Scope,
	}
}

// RefreshTokenRecord is stored under RefreshKeyPrefix+token
type RefreshTokenRecord struct {
	Token               string    `json:"token"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"`
	Scope               []string  `json:"scope,omitempty"`
	Email               string    `json:"email,omitempty"`
	Name                string    `json:"name,omitempty"`
	UpstreamAccessToken []byte    `json:"upstream_access_token,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
}

// TokenPair is the token endpoint's success response
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// UpstreamTokens are the tokens returned by the upstream token endpoint
type UpstreamTokens struct {
	AccessToken string
	IDToken     string
}

// IDTokenClaims are the verified identity claims of an upstream ID token
type IDTokenClaims struct {
	Subject   string
	Email     string
	Name      string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

// ParseScope splits a space-delimited scope string
func ParseScope(s string) []string {
	return strings.Fields(s)
}

// JoinScope joins scopes into the space-delimited wire form
func JoinScope(scopes []string) string {
	return strings.Join(scopes, " ")
}
