package driving

import (
	"context"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// BrokerService drives the authorization code flow between an API client,
// the upstream identity provider and this broker's own token issuance.
//
// Flow: Authorize (or Approve) -> upstream -> Callback -> client -> Token
type BrokerService interface {
	// Authorize validates a client's authorization request and either redirects
	// to the upstream provider or asks for the user's approval first.
	Authorize(ctx context.Context, req AuthorizeRequest, cookies domain.Cookies) (*AuthorizeResult, error)

	// Approve handles the approval dialog submission.
	// The CSRF token is validated before anything else.
	Approve(ctx context.Context, req ApproveRequest, cookies domain.Cookies) (*AuthorizeResult, error)

	// Callback completes the upstream leg and redirects back to the client with a code.
	// A non-nil result may accompany an error; its cookies must still be set.
	Callback(ctx context.Context, req CallbackRequest, cookies domain.Cookies) (*CallbackResult, error)

	// Token redeems an authorization code or refresh token.
	Token(ctx context.Context, req TokenRequest) (*domain.TokenPair, error)

	// Register performs dynamic client registration.
	Register(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error)

	// Metadata returns the authorization server discovery document.
	Metadata() *AuthorizationServerMetadata

	// ProtectedResourceMetadata returns the discovery document of the protected resource.
	ProtectedResourceMetadata() *ProtectedResourceMetadata
}

// TokenIntrospector resolves bearer tokens presented to the protected resource.
type TokenIntrospector interface {
	// Introspect returns the identity bound to an access token.
	// Returns domain.ErrNotFound if the token is unknown or expired.
	Introspect(ctx context.Context, token string) (*domain.AuthContext, error)
}

// AuthorizeRequest holds the /authorize query parameters.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizeResult is either an upstream redirect or an approval dialog.
type AuthorizeResult struct {
	// RedirectURL is set when the browser should go to the upstream provider.
	RedirectURL string

	// Dialog is set when the user must approve the client first.
	Dialog *ApprovalDialog

	// Cookies to set on the response.
	Cookies []domain.Cookie
}

// ApprovalDialog carries what the approval page renders.
type ApprovalDialog struct {
	ClientID     string
	ClientName   string
	ClientURI    string
	LogoURI      string
	RedirectURI  string
	Scope        []string
	CSRFToken    string
	EncodedState string
}

// ApproveRequest holds the approval form fields.
type ApproveRequest struct {
	CSRFToken    string
	EncodedState string
}

// CallbackRequest represents the upstream redirect back to the broker.
type CallbackRequest struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult redirects the browser back to the client.
// RedirectURL is empty when the callback failed.
type CallbackResult struct {
	RedirectURL string
	Cookies     []domain.Cookie
}

// TokenRequest holds the /token form fields.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
}

// AuthorizationServerMetadata is the RFC 8414 discovery document.
// @Description OAuth 2.0 authorization server metadata
type AuthorizationServerMetadata struct {
	Issuer                            string   `json:"issuer" example:"https://broker.example.com"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint" example:"https://broker.example.com/authorize"`
	TokenEndpoint                     string   `json:"token_endpoint" example:"https://broker.example.com/token"`
	RegistrationEndpoint              string   `json:"registration_endpoint" example:"https://broker.example.com/register"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
}

// ProtectedResourceMetadata is the RFC 9728 discovery document.
// @Description OAuth 2.0 protected resource metadata
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource" example:"https://broker.example.com/mcp"`
	AuthorizationServers   []string `json:"authorization_servers"`
	BearerMethodsSupported []string `json:"bearer_methods_supported"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
}

// OAuthError is the wire shape of every OAuth error response.
// @Description OAuth error response
type OAuthError struct {
	Code        string `json:"error" example:"invalid_grant"`
	Description string `json:"error_description,omitempty" example:"invalid grant"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}
