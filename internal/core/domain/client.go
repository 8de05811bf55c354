package domain

import (
	"net/url"
	"time"
)

// Token endpoint authentication methods
const (
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodClientSecretBasic = "client_secret_basic"
)

// ClientMetadata is the dynamic registration request body
type ClientMetadata struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	ClientURI               string   `json:"client_uri,omitempty"`
	LogoURI                 string   `json:"logo_uri,omitempty"`
}

// Validate checks that the metadata can be registered
func (m *ClientMetadata) Validate() error {
	if m.ClientName == "" || len(m.RedirectURIs) == 0 {
		return ErrInvalidClientMetadata
	}
	for _, uri := range m.RedirectURIs {
		if !isValidRedirectURI(uri) {
			return ErrInvalidClientMetadata
		}
	}
	return nil
}

// ApplyDefaults fills in the fields a client may omit
func (m *ClientMetadata) ApplyDefaults() {
	if len(m.GrantTypes) == 0 {
		m.GrantTypes = []string{GrantTypeAuthorizationCode, GrantTypeRefreshToken}
	}
	if len(m.ResponseTypes) == 0 {
		m.ResponseTypes = []string{ResponseTypeCode}
	}
	if m.TokenEndpointAuthMethod == "" {
		m.TokenEndpointAuthMethod = AuthMethodClientSecretPost
	}
}

// isValidRedirectURI accepts absolute http or https URLs with a host and no fragment.
func isValidRedirectURI(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Fragment != "" || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// ClientRegistration is stored under ClientKeyPrefix+clientID
type ClientRegistration struct {
	ClientID         string `json:"client_id"`
	ClientSecretHash string `json:"client_secret_hash"`
	ClientMetadata
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI
func (c *ClientRegistration) HasRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}

// ClientCredentials is returned once, at registration
type ClientCredentials struct {
	ClientID              string `json:"client_id"`
	ClientSecret          string `json:"client_secret"`
	ClientIDIssuedAt      int64  `json:"client_id_issued_at"`
	ClientSecretExpiresAt int64  `json:"client_secret_expires_at"`
	ClientMetadata
}
