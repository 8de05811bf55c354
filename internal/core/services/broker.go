package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// Ensure Broker implements the driving ports
var (
	_ driving.BrokerService     = (*Broker)(nil)
	_ driving.TokenIntrospector = (*Broker)(nil)
)

// Endpoint paths served by the broker
const (
	AuthorizePath = "/authorize"
	CallbackPath  = "/callback"
	TokenPath     = "/token"
	RegisterPath  = "/register"
	ResourcePath  = "/mcp"
)

// BrokerConfig holds configuration for the Broker.
type BrokerConfig struct {
	// Store holds every timed record: state, codes, tokens and clients.
	Store driven.KVStore

	// Upstream is the identity provider users authenticate with.
	Upstream driven.UpstreamProvider

	// Verifier checks upstream ID tokens.
	Verifier driven.IDTokenVerifier

	// Hasher hashes client secrets.
	Hasher driven.SecretHasher

	// Sealer encrypts upstream access tokens at rest.
	Sealer driven.Sealer

	// CookieKey signs the approved-clients cookie.
	CookieKey []byte

	// BaseURL is the broker's public URL, used as issuer.
	// Example: "https://broker.example.com"
	BaseURL string

	// ApprovalRequired shows the approval dialog to clients the browser has not approved yet.
	ApprovalRequired bool

	Logger *slog.Logger

	// Now overrides the clock (tests).
	Now func() time.Time
}

// Broker orchestrates the authorization code flow:
//
//	AwaitingAuthorization -> AwaitingUpstreamCallback -> AuthorizationCodeIssued -> TokenIssued
//
// All cross-request state lives in the KVStore; a Broker holds no mutable state.
type Broker struct {
	states    *StateStore
	sessions  *SessionBinder
	csrf      *CSRFGuard
	approvals *ApprovalCookie
	tokens    *TokenService
	registrar *Registrar

	upstream driven.UpstreamProvider
	verifier driven.IDTokenVerifier

	baseURL          string
	approvalRequired bool
	logger           *slog.Logger
}

// NewBroker creates a new Broker.
func NewBroker(cfg BrokerConfig) (*Broker, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	approvals, err := NewApprovalCookie(cfg.CookieKey)
	if err != nil {
		return nil, err
	}

	states := NewStateStore(cfg.Store)
	if cfg.Now != nil {
		states.now = cfg.Now
	}

	return &Broker{
		states:    states,
		sessions:  NewSessionBinder(),
		csrf:      NewCSRFGuard(),
		approvals: approvals,
		tokens: NewTokenService(TokenServiceConfig{
			Store:  cfg.Store,
			Sealer: cfg.Sealer,
			Logger: logger,
			Now:    cfg.Now,
		}),
		registrar: NewRegistrar(RegistrarConfig{
			Store:  cfg.Store,
			Hasher: cfg.Hasher,
			Logger: logger,
			Now:    cfg.Now,
		}),
		upstream:         cfg.Upstream,
		verifier:         cfg.Verifier,
		baseURL:          strings.TrimSuffix(cfg.BaseURL, "/"),
		approvalRequired: cfg.ApprovalRequired,
		logger:           logger,
	}, nil
}

// Authorize validates the client's request and sends the browser upstream,
// or to the approval dialog first when approval is required.
func (b *Broker) Authorize(ctx context.Context, req driving.AuthorizeRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
	if req.ClientID == "" || req.RedirectURI == "" {
		return nil, fmt.Errorf("%w: client_id and redirect_uri are required", domain.ErrInvalidRequest)
	}
	if req.ResponseType != domain.ResponseTypeCode {
		return nil, domain.ErrUnsupportedResponseType
	}

	authReq := domain.AuthRequest{
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               domain.ParseScope(req.Scope),
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: domain.CodeChallengeMethod(req.CodeChallengeMethod),
	}
	if authReq.CodeChallenge != "" && authReq.CodeChallengeMethod == "" {
		authReq.CodeChallengeMethod = domain.CodeChallengePlain
	}

	client, err := b.checkClient(ctx, &authReq)
	if err != nil {
		return nil, err
	}

	if b.approvalRequired && !b.approvals.IsApproved(cookies, authReq.ClientID) {
		return b.approvalDialog(authReq, client)
	}
	return b.redirectUpstream(ctx, authReq)
}

// checkClient validates the request and, for registered clients, the redirect URI.
// Unregistered clients may start a flow; they are rejected at the token endpoint.
func (b *Broker) checkClient(ctx context.Context, req *domain.AuthRequest) (*domain.ClientRegistration, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid authorization request", err)
	}

	client, err := b.registrar.Lookup(ctx, req.ClientID)
	if errors.Is(err, domain.ErrInvalidClient) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !client.HasRedirectURI(req.RedirectURI) {
		return nil, fmt.Errorf("%w: redirect_uri is not registered for this client", domain.ErrInvalidRequest)
	}
	return client, nil
}

func (b *Broker) approvalDialog(req domain.AuthRequest, client *domain.ClientRegistration) (*driving.AuthorizeResult, error) {
	token, cookie, err := b.csrf.Issue()
	if err != nil {
		return nil, err
	}
	encoded, err := encodeAuthRequest(req)
	if err != nil {
		return nil, err
	}

	dialog := &driving.ApprovalDialog{
		ClientID:     req.ClientID,
		ClientName:   req.ClientID,
		RedirectURI:  req.RedirectURI,
		Scope:        req.Scope,
		CSRFToken:    token,
		EncodedState: encoded,
	}
	if client != nil {
		dialog.ClientName = client.ClientName
		dialog.ClientURI = client.ClientURI
		dialog.LogoURI = client.LogoURI
	}

	return &driving.AuthorizeResult{
		Dialog:  dialog,
		Cookies: []domain.Cookie{cookie},
	}, nil
}

// Approve handles the approval form. The CSRF token is checked before the
// submitted request is even decoded.
func (b *Broker) Approve(ctx context.Context, req driving.ApproveRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
	clearCSRF, err := b.csrf.Validate(req.CSRFToken, cookies)
	if err != nil {
		return nil, err
	}

	authReq, err := decodeAuthRequest(req.EncodedState)
	if err != nil {
		return nil, err
	}
	if _, err := b.checkClient(ctx, &authReq); err != nil {
		return nil, err
	}

	approved, err := b.approvals.Add(cookies, authReq.ClientID)
	if err != nil {
		return nil, err
	}

	result, err := b.redirectUpstream(ctx, authReq)
	if err != nil {
		return nil, err
	}
	result.Cookies = append([]domain.Cookie{clearCSRF, approved}, result.Cookies...)
	return result, nil
}

// redirectUpstream persists the request under a new state, binds the state to
// the browser and builds the upstream authorization URL.
func (b *Broker) redirectUpstream(ctx context.Context, req domain.AuthRequest) (*driving.AuthorizeResult, error) {
	challenge, method := req.CodeChallenge, req.CodeChallengeMethod
	var verifier string
	if challenge == "" {
		verifier = oauth2.GenerateVerifier()
		challenge = oauth2.S256ChallengeFromVerifier(verifier)
		method = domain.CodeChallengeS256
	}

	state, err := b.states.CreateState(ctx, req, verifier)
	if err != nil {
		return nil, err
	}

	b.logger.Debug("authorization started", "client_id", req.ClientID)

	return &driving.AuthorizeResult{
		RedirectURL: b.upstream.AuthCodeURL(state, challenge, method),
		Cookies:     []domain.Cookie{b.sessions.Bind(state)},
	}, nil
}

// Callback completes the upstream leg. Checks run in a fixed order: session
// binding, state consumption, upstream error, code exchange, ID token verification.
// The state record is consumed before anything that can fail upstream, so it
// cannot be replayed. Once the binding cookie verifies, the result carries the
// cookie clear even when an error is returned.
func (b *Broker) Callback(ctx context.Context, req driving.CallbackRequest, cookies domain.Cookies) (*driving.CallbackResult, error) {
	if req.State == "" {
		return nil, fmt.Errorf("%w: missing state", domain.ErrInvalidRequest)
	}

	clearBinding, err := b.sessions.Verify(req.State, cookies)
	if err != nil {
		return nil, err
	}
	result := &driving.CallbackResult{Cookies: []domain.Cookie{clearBinding}}

	record, err := b.states.ConsumeState(ctx, req.State)
	if err != nil {
		return result, err
	}

	if req.Error != "" {
		desc := req.ErrorDescription
		if desc == "" {
			desc = req.Error
		}
		return result, fmt.Errorf("%w: %s", domain.ErrAccessDenied, desc)
	}
	if req.Code == "" {
		return result, fmt.Errorf("%w: missing code", domain.ErrInvalidRequest)
	}

	upstreamTokens, err := b.upstream.Exchange(ctx, req.Code, req.State, record.UpstreamVerifier)
	if err != nil {
		return result, err
	}

	claims, err := b.verifier.Verify(ctx, upstreamTokens.IDToken)
	if err != nil {
		return result, err
	}

	code, err := b.tokens.Issue(ctx, record.Request, claims, upstreamTokens.AccessToken)
	if err != nil {
		return result, err
	}

	b.logger.Info("authorization code issued",
		"client_id", record.Request.ClientID,
		"user_id", claims.Subject,
	)

	result.RedirectURL, err = clientRedirectURL(record.Request.RedirectURI, code, record.Request.State)
	if err != nil {
		return result, err
	}
	return result, nil
}

// Token redeems an authorization code or a refresh token.
func (b *Broker) Token(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error) {
	switch req.GrantType {
	case domain.GrantTypeAuthorizationCode:
		if req.ClientID == "" || req.ClientSecret == "" || req.Code == "" || req.RedirectURI == "" {
			return nil, fmt.Errorf("%w: client_id, client_secret, code and redirect_uri are required", domain.ErrInvalidRequest)
		}
		if _, err := b.registrar.Authenticate(ctx, req.ClientID, req.ClientSecret); err != nil {
			return nil, err
		}
		return b.tokens.Redeem(ctx, req.Code, req.ClientID, req.RedirectURI, req.CodeVerifier)

	case domain.GrantTypeRefreshToken:
		if req.ClientID == "" || req.ClientSecret == "" || req.RefreshToken == "" {
			return nil, fmt.Errorf("%w: client_id, client_secret and refresh_token are required", domain.ErrInvalidRequest)
		}
		if _, err := b.registrar.Authenticate(ctx, req.ClientID, req.ClientSecret); err != nil {
			return nil, err
		}
		return b.tokens.Refresh(ctx, req.RefreshToken, req.ClientID)

	case "":
		return nil, fmt.Errorf("%w: missing grant_type", domain.ErrInvalidRequest)

	default:
		return nil, domain.ErrUnsupportedGrantType
	}
}

// Register delegates to the Registrar.
func (b *Broker) Register(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error) {
	return b.registrar.Register(ctx, meta)
}

// Introspect delegates to the TokenService.
func (b *Broker) Introspect(ctx context.Context, token string) (*domain.AuthContext, error) {
	return b.tokens.Introspect(ctx, token)
}

// Metadata returns the authorization server discovery document.
func (b *Broker) Metadata() *driving.AuthorizationServerMetadata {
	return &driving.AuthorizationServerMetadata{
		Issuer:                            b.baseURL,
		AuthorizationEndpoint:             b.baseURL + AuthorizePath,
		TokenEndpoint:                     b.baseURL + TokenPath,
		RegistrationEndpoint:              b.baseURL + RegisterPath,
		ResponseTypesSupported:            []string{domain.ResponseTypeCode},
		GrantTypesSupported:               []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		CodeChallengeMethodsSupported:     []string{string(domain.CodeChallengePlain), string(domain.CodeChallengeS256)},
		TokenEndpointAuthMethodsSupported: []string{domain.AuthMethodClientSecretPost, domain.AuthMethodClientSecretBasic},
		ScopesSupported:                   domain.ParseScope(domain.UpstreamScope),
	}
}

// ProtectedResourceMetadata returns the discovery document of the protected resource.
func (b *Broker) ProtectedResourceMetadata() *driving.ProtectedResourceMetadata {
	return &driving.ProtectedResourceMetadata{
		Resource:               b.baseURL + ResourcePath,
		AuthorizationServers:   []string{b.baseURL},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        domain.ParseScope(domain.UpstreamScope),
	}
}

// clientRedirectURL appends code and the client's original state to its redirect URI.
func clientRedirectURL(redirectURI, code, state string) (string, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return "", fmt.Errorf("%w: invalid redirect_uri", domain.ErrInvalidRequest)
	}
	q := u.Query()
	q.Set("code", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func encodeAuthRequest(req domain.AuthRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode auth request: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeAuthRequest(encoded string) (domain.AuthRequest, error) {
	var req domain.AuthRequest
	if encoded == "" {
		return req, fmt.Errorf("%w: missing state in form data", domain.ErrInvalidRequest)
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return req, fmt.Errorf("%w: invalid state data", domain.ErrInvalidRequest)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: invalid state data", domain.ErrInvalidRequest)
	}
	return req, nil
}
