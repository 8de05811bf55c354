package upstream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

// Ensure Provider implements UpstreamProvider
var _ driven.UpstreamProvider = (*Provider)(nil)

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 1024

// Config holds the upstream OIDC client settings.
type Config struct {
	ClientID     string
	ClientSecret string

	AuthorizationURL string
	TokenURL         string

	// RedirectURL is the broker's own callback URL registered upstream.
	RedirectURL string

	// Timeout bounds each token exchange (default 10s).
	Timeout time.Duration

	// HTTPClient overrides the client used for token exchanges.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Provider talks to the upstream authorization server with x/oauth2.
type Provider struct {
	oauth  *oauth2.Config
	client *http.Client
	logger *slog.Logger
}

// NewProvider creates a Provider.
func NewProvider(cfg Config) *Provider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizationURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      domain.ParseScope(domain.UpstreamScope),
		},
		client: client,
		logger: logger,
	}
}

// AuthCodeURL builds the upstream authorization URL.
func (p *Provider) AuthCodeURL(state, codeChallenge string, method domain.CodeChallengeMethod) string {
	var opts []oauth2.AuthCodeOption
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", string(method)),
		)
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// Exchange redeems an upstream authorization code. Both an access token and
// an ID token must come back.
func (p *Provider) Exchange(ctx context.Context, code, state, verifier string) (*domain.UpstreamTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	opts := []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("state", state)}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := p.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, p.exchangeError(err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return nil, fmt.Errorf("%w: missing id_token", domain.ErrMalformedUpstreamResponse)
	}

	return &domain.UpstreamTokens{
		AccessToken: token.AccessToken,
		IDToken:     idToken,
	}, nil
}

func (p *Provider) exchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := http.StatusBadGateway
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		body := string(retrieveErr.Body)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		p.logger.Warn("upstream token exchange rejected",
			"status", status,
			"error_code", retrieveErr.ErrorCode,
		)
		return &domain.UpstreamError{Status: status, Body: body}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		p.logger.Error("upstream token endpoint unreachable", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	// a 2xx response that did not parse or lacked access_token
	return fmt.Errorf("%w: %v", domain.ErrMalformedUpstreamResponse, err)
}
