package mocks

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driven"
)

var (
	_ driven.UpstreamProvider = (*MockUpstreamProvider)(nil)
	_ driven.IDTokenVerifier  = (*MockIDTokenVerifier)(nil)
)

// MockUpstreamAuthorizeURL is the authorize endpoint used by MockUpstreamProvider
const MockUpstreamAuthorizeURL = "https://upstream.example/authorize"

// ExchangeCall records the arguments of one Exchange call
type ExchangeCall struct {
	Code     string
	State    string
	Verifier string
}

// MockUpstreamProvider records exchanges and delegates to ExchangeFn
type MockUpstreamProvider struct {
	mu    sync.Mutex
	Calls []ExchangeCall

	ClientID    string
	RedirectURI string

	ExchangeFn func(code string) (*domain.UpstreamTokens, error)
}

func (m *MockUpstreamProvider) AuthCodeURL(state, codeChallenge string, method domain.CodeChallengeMethod) string {
	q := url.Values{}
	q.Set("client_id", m.ClientID)
	q.Set("redirect_uri", m.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", domain.UpstreamScope)
	q.Set("state", state)
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", string(method))
	}
	return MockUpstreamAuthorizeURL + "?" + q.Encode()
}

func (m *MockUpstreamProvider) Exchange(ctx context.Context, code, state, verifier string) (*domain.UpstreamTokens, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, ExchangeCall{Code: code, State: state, Verifier: verifier})
	m.mu.Unlock()

	if m.ExchangeFn != nil {
		return m.ExchangeFn(code)
	}
	return &domain.UpstreamTokens{AccessToken: "upstream-access", IDToken: "id-token"}, nil
}

// CallCount returns how many exchanges were attempted
func (m *MockUpstreamProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockIDTokenVerifier delegates to VerifyFn
type MockIDTokenVerifier struct {
	VerifyFn func(idToken string) (*domain.IDTokenClaims, error)
}

func (m *MockIDTokenVerifier) Verify(ctx context.Context, idToken string) (*domain.IDTokenClaims, error) {
	if m.VerifyFn != nil {
		return m.VerifyFn(idToken)
	}
	if idToken == "" {
		return nil, domain.ErrMalformedToken
	}
	return &domain.IDTokenClaims{Subject: "user-123", Email: "user@example.com", Name: "Test User"}, nil
}

// ErrMockFailure is a generic error for failure injection
var ErrMockFailure = errors.New("mock failure")
