package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// Mock services for testing

type mockBrokerService struct {
	authorizeFn func(ctx context.Context, req driving.AuthorizeRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error)
	approveFn   func(ctx context.Context, req driving.ApproveRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error)
	callbackFn  func(ctx context.Context, req driving.CallbackRequest, cookies domain.Cookies) (*driving.CallbackResult, error)
	tokenFn     func(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error)
	registerFn  func(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error)
}

func (m *mockBrokerService) Authorize(ctx context.Context, req driving.AuthorizeRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
	if m.authorizeFn != nil {
		return m.authorizeFn(ctx, req, cookies)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBrokerService) Approve(ctx context.Context, req driving.ApproveRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, req, cookies)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBrokerService) Callback(ctx context.Context, req driving.CallbackRequest, cookies domain.Cookies) (*driving.CallbackResult, error) {
	if m.callbackFn != nil {
		return m.callbackFn(ctx, req, cookies)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBrokerService) Token(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error) {
	if m.tokenFn != nil {
		return m.tokenFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBrokerService) Register(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, meta)
	}
	return nil, errors.New("not implemented")
}

func (m *mockBrokerService) Metadata() *driving.AuthorizationServerMetadata {
	return &driving.AuthorizationServerMetadata{
		Issuer:        "https://broker.example",
		TokenEndpoint: "https://broker.example/token",
	}
}

func (m *mockBrokerService) ProtectedResourceMetadata() *driving.ProtectedResourceMetadata {
	return &driving.ProtectedResourceMetadata{
		Resource:             "https://broker.example/mcp",
		AuthorizationServers: []string{"https://broker.example"},
	}
}

type mockIntrospector struct {
	introspectFn func(ctx context.Context, token string) (*domain.AuthContext, error)
}

func (m *mockIntrospector) Introspect(ctx context.Context, token string) (*domain.AuthContext, error) {
	if m.introspectFn != nil {
		return m.introspectFn(ctx, token)
	}
	return nil, domain.ErrNotFound
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

func newTestServer(broker driving.BrokerService, introspector driving.TokenIntrospector, resource http.Handler, store Pinger) *Server {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://broker.example"
	cfg.CORSOrigins = []string{"https://app.example"}
	return NewServer(cfg, broker, introspector, resource, store)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeOAuthError(t *testing.T, rr *httptest.ResponseRecorder) driving.OAuthError {
	t.Helper()
	var oauthErr driving.OAuthError
	if err := json.NewDecoder(rr.Body).Decode(&oauthErr); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return oauthErr
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Health endpoint tests

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&mockBrokerService{}, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %s", resp.Status)
	}
	if resp.Version != "dev" {
		t.Errorf("expected version dev, got %s", resp.Version)
	}
	if resp.Timestamp == "" {
		t.Error("expected timestamp")
	}
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name   string
		store  Pinger
		status int
	}{
		{name: "no store", store: nil, status: http.StatusOK},
		{name: "store up", store: &mockPinger{}, status: http.StatusOK},
		{name: "store down", store: &mockPinger{err: errors.New("connection refused")}, status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&mockBrokerService{}, &mockIntrospector{}, nil, tt.store)
			rr := serve(s, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rr.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

// Discovery tests

func TestHandleMetadata(t *testing.T) {
	s := newTestServer(&mockBrokerService{}, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var meta driving.AuthorizationServerMetadata
	if err := json.NewDecoder(rr.Body).Decode(&meta); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if meta.Issuer != "https://broker.example" {
		t.Errorf("unexpected issuer %q", meta.Issuer)
	}
}

func TestHandleProtectedResourceMetadata(t *testing.T) {
	s := newTestServer(&mockBrokerService{}, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var meta driving.ProtectedResourceMetadata
	if err := json.NewDecoder(rr.Body).Decode(&meta); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if meta.Resource != "https://broker.example/mcp" {
		t.Errorf("unexpected resource %q", meta.Resource)
	}
}

// Authorize tests

func TestHandleAuthorize_Redirect(t *testing.T) {
	var got driving.AuthorizeRequest
	var gotCookies domain.Cookies
	broker := &mockBrokerService{
		authorizeFn: func(ctx context.Context, req driving.AuthorizeRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
			got = req
			gotCookies = cookies
			return &driving.AuthorizeResult{
				RedirectURL: "https://idp.example/authorize?state=abc",
				Cookies:     []domain.Cookie{{Name: domain.StateCookieName, Value: "binding", MaxAge: 600}},
			}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/authorize?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fapp.example%2Fcb&scope=read+write&state=xyz&code_challenge=ch&code_challenge_method=S256", nil)
	req.AddCookie(&http.Cookie{Name: domain.ApprovedClientsCookieName, Value: "signed"})
	rr := serve(s, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://idp.example/authorize?state=abc" {
		t.Errorf("unexpected Location %q", loc)
	}

	want := driving.AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            "c1",
		RedirectURI:         "https://app.example/cb",
		Scope:               "read write",
		State:               "xyz",
		CodeChallenge:       "ch",
		CodeChallengeMethod: "S256",
	}
	if got != want {
		t.Errorf("expected request %+v, got %+v", want, got)
	}
	if gotCookies[domain.ApprovedClientsCookieName] != "signed" {
		t.Errorf("expected request cookies to be forwarded, got %v", gotCookies)
	}

	c := findCookie(rr, domain.StateCookieName)
	if c == nil {
		t.Fatal("expected state binding cookie")
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" || c.MaxAge != 600 {
		t.Errorf("unexpected cookie attributes: %+v", c)
	}
}

func TestHandleAuthorize_Dialog(t *testing.T) {
	broker := &mockBrokerService{
		authorizeFn: func(ctx context.Context, req driving.AuthorizeRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
			return &driving.AuthorizeResult{
				Dialog: &driving.ApprovalDialog{
					ClientID:     "c1",
					ClientName:   `<script>alert("x")</script>`,
					RedirectURI:  "https://app.example/cb",
					Scope:        []string{"read", "write"},
					CSRFToken:    "csrf-123",
					EncodedState: "encoded-state",
				},
				Cookies: []domain.Cookie{{Name: domain.CSRFCookieName, Value: "csrf-123", MaxAge: 600}},
			}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/authorize?response_type=code&client_id=c1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html content type, got %q", ct)
	}
	if csp := rr.Header().Get("Content-Security-Policy"); csp != "frame-ancestors 'none'" {
		t.Errorf("unexpected CSP %q", csp)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<script>alert") {
		t.Error("client name must be escaped")
	}
	for _, want := range []string{`name="csrf_token" value="csrf-123"`, `name="state" value="encoded-state"`, "read write", `action="/authorize"`} {
		if !strings.Contains(body, want) {
			t.Errorf("expected body to contain %q", want)
		}
	}
	if findCookie(rr, domain.CSRFCookieName) == nil {
		t.Error("expected CSRF cookie")
	}
}

func TestHandleAuthorize_Error(t *testing.T) {
	broker := &mockBrokerService{
		authorizeFn: func(ctx context.Context, req driving.AuthorizeRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
			return nil, domain.ErrUnsupportedResponseType
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/authorize?response_type=token", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if got := decodeOAuthError(t, rr); got.Code != "unsupported_response_type" {
		t.Errorf("expected unsupported_response_type, got %s", got.Code)
	}
}

func TestHandleApprove(t *testing.T) {
	var got driving.ApproveRequest
	var gotCookies domain.Cookies
	broker := &mockBrokerService{
		approveFn: func(ctx context.Context, req driving.ApproveRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
			got = req
			gotCookies = cookies
			return &driving.AuthorizeResult{
				RedirectURL: "https://idp.example/authorize",
				Cookies: []domain.Cookie{
					domain.ClearCookie(domain.CSRFCookieName),
					{Name: domain.ApprovedClientsCookieName, Value: "signed", MaxAge: 3600},
				},
			}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	form := url.Values{"csrf_token": {"csrf-123"}, "state": {"encoded"}}
	req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: domain.CSRFCookieName, Value: "csrf-123"})
	rr := serve(s, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	if got.CSRFToken != "csrf-123" || got.EncodedState != "encoded" {
		t.Errorf("unexpected approve request %+v", got)
	}
	if gotCookies[domain.CSRFCookieName] != "csrf-123" {
		t.Errorf("expected CSRF cookie to be forwarded")
	}
	if c := findCookie(rr, domain.CSRFCookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected CSRF cookie to be cleared, got %+v", c)
	}
}

func TestHandleApprove_CSRFMismatch(t *testing.T) {
	broker := &mockBrokerService{
		approveFn: func(ctx context.Context, req driving.ApproveRequest, cookies domain.Cookies) (*driving.AuthorizeResult, error) {
			return nil, domain.ErrCSRFMismatch
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/authorize", strings.NewReader("csrf_token=forged"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(s, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if got := decodeOAuthError(t, rr); got.Code != "invalid_request" {
		t.Errorf("expected invalid_request, got %s", got.Code)
	}
}

// Callback tests

func TestHandleCallback(t *testing.T) {
	var got driving.CallbackRequest
	broker := &mockBrokerService{
		callbackFn: func(ctx context.Context, req driving.CallbackRequest, cookies domain.Cookies) (*driving.CallbackResult, error) {
			got = req
			if cookies[domain.StateCookieName] != "binding" {
				t.Errorf("expected binding cookie, got %v", cookies)
			}
			return &driving.CallbackResult{
				RedirectURL: "https://app.example/cb?code=abc&state=xyz",
				Cookies:     []domain.Cookie{domain.ClearCookie(domain.StateCookieName)},
			}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/callback?code=up-code&state=st", nil)
	req.AddCookie(&http.Cookie{Name: domain.StateCookieName, Value: "binding"})
	rr := serve(s, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "https://app.example/cb?code=abc&state=xyz" {
		t.Errorf("unexpected Location %q", loc)
	}
	if got.Code != "up-code" || got.State != "st" {
		t.Errorf("unexpected callback request %+v", got)
	}
	if c := findCookie(rr, domain.StateCookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected binding cookie to be cleared, got %+v", c)
	}
}

func TestHandleCallback_UpstreamDenied(t *testing.T) {
	var got driving.CallbackRequest
	broker := &mockBrokerService{
		callbackFn: func(ctx context.Context, req driving.CallbackRequest, cookies domain.Cookies) (*driving.CallbackResult, error) {
			got = req
			return &driving.CallbackResult{
				Cookies: []domain.Cookie{domain.ClearCookie(domain.StateCookieName)},
			}, domain.ErrAccessDenied
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/callback?state=st&error=access_denied&error_description=nope", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if got.Error != "access_denied" || got.ErrorDescription != "nope" {
		t.Errorf("unexpected callback request %+v", got)
	}
	if e := decodeOAuthError(t, rr); e.Code != "access_denied" {
		t.Errorf("expected access_denied, got %s", e.Code)
	}
	if c := findCookie(rr, domain.StateCookieName); c == nil || c.MaxAge >= 0 {
		t.Errorf("expected binding cookie to be cleared on error, got %+v", c)
	}
}

// Token tests

func TestHandleToken_FormCredentials(t *testing.T) {
	var got driving.TokenRequest
	broker := &mockBrokerService{
		tokenFn: func(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error) {
			got = req
			return &domain.TokenPair{AccessToken: "at", TokenType: domain.TokenTypeBearer, ExpiresIn: 3600, RefreshToken: "rt"}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {"abc"},
		"redirect_uri":  {"https://app.example/cb"},
		"client_id":     {"c1"},
		"client_secret": {"s1"},
		"code_verifier": {"verifier"},
	}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("expected Cache-Control no-store, got %q", cc)
	}
	want := driving.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "c1",
		ClientSecret: "s1",
		Code:         "abc",
		RedirectURI:  "https://app.example/cb",
		CodeVerifier: "verifier",
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	var pair domain.TokenPair
	if err := json.NewDecoder(rr.Body).Decode(&pair); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if pair.AccessToken != "at" || pair.RefreshToken != "rt" || pair.TokenType != "Bearer" {
		t.Errorf("unexpected token pair %+v", pair)
	}
}

func TestHandleToken_BasicAuth(t *testing.T) {
	var got driving.TokenRequest
	broker := &mockBrokerService{
		tokenFn: func(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error) {
			got = req
			return &domain.TokenPair{AccessToken: "at", TokenType: domain.TokenTypeBearer}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("grant_type=refresh_token&refresh_token=rt"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("client%3A1", "se%2Bcret")
	rr := serve(s, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got.ClientID != "client:1" || got.ClientSecret != "se+cret" {
		t.Errorf("expected decoded basic credentials, got %q / %q", got.ClientID, got.ClientSecret)
	}
	if got.RefreshToken != "rt" {
		t.Errorf("expected refresh token rt, got %q", got.RefreshToken)
	}
}

func TestHandleToken_BasicAuthMismatch(t *testing.T) {
	called := false
	broker := &mockBrokerService{
		tokenFn: func(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error) {
			called = true
			return nil, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("grant_type=refresh_token&client_id=other"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("c1", "s1")
	rr := serve(s, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if called {
		t.Error("broker must not be called")
	}
}

func TestHandleToken_Errors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		challenge bool
	}{
		{name: "invalid client", err: domain.ErrInvalidClient, status: http.StatusUnauthorized, code: "invalid_client", challenge: true},
		{name: "invalid grant", err: domain.ErrInvalidGrant, status: http.StatusBadRequest, code: "invalid_grant"},
		{name: "unsupported grant", err: domain.ErrUnsupportedGrantType, status: http.StatusBadRequest, code: "unsupported_grant_type"},
		{name: "missing params", err: domain.ErrInvalidRequest, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "store failure", err: errors.New("redis: connection refused"), status: http.StatusInternalServerError, code: "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := &mockBrokerService{
				tokenFn: func(ctx context.Context, req driving.TokenRequest) (*domain.TokenPair, error) {
					return nil, tt.err
				},
			}
			s := newTestServer(broker, &mockIntrospector{}, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader("grant_type=x"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := serve(s, req)

			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
			got := decodeOAuthError(t, rr)
			if got.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, got.Code)
			}
			if strings.Contains(got.Description, "redis") {
				t.Error("server errors must not leak details")
			}
			if hasChallenge := rr.Header().Get("WWW-Authenticate") != ""; hasChallenge != tt.challenge {
				t.Errorf("expected WWW-Authenticate present=%v", tt.challenge)
			}
		})
	}
}

// Register tests

func TestHandleRegister(t *testing.T) {
	var got domain.ClientMetadata
	broker := &mockBrokerService{
		registerFn: func(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error) {
			got = meta
			return &domain.ClientCredentials{ClientID: "c1", ClientSecret: "s1", ClientMetadata: meta}, nil
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	body, _ := json.Marshal(map[string]any{
		"client_name":   "Test App",
		"redirect_uris": []string{"https://app.example/cb"},
	})
	rr := serve(s, httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body)))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if got.ClientName != "Test App" || len(got.RedirectURIs) != 1 {
		t.Errorf("unexpected metadata %+v", got)
	}
	var creds domain.ClientCredentials
	if err := json.NewDecoder(rr.Body).Decode(&creds); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if creds.ClientID != "c1" || creds.ClientSecret != "s1" {
		t.Errorf("unexpected credentials %+v", creds)
	}
}

func TestHandleRegister_InvalidBody(t *testing.T) {
	s := newTestServer(&mockBrokerService{}, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader("{not json")))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if got := decodeOAuthError(t, rr); got.Code != "invalid_client_metadata" {
		t.Errorf("expected invalid_client_metadata, got %s", got.Code)
	}
}

func TestHandleRegister_InvalidMetadata(t *testing.T) {
	broker := &mockBrokerService{
		registerFn: func(ctx context.Context, meta domain.ClientMetadata) (*domain.ClientCredentials, error) {
			return nil, domain.ErrInvalidClientMetadata
		},
	}
	s := newTestServer(broker, &mockIntrospector{}, nil, nil)

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(`{"client_name":""}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

// Error mapping tests

func TestToOAuthError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "invalid request", err: domain.ErrInvalidRequest, status: 400, code: "invalid_request"},
		{name: "wrapped invalid request", err: errors.Join(errors.New("ctx"), domain.ErrInvalidRequest), status: 400, code: "invalid_request"},
		{name: "session binding missing", err: domain.ErrSessionBindingMissing, status: 400, code: "invalid_request"},
		{name: "session binding mismatch", err: domain.ErrSessionBindingMismatch, status: 400, code: "invalid_request"},
		{name: "csrf", err: domain.ErrCSRFMismatch, status: 400, code: "invalid_request"},
		{name: "expired state", err: domain.ErrInvalidOrExpiredState, status: 400, code: "invalid_grant"},
		{name: "invalid grant", err: domain.ErrInvalidGrant, status: 400, code: "invalid_grant"},
		{name: "invalid client", err: domain.ErrInvalidClient, status: 401, code: "invalid_client"},
		{name: "signature", err: domain.ErrSignatureInvalid, status: 401, code: "invalid_token"},
		{name: "expired token", err: domain.ErrTokenExpired, status: 401, code: "invalid_token"},
		{name: "unknown kid", err: domain.ErrKeyNotFound, status: 401, code: "invalid_token"},
		{name: "malformed token", err: domain.ErrMalformedToken, status: 401, code: "invalid_token"},
		{name: "malformed upstream", err: domain.ErrMalformedUpstreamResponse, status: 400, code: "invalid_grant"},
		{name: "upstream down", err: domain.ErrUpstreamUnavailable, status: 502, code: "temporarily_unavailable"},
		{name: "upstream 401", err: &domain.UpstreamError{Status: 401, Body: "bad code"}, status: 401, code: "upstream_error"},
		{name: "upstream 3xx", err: &domain.UpstreamError{Status: 302}, status: 502, code: "upstream_error"},
		{name: "unknown", err: errors.New("boom"), status: 500, code: "server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, oauthErr := toOAuthError(tt.err)
			if status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, status)
			}
			if oauthErr.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, oauthErr.Code)
			}
		})
	}
}

func TestToOAuthError_UpstreamBody(t *testing.T) {
	_, oauthErr := toOAuthError(&domain.UpstreamError{Status: 400, Body: `{"error":"invalid_grant"}`})
	if !strings.Contains(oauthErr.Description, `{"error":"invalid_grant"}`) {
		t.Errorf("expected upstream body in description, got %q", oauthErr.Description)
	}
}
