package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/swaggo/swag"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// maxRegistrationBody bounds the /register request body.
const maxRegistrationBody = 64 << 10

// HealthResponse represents the health check response
// @Description Health check response
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Version   string `json:"version" example:"1.0.0"`
	Timestamp string `json:"timestamp" example:"2024-01-15T10:00:00Z"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ready"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status and version of the broker
// @Tags         Health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns ready when the key-value store answers a ping
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  StatusResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, StatusResponse{Status: "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ready"})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := swag.ReadDoc()
	if err != nil {
		s.logger.Error("openapi document unavailable", "error", err)
		writeJSON(w, http.StatusNotFound, &driving.OAuthError{Code: "not_found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc))
}

// Discovery endpoints

// handleMetadata godoc
// @Summary      Authorization server metadata
// @Description  RFC 8414 discovery document
// @Tags         Discovery
// @Produce      json
// @Success      200  {object}  driving.AuthorizationServerMetadata
// @Router       /.well-known/oauth-authorization-server [get]
func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, s.broker.Metadata())
}

// handleProtectedResourceMetadata godoc
// @Summary      Protected resource metadata
// @Description  RFC 9728 discovery document for the MCP resource
// @Tags         Discovery
// @Produce      json
// @Success      200  {object}  driving.ProtectedResourceMetadata
// @Router       /.well-known/oauth-protected-resource [get]
func (s *Server) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	writeJSON(w, http.StatusOK, s.broker.ProtectedResourceMetadata())
}

// OAuth endpoints

// handleAuthorize godoc
// @Summary      Start authorization
// @Description  Validates the client's authorization request and redirects to the upstream identity provider, or renders the approval dialog
// @Tags         OAuth
// @Produce      html
// @Param        response_type          query  string  true   "Must be code"
// @Param        client_id              query  string  true   "Client ID"
// @Param        redirect_uri           query  string  true   "Client redirect URI"
// @Param        scope                  query  string  false  "Space separated scopes"
// @Param        state                  query  string  false  "Opaque client state"
// @Param        code_challenge         query  string  false  "PKCE challenge"
// @Param        code_challenge_method  query  string  false  "plain or S256"
// @Success      200  "Approval dialog"
// @Success      302  "Redirect to the upstream provider"
// @Failure      400  {object}  driving.OAuthError
// @Router       /authorize [get]
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
	}

	result, err := s.broker.Authorize(r.Context(), req, requestCookies(r))
	if err != nil {
		writeOAuthError(w, r, s.logger, err)
		return
	}
	s.writeAuthorizeResult(w, r, result)
}

// handleApprove godoc
// @Summary      Approve a client
// @Description  Handles the approval dialog submission and redirects to the upstream identity provider
// @Tags         OAuth
// @Accept       x-www-form-urlencoded
// @Param        csrf_token  formData  string  true  "CSRF token from the dialog"
// @Param        state       formData  string  true  "Encoded authorization request"
// @Success      302  "Redirect to the upstream provider"
// @Failure      400  {object}  driving.OAuthError
// @Router       /authorize [post]
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, r, s.logger, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	req := driving.ApproveRequest{
		CSRFToken:    r.PostForm.Get("csrf_token"),
		EncodedState: r.PostForm.Get("state"),
	}

	result, err := s.broker.Approve(r.Context(), req, requestCookies(r))
	if err != nil {
		writeOAuthError(w, r, s.logger, err)
		return
	}
	s.writeAuthorizeResult(w, r, result)
}

func (s *Server) writeAuthorizeResult(w http.ResponseWriter, r *http.Request, result *driving.AuthorizeResult) {
	setCookies(w, result.Cookies)
	if result.Dialog != nil {
		if err := renderApproval(w, result.Dialog); err != nil {
			s.logger.Error("failed to render approval dialog", "error", err)
			writeOAuthError(w, r, s.logger, err)
		}
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// handleCallback godoc
// @Summary      Upstream callback
// @Description  Completes the upstream leg and redirects back to the client with an authorization code
// @Tags         OAuth
// @Param        code               query  string  false  "Upstream authorization code"
// @Param        state              query  string  true   "State issued at /authorize"
// @Param        error              query  string  false  "Upstream error"
// @Param        error_description  query  string  false  "Upstream error description"
// @Success      302  "Redirect to the client"
// @Failure      400  {object}  driving.OAuthError
// @Failure      401  {object}  driving.OAuthError
// @Failure      502  {object}  driving.OAuthError
// @Router       /callback [get]
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := driving.CallbackRequest{
		Code:             q.Get("code"),
		State:            q.Get("state"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	}

	result, err := s.broker.Callback(r.Context(), req, requestCookies(r))
	if result != nil {
		setCookies(w, result.Cookies)
	}
	if err != nil {
		writeOAuthError(w, r, s.logger, err)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusFound)
}

// handleToken godoc
// @Summary      Token endpoint
// @Description  Redeems an authorization code or refresh token. Client credentials come from the form or HTTP Basic.
// @Tags         OAuth
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        grant_type     formData  string  true   "authorization_code or refresh_token"
// @Param        code           formData  string  false  "Authorization code"
// @Param        redirect_uri   formData  string  false  "Redirect URI used at /authorize"
// @Param        code_verifier  formData  string  false  "PKCE verifier"
// @Param        refresh_token  formData  string  false  "Refresh token"
// @Param        client_id      formData  string  false  "Client ID"
// @Param        client_secret  formData  string  false  "Client secret"
// @Success      200  {object}  domain.TokenPair
// @Failure      400  {object}  driving.OAuthError
// @Failure      401  {object}  driving.OAuthError
// @Router       /token [post]
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, r, s.logger, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}
	form := r.PostForm
	req := driving.TokenRequest{
		GrantType:    form.Get("grant_type"),
		ClientID:     form.Get("client_id"),
		ClientSecret: form.Get("client_secret"),
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
		CodeVerifier: form.Get("code_verifier"),
		RefreshToken: form.Get("refresh_token"),
	}

	if err := applyBasicAuth(r, &req); err != nil {
		writeOAuthError(w, r, s.logger, err)
		return
	}

	pair, err := s.broker.Token(r.Context(), req)
	if err != nil {
		writeOAuthError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, pair)
}

// applyBasicAuth copies client_secret_basic credentials into req.
// Both halves are form-encoded before base64 (RFC 6749 section 2.3.1).
// Credentials in both places must agree.
func applyBasicAuth(r *http.Request, req *driving.TokenRequest) error {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil
	}
	clientID, err := url.QueryUnescape(user)
	if err != nil {
		return fmt.Errorf("%w: malformed basic credentials", domain.ErrInvalidClient)
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return fmt.Errorf("%w: malformed basic credentials", domain.ErrInvalidClient)
	}
	if req.ClientID != "" && req.ClientID != clientID {
		return fmt.Errorf("%w: client_id mismatch between form and basic credentials", domain.ErrInvalidRequest)
	}
	req.ClientID = clientID
	req.ClientSecret = secret
	return nil
}

// handleRegister godoc
// @Summary      Dynamic client registration
// @Description  Registers a client (RFC 7591). The secret is returned once.
// @Tags         OAuth
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ClientMetadata  true  "Client metadata"
// @Success      201      {object}  domain.ClientCredentials
// @Failure      400      {object}  driving.OAuthError
// @Router       /register [post]
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var meta domain.ClientMetadata
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRegistrationBody))
	if err := dec.Decode(&meta); err != nil {
		writeOAuthError(w, r, s.logger, fmt.Errorf("%w: invalid request body", domain.ErrInvalidClientMetadata))
		return
	}

	creds, err := s.broker.Register(r.Context(), meta)
	if err != nil {
		writeOAuthError(w, r, s.logger, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, creds)
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
