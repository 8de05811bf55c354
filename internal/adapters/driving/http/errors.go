package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// errorMapping maps domain errors to OAuth error codes and HTTP statuses.
// Order matters: the first match wins.
var errorMapping = []struct {
	err    error
	code   string
	status int
}{
	{domain.ErrInvalidRequest, "invalid_request", http.StatusBadRequest},
	{domain.ErrCSRFMismatch, "invalid_request", http.StatusBadRequest},
	{domain.ErrSessionBindingMissing, "invalid_request", http.StatusBadRequest},
	{domain.ErrSessionBindingMismatch, "invalid_request", http.StatusBadRequest},
	{domain.ErrInvalidOrExpiredState, "invalid_grant", http.StatusBadRequest},
	{domain.ErrInvalidGrant, "invalid_grant", http.StatusBadRequest},
	{domain.ErrUnsupportedResponseType, "unsupported_response_type", http.StatusBadRequest},
	{domain.ErrUnsupportedGrantType, "unsupported_grant_type", http.StatusBadRequest},
	{domain.ErrInvalidClientMetadata, "invalid_client_metadata", http.StatusBadRequest},
	{domain.ErrAccessDenied, "access_denied", http.StatusBadRequest},
	{domain.ErrInvalidClient, "invalid_client", http.StatusUnauthorized},
	{domain.ErrSignatureInvalid, "invalid_token", http.StatusUnauthorized},
	{domain.ErrTokenExpired, "invalid_token", http.StatusUnauthorized},
	{domain.ErrKeyNotFound, "invalid_token", http.StatusUnauthorized},
	{domain.ErrMalformedToken, "invalid_token", http.StatusUnauthorized},
	{domain.ErrMalformedUpstreamResponse, "invalid_grant", http.StatusBadRequest},
	{domain.ErrUpstreamUnavailable, "temporarily_unavailable", http.StatusBadGateway},
}

var oauthServerError = &driving.OAuthError{Code: "server_error", Description: "internal server error"}

// toOAuthError converts err into its wire form and HTTP status.
// Unmapped errors become a generic server_error.
func toOAuthError(err error) (int, *driving.OAuthError) {
	var upstreamErr *domain.UpstreamError
	if errors.As(err, &upstreamErr) {
		status := upstreamErr.Status
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		desc := upstreamErr.Error()
		if upstreamErr.Body != "" {
			desc += ": " + upstreamErr.Body
		}
		return status, &driving.OAuthError{Code: "upstream_error", Description: desc}
	}

	for _, m := range errorMapping {
		if errors.Is(err, m.err) {
			return m.status, &driving.OAuthError{Code: m.code, Description: err.Error()}
		}
	}
	return http.StatusInternalServerError, oauthServerError
}

// writeOAuthError writes err as an OAuth JSON error.
// Server errors are logged with full detail; the client sees a generic message.
func writeOAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status, oauthErr := toOAuthError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
	} else {
		logger.Info("request rejected",
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error_code", oauthErr.Code,
			"error", err,
		)
	}
	if oauthErr.Code == "invalid_client" {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, status, oauthErr)
}
