package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
	"github.com/custodia-labs/oauth-broker/internal/core/ports/driving"
)

// JSON-RPC error codes used by the bearer guard
const (
	rpcInvalidRequest = -32600
	rpcInternalError  = -32603
)

var accessTokenPattern = regexp.MustCompile(`(?i)^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcErrorResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	Error   rpcError `json:"error"`
	ID      any      `json:"id"`
}

// BearerMiddleware guards the protected resource with broker-issued access tokens.
// Failures are answered as JSON-RPC errors since the resource speaks JSON-RPC.
type BearerMiddleware struct {
	introspector     driving.TokenIntrospector
	resourceMetadata string
	logger           *slog.Logger
}

// NewBearerMiddleware creates a new BearerMiddleware. resourceMetadataURL is
// advertised in WWW-Authenticate challenges.
func NewBearerMiddleware(introspector driving.TokenIntrospector, resourceMetadataURL string, logger *slog.Logger) *BearerMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &BearerMiddleware{
		introspector:     introspector,
		resourceMetadata: resourceMetadataURL,
		logger:           logger,
	}
}

// Handler validates the bearer token and stores the AuthContext on the request
func (m *BearerMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			m.unauthorized(w, "Unauthorized: Missing Authorization header")
			return
		}
		if !strings.HasPrefix(header, "Bearer ") {
			m.unauthorized(w, "Unauthorized: Invalid Authorization header format")
			return
		}

		token := extractBearerToken(r)
		if !accessTokenPattern.MatchString(token) {
			m.unauthorized(w, "Unauthorized: Invalid token format")
			return
		}

		authCtx, err := m.introspector.Introspect(r.Context(), token)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				m.unauthorized(w, "Unauthorized: Token not found or expired")
				return
			}
			m.logger.Error("token introspection failed",
				"request_id", RequestID(r.Context()),
				"error", err,
			)
			writeRPCError(w, http.StatusInternalServerError, rpcInternalError, "Internal error: Invalid token data")
			return
		}

		next.ServeHTTP(w, r.WithContext(domain.WithAuthContext(r.Context(), authCtx)))
	})
}

func (m *BearerMiddleware) unauthorized(w http.ResponseWriter, message string) {
	challenge := `Bearer realm="oauth"`
	if m.resourceMetadata != "" {
		challenge += `, resource_metadata="` + m.resourceMetadata + `"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	writeRPCError(w, http.StatusUnauthorized, rpcInvalidRequest, message)
}

func writeRPCError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpcErrorResponse{
		JSONRPC: "2.0",
		Error:   rpcError{Code: code, Message: message},
		ID:      nil,
	})
}

// extractBearerToken extracts the Bearer token from Authorization header
func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
