package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested record was not found or has expired
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates a required parameter is missing or malformed
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnsupportedResponseType indicates response_type is not "code"
	ErrUnsupportedResponseType = errors.New("unsupported response type")

	// ErrUnsupportedGrantType indicates the token endpoint received an unknown grant_type
	ErrUnsupportedGrantType = errors.New("unsupported grant type")

	// ErrAccessDenied indicates the upstream provider refused the authorization
	ErrAccessDenied = errors.New("access denied")

	// ErrCSRFMismatch indicates the form token does not match the CSRF cookie
	ErrCSRFMismatch = errors.New("csrf token mismatch")

	// ErrSessionBindingMissing indicates the state binding cookie is absent
	ErrSessionBindingMissing = errors.New("session binding cookie missing")

	// ErrSessionBindingMismatch indicates the state does not hash to the binding cookie
	ErrSessionBindingMismatch = errors.New("session binding mismatch")

	// ErrInvalidOrExpiredState indicates the state was never issued, already used, or expired
	ErrInvalidOrExpiredState = errors.New("invalid or expired state")

	// ErrInvalidGrant indicates the authorization code or refresh token cannot be redeemed
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrInvalidClient indicates unknown client or wrong client credentials
	ErrInvalidClient = errors.New("invalid client")

	// ErrInvalidClientMetadata indicates a registration request is incomplete or invalid
	ErrInvalidClientMetadata = errors.New("invalid client metadata")

	// ErrUpstreamTokenExchangeFailed indicates the upstream token endpoint returned an error status
	ErrUpstreamTokenExchangeFailed = errors.New("upstream token exchange failed")

	// ErrMalformedUpstreamResponse indicates the upstream token response lacks required tokens
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")

	// ErrUpstreamUnavailable indicates the upstream provider could not be reached
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedToken indicates the ID token is not a well-formed JWT
	ErrMalformedToken = errors.New("malformed token")

	// ErrKeyNotFound indicates no JWKS key matches the token's kid
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrSignatureInvalid indicates the token signature does not verify
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrTokenExpired indicates the token's exp claim is in the past
	ErrTokenExpired = errors.New("token expired")
)

// UpstreamError carries the status and body of a failed upstream token exchange.
// It unwraps to ErrUpstreamTokenExchangeFailed.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrUpstreamTokenExchangeFailed, e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamTokenExchangeFailed
}
