package services

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// CSRFTokenTTL is how long an approval form stays submittable.
const CSRFTokenTTL = 10 * time.Minute

// CSRFGuard protects the approval form with the double-submit cookie pattern:
// the token is placed both in an HttpOnly cookie and in a hidden form field.
type CSRFGuard struct {
	ttl time.Duration
}

// NewCSRFGuard creates a CSRFGuard
func NewCSRFGuard() *CSRFGuard {
	return &CSRFGuard{ttl: CSRFTokenTTL}
}

// Issue generates a token and the cookie that mirrors it
func (g *CSRFGuard) Issue() (string, domain.Cookie, error) {
	token, err := generateRandomString(32)
	if err != nil {
		return "", domain.Cookie{}, fmt.Errorf("generate csrf token: %w", err)
	}
	return token, domain.Cookie{
		Name:   domain.CSRFCookieName,
		Value:  token,
		MaxAge: int(g.ttl.Seconds()),
	}, nil
}

// Validate checks the submitted form token against the cookie.
// On success it returns a directive clearing the cookie so the token is single use.
func (g *CSRFGuard) Validate(formToken string, cookies domain.Cookies) (domain.Cookie, error) {
	cookieToken, ok := cookies.Get(domain.CSRFCookieName)
	if !ok || cookieToken == "" || formToken == "" {
		return domain.Cookie{}, domain.ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(formToken), []byte(cookieToken)) != 1 {
		return domain.Cookie{}, domain.ErrCSRFMismatch
	}
	return domain.ClearCookie(domain.CSRFCookieName), nil
}
