package services

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// SessionBinder ties a state token to the browser that started the flow.
// The cookie holds only SHA-256(state), so the state itself is never stored client side.
// A callback carrying a state minted for a different browser fails verification
// even though the state exists in the store.
type SessionBinder struct {
	maxAge int
}

// NewSessionBinder creates a SessionBinder whose cookie lives as long as a state record
func NewSessionBinder() *SessionBinder {
	return &SessionBinder{maxAge: int(domain.StateTTL.Seconds())}
}

// Bind returns the cookie binding state to the current browser
func (b *SessionBinder) Bind(state string) domain.Cookie {
	return domain.Cookie{
		Name:   domain.StateCookieName,
		Value:  hashState(state),
		MaxAge: b.maxAge,
	}
}

// Verify checks the callback state against the binding cookie.
// On success it returns a directive clearing the cookie.
func (b *SessionBinder) Verify(state string, cookies domain.Cookies) (domain.Cookie, error) {
	bound, ok := cookies.Get(domain.StateCookieName)
	if !ok || bound == "" {
		return domain.Cookie{}, domain.ErrSessionBindingMissing
	}
	if subtle.ConstantTimeCompare([]byte(hashState(state)), []byte(bound)) != 1 {
		return domain.Cookie{}, domain.ErrSessionBindingMismatch
	}
	return domain.ClearCookie(domain.StateCookieName), nil
}

func hashState(state string) string {
	sum := sha256.Sum256([]byte(state))
	return hex.EncodeToString(sum[:])
}
