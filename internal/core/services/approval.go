package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// ErrEmptyCookieKey is returned when no approval cookie key is configured.
var ErrEmptyCookieKey = errors.New("approval cookie key must not be empty")

// ApprovalCookie remembers which clients the browser has approved.
// Value format: hex(HMAC-SHA256(payload)) "." base64(payload), payload is a JSON array of client ids.
type ApprovalCookie struct {
	key    []byte
	maxAge int
}

// NewApprovalCookie creates an ApprovalCookie signing with key
func NewApprovalCookie(key []byte) (*ApprovalCookie, error) {
	if len(key) == 0 {
		return nil, ErrEmptyCookieKey
	}
	return &ApprovalCookie{key: key, maxAge: int(domain.ApprovalTTL.Seconds())}, nil
}

// ApprovedClients returns the client ids in a validly signed cookie.
// A missing, malformed or tampered cookie yields nil.
func (a *ApprovalCookie) ApprovedClients(cookies domain.Cookies) []string {
	value, ok := cookies.Get(domain.ApprovedClientsCookieName)
	if !ok || value == "" {
		return nil
	}

	sigHex, encoded, found := strings.Cut(value, ".")
	if !found {
		return nil
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return nil
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil
	}
	if !hmac.Equal(sig, a.sign(payload)) {
		return nil
	}

	var clients []string
	if err := json.Unmarshal(payload, &clients); err != nil {
		return nil
	}
	return clients
}

// IsApproved reports whether clientID is in the signed cookie
func (a *ApprovalCookie) IsApproved(cookies domain.Cookies, clientID string) bool {
	for _, c := range a.ApprovedClients(cookies) {
		if c == clientID {
			return true
		}
	}
	return false
}

// Add returns a cookie with clientID appended to the existing approvals
func (a *ApprovalCookie) Add(cookies domain.Cookies, clientID string) (domain.Cookie, error) {
	clients := a.ApprovedClients(cookies)
	for _, c := range clients {
		if c == clientID {
			return a.cookie(clients)
		}
	}
	return a.cookie(append(clients, clientID))
}

func (a *ApprovalCookie) cookie(clients []string) (domain.Cookie, error) {
	payload, err := json.Marshal(clients)
	if err != nil {
		return domain.Cookie{}, fmt.Errorf("marshal approved clients: %w", err)
	}
	value := hex.EncodeToString(a.sign(payload)) + "." + base64.StdEncoding.EncodeToString(payload)
	return domain.Cookie{
		Name:   domain.ApprovedClientsCookieName,
		Value:  value,
		MaxAge: a.maxAge,
	}, nil
}

func (a *ApprovalCookie) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, a.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
