package http

import (
	"net/http"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// setCookies writes domain cookie directives with the attributes __Host-
// cookies require.
func setCookies(w http.ResponseWriter, cookies []domain.Cookie) {
	for _, c := range cookies {
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     "/",
			MaxAge:   c.MaxAge,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// requestCookies collects the request's cookies by name. The first
// occurrence of a name wins.
func requestCookies(r *http.Request) domain.Cookies {
	cookies := domain.Cookies{}
	for _, c := range r.Cookies() {
		if _, seen := cookies[c.Name]; !seen {
			cookies[c.Name] = c.Value
		}
	}
	return cookies
}
