package domain

// Cookie names. The __Host- prefix forces Secure, Path=/ and no Domain attribute.
const (
	StateCookieName           = "__Host-OAUTH_STATE"
	CSRFCookieName            = "__Host-CSRF_TOKEN"
	ApprovedClientsCookieName = "__Host-APPROVED_CLIENTS"
)

// Cookie is a transport-neutral Set-Cookie directive.
// The HTTP adapter always adds HttpOnly, Secure, SameSite=Lax and Path=/.
type Cookie struct {
	Name  string
	Value string

	// MaxAge in seconds. Negative deletes the cookie.
	MaxAge int
}

// ClearCookie returns a directive that deletes the named cookie
func ClearCookie(name string) Cookie {
	return Cookie{Name: name, MaxAge: -1}
}

// IsClear reports whether the directive deletes the cookie
func (c Cookie) IsClear() bool {
	return c.MaxAge < 0
}

// Cookies holds the cookies sent with a request, by name
type Cookies map[string]string

// Get returns the named cookie value
func (c Cookies) Get(name string) (string, bool) {
	v, ok := c[name]
	return v, ok
}
