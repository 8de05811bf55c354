package domain

import "context"

// AuthContext contains the authenticated identity for request context
type AuthContext struct {
	ClientID string   `json:"client_id"`
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Scope    []string `json:"scope,omitempty"`

	// UpstreamAccessToken is the upstream provider's access token for this user.
	UpstreamAccessToken string `json:"-"`
}

type authContextKey struct{}

// WithAuthContext returns a copy of ctx carrying auth
func WithAuthContext(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// AuthContextFrom returns the identity stored by WithAuthContext, or nil
func AuthContextFrom(ctx context.Context) *AuthContext {
	if ctx == nil {
		return nil
	}
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}
