package auth

import "context"

// RequestClaims is the per-request authentication state. A request is
// either Unauthenticated (no bearer token presented, empty project map) or
// Authenticated (verified claims available for the rest of the request).
type RequestClaims struct {
	Authenticated bool
	UserID        string
	Projects      AccessMap
}

// Unauthenticated returns the zero-access state attached to requests that
// present no bearer token.
func Unauthenticated() RequestClaims {
	return RequestClaims{Projects: make(AccessMap)}
}

// FromClaims converts verified token claims to request state.
func FromClaims(c *Claims) RequestClaims {
	projects := c.Projects
	if projects == nil {
		projects = make(AccessMap)
	}
	return RequestClaims{Authenticated: true, UserID: c.UserID, Projects: projects}
}

type claimsContextKey struct{}

// ContextWithRequestClaims attaches the request authentication state.
func ContextWithRequestClaims(ctx context.Context, rc RequestClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, rc)
}

// RequestClaimsFromContext extracts the request authentication state,
// defaulting to Unauthenticated when none was attached.
func RequestClaimsFromContext(ctx context.Context) RequestClaims {
	if ctx == nil {
		return Unauthenticated()
	}
	rc, ok := ctx.Value(claimsContextKey{}).(RequestClaims)
	if !ok {
		return Unauthenticated()
	}
	return rc
}
