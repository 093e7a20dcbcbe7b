package auth

import "context"

// AuthContext is the request-scoped authentication result the scope
// filter hands to downstream authorization checks. It is built once per
// request and never shared across requests.
type AuthContext struct {
	PrincipalID string
	LoginID     string
	Kind        ActorKind
	Class       TokenClass
	Authorities []string
	// TenantID is the tenant scope for tenant-scoped kinds; always empty
	// for hub kinds, whose tenant access is resolved via delegation.
	TenantID string
}

// HasAuthority reports whether the context carries the authority.
func (a AuthContext) HasAuthority(key string) bool {
	for _, have := range a.Authorities {
		if have == key {
			return true
		}
	}
	return false
}

type authContextKey struct{}
type tokenContextKey struct{}

// ContextWithAuth attaches the authentication context to the request
// context.
func ContextWithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, &ac)
}

// AuthFromContext extracts the authentication context, reporting false
// for unauthenticated requests.
func AuthFromContext(ctx context.Context) (AuthContext, bool) {
	if ctx == nil {
		return AuthContext{}, false
	}
	v, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok || v == nil {
		return AuthContext{}, false
	}
	return *v, true
}

// ContextWithToken stores the raw bearer token inside the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext returns the bearer token if it was previously attached.
func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(tokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
