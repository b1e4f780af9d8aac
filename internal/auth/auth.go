package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated caller as asserted by the identity provider.
// EmailVerified is the identity provider's claim that Email belongs to
// Subject. Token is the raw bearer token, forwarded on proxied calls.
type Principal struct {
	Subject       string
	Email         string
	EmailVerified bool
	Token         string
}

// Claims represents the Auth0 access token claims this service reads.
type Claims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Scope         string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.Subject != ""
}
