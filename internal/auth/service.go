package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/imec-int/monument-plwd-sub001/internal"
)

// Verifier validates RS256 tokens issued by Auth0.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	audience  string
	leeway    time.Duration
}

// NewVerifier creates a verifier from the auth0 configuration section.
func NewVerifier(cfg internal.Auth0Config) (*Verifier, error) {
	key, err := cfg.GetPublicKey()
	if err != nil {
		return nil, fmt.Errorf("auth0 public key: %w", err)
	}
	return NewVerifierWithKey(key, cfg.IssuerURL(), cfg.Audience, cfg.Leeway), nil
}

func NewVerifierWithKey(key *rsa.PublicKey, issuer, audience string, leeway time.Duration) *Verifier {
	return &Verifier{
		publicKey: key,
		issuer:    issuer,
		audience:  audience,
		leeway:    leeway,
	}
}

// ValidateToken validates a JWT token and returns claims
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrTokenExpired
		}
		return nil, internal.ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.Subject != "" {
		return claims, nil
	}

	return nil, internal.ErrInvalidToken
}
