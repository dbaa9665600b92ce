// Package auth verifies handshake bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoToken is returned when a handshake carries no bearer token at all.
var ErrNoToken = errors.New("authentication token required")

// Claims are the token claims the gateway cares about. The user identity
// lives in the custom "id" claim, mirroring the portal's session tokens.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the verified result of a handshake token.
type Identity struct {
	UserID string
	Email  string
}

// Verifier validates HMAC-signed bearer tokens against a shared secret
// with required issuer and audience claims.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier creates a token verifier. Issuer and audience are enforced
// when non-empty.
func NewVerifier(secret []byte, issuer, audience string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer, audience: audience}
}

// Verify parses and validates a token, returning the caller's identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid authentication token: %w", err)
	}
	if !token.Valid || claims.ID == "" {
		return nil, errors.New("invalid authentication token")
	}

	return &Identity{UserID: claims.ID, Email: claims.Email}, nil
}

// BearerToken extracts the token from an Authorization header value.
// Returns "" when the header is absent or not a bearer scheme.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
