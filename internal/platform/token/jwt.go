// Package token validates the JWTs minted by the authentication service.
package token

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"famlink/pkg/domain"
)

// Claims are the claims this service reads from an access token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Validator verifies HS256-signed access tokens.
type Validator struct {
	signingKey []byte
}

// NewValidator constructs a validator for the given signing key.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken parses and verifies tokenString and returns the user it
// identifies.
func (v *Validator) ValidateToken(tokenString string) (domain.UserID, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	})
	if err != nil {
		return domain.UserID{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return domain.UserID{}, fmt.Errorf("invalid token")
	}
	return domain.ParseUserID(claims.UserID)
}
