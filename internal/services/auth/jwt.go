package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator extracts the tenant from signed upstream session tokens.
// The upstream application authenticates users; this service only trusts
// the tenant claim inside a token it can verify.
type JWTValidator struct {
	secret      []byte
	tenantClaim string
}

// NewJWTValidator creates a validator for HS256 tokens
func NewJWTValidator(secret, tenantClaim string) *JWTValidator {
	if tenantClaim == "" {
		tenantClaim = "org_id"
	}
	return &JWTValidator{secret: []byte(secret), tenantClaim: tenantClaim}
}

// TenantFromToken verifies the token and returns its tenant claim
func (v *JWTValidator) TenantFromToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}

	tenantID, ok := claims[v.tenantClaim].(string)
	if !ok || tenantID == "" {
		return "", fmt.Errorf("token missing %s claim", v.tenantClaim)
	}
	return tenantID, nil
}
