package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token failed: %v", err)
	}
	return signed
}

func TestTenantFromToken(t *testing.T) {
	v := NewJWTValidator("topsecret", "org_id")

	token := signToken(t, "topsecret", jwt.MapClaims{
		"org_id": "acme",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	tenantID, err := v.TenantFromToken(token)
	if err != nil {
		t.Fatalf("TenantFromToken() error: %v", err)
	}
	if tenantID != "acme" {
		t.Errorf("tenantID = %s, want acme", tenantID)
	}
}

func TestTenantFromTokenFailures(t *testing.T) {
	v := NewJWTValidator("topsecret", "org_id")

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "wrong secret",
			token: signToken(t, "othersecret", jwt.MapClaims{"org_id": "acme"}),
		},
		{
			name: "expired",
			token: signToken(t, "topsecret", jwt.MapClaims{
				"org_id": "acme",
				"exp":    time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			name:  "missing tenant claim",
			token: signToken(t, "topsecret", jwt.MapClaims{"sub": "user_1"}),
		},
		{
			name:  "garbage",
			token: "not.a.token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.TenantFromToken(tt.token); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}

func TestValidatorDefaultsClaimName(t *testing.T) {
	v := NewJWTValidator("topsecret", "")

	token := signToken(t, "topsecret", jwt.MapClaims{"org_id": "acme"})
	tenantID, err := v.TenantFromToken(token)
	if err != nil {
		t.Fatalf("TenantFromToken() error: %v", err)
	}
	if tenantID != "acme" {
		t.Errorf("tenantID = %s, want acme", tenantID)
	}
}
