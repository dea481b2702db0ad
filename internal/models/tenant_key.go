package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"
)

// TenantKey is an API key bound to a tenant. Every cache read and write is
// scoped by the tenant resolved from one of these keys (or a JWT claim);
// failure to scope would be a cross-tenant data leak.
type TenantKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	TenantID   string     `gorm:"not null;index;size:64" json:"tenant_id"`
	Name       string     `gorm:"not null;size:255" json:"name"`
	KeyHash    string     `gorm:"uniqueIndex;not null;size:64" json:"-"`
	KeyPrefix  string     `gorm:"index;size:12" json:"key_prefix"`
	IsActive   bool       `gorm:"default:true;index" json:"is_active"`
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TenantKey) TableName() string {
	return "tenant_keys"
}

// GenerateTenantKey creates a new random tenant API key
func GenerateTenantKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return "rsk_" + base64.URLEncoding.EncodeToString(b)[:43], nil
}

// HashTenantKey returns the SHA-256 hex digest stored in place of the key
func HashTenantKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}

// ExtractKeyPrefix returns the display prefix of a key
func ExtractKeyPrefix(key string) string {
	if len(key) < 12 {
		return key
	}
	return key[:12]
}
