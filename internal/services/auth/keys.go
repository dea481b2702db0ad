package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ErrInvalidKey is returned for unknown, revoked or expired tenant keys
var ErrInvalidKey = errors.New("invalid or expired tenant key")

// TenantKeyService manages tenant API keys. Keys are stored hashed; the
// plaintext is shown once at creation and never again.
type TenantKeyService struct {
	db *gorm.DB
}

// NewTenantKeyService creates a tenant key service
func NewTenantKeyService(db *gorm.DB) *TenantKeyService {
	return &TenantKeyService{db: db}
}

func (s *TenantKeyService) AutoMigrate() error {
	return s.db.AutoMigrate(&models.TenantKey{})
}

// CreateKey mints a new key for the tenant and returns the plaintext
func (s *TenantKeyService) CreateKey(ctx context.Context, tenantID, name string, expiresAt *time.Time) (string, *models.TenantKey, error) {
	plaintext, err := models.GenerateTenantKey()
	if err != nil {
		return "", nil, err
	}

	key := &models.TenantKey{
		TenantID:  tenantID,
		Name:      name,
		KeyHash:   models.HashTenantKey(plaintext),
		KeyPrefix: models.ExtractKeyPrefix(plaintext),
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return "", nil, fmt.Errorf("failed to create tenant key: %w", err)
	}

	return plaintext, key, nil
}

// ValidateKey resolves a plaintext key to its tenant. Lookup is by hash, so
// the plaintext never touches the database.
func (s *TenantKeyService) ValidateKey(ctx context.Context, plaintext string) (*models.TenantKey, error) {
	var key models.TenantKey
	err := s.db.WithContext(ctx).
		Where("key_hash = ? AND is_active = ?", models.HashTenantKey(plaintext), true).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, fmt.Errorf("tenant key lookup failed: %w", err)
	}

	if key.ExpiresAt != nil && time.Now().After(*key.ExpiresAt) {
		return nil, ErrInvalidKey
	}

	s.touchLastUsed(key.ID)
	return &key, nil
}

// RevokeKey deactivates a key, scoped to its tenant
func (s *TenantKeyService) RevokeKey(ctx context.Context, tenantID string, keyID uint) error {
	res := s.db.WithContext(ctx).
		Model(&models.TenantKey{}).
		Where("id = ? AND tenant_id = ?", keyID, tenantID).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("failed to revoke tenant key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInvalidKey
	}
	return nil
}

// ListKeys returns the tenant's keys, hashes excluded by the model's
// JSON tags
func (s *TenantKeyService) ListKeys(ctx context.Context, tenantID string) ([]models.TenantKey, error) {
	var keys []models.TenantKey
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant keys: %w", err)
	}
	return keys, nil
}

// touchLastUsed updates the key's last-used timestamp off the hot path
func (s *TenantKeyService) touchLastUsed(keyID uint) {
	go func() {
		now := time.Now()
		if err := s.db.Model(&models.TenantKey{}).Where("id = ?", keyID).Update("last_used_at", now).Error; err != nil {
			fiberlog.Debugf("TenantKeyService: last_used_at update failed for key %d: %v", keyID, err)
		}
	}()
}
