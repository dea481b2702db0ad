package cache

import (
	"context"
	"errors"

	"github.com/talentforge/research-engine/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists cache entries in the relational database. The unique
// index on (tenant_id, cache_key, phase) is the conflict target for upserts.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a database-backed cache store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates the research cache table
func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&models.ResearchCacheEntry{})
}

// Fetch returns the row for the composite key, expired or not
func (s *GormStore) Fetch(ctx context.Context, tenantID, cacheKey, phase string) (*models.ResearchCacheEntry, error) {
	var entry models.ResearchCacheEntry
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND cache_key = ? AND phase = ?", tenantID, cacheKey, phase).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// Upsert writes the entry, replacing any existing row for the same
// composite key. Last write wins.
func (s *GormStore) Upsert(ctx context.Context, entry *models.ResearchCacheEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "cache_key"}, {Name: "phase"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"search_params", "results", "sources", "model_used", "prompt_version", "created_at", "expires_at",
		}),
	}).Create(entry).Error
}

var _ Store = (*GormStore)(nil)
