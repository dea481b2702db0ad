package cache

import (
	"context"
	"errors"

	"github.com/talentforge/research-engine/internal/models"
)

// ErrEntryNotFound is returned by a Store when no row exists for the
// composite key. Staleness is not the store's concern; the PhaseCache
// applies the expiry check on top.
var ErrEntryNotFound = errors.New("cache entry not found")

// Store is the backing storage for the phase cache: point lookups and
// upserts over the (tenant_id, cache_key, phase) composite key.
type Store interface {
	Fetch(ctx context.Context, tenantID, cacheKey, phase string) (*models.ResearchCacheEntry, error)
	Upsert(ctx context.Context, entry *models.ResearchCacheEntry) error
}
