// Package cache implements the tenant-scoped phase cache fronting every
// expensive generation call.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// PhaseCache stores generation results keyed by (tenant, cache_key, phase)
// with lazy TTL semantics: an expired row reads as a miss but is never
// deleted here. Concurrent writers for the same key race and the last write
// to commit wins; there is no lock and no queue.
type PhaseCache struct {
	store Store
	now   func() time.Time
}

// NewPhaseCache creates a phase cache over the given backing store
func NewPhaseCache(store Store) *PhaseCache {
	return &PhaseCache{store: store, now: time.Now}
}

// Get returns the live entry for (tenant, key, phase), or a miss if the row
// is absent or its TTL has passed. Every lookup is tenant-scoped; an empty
// tenant is rejected outright rather than widened into a cross-tenant read.
func (pc *PhaseCache) Get(ctx context.Context, tenantID, cacheKey, phase string) (*models.ResearchCacheEntry, bool, error) {
	if tenantID == "" {
		return nil, false, fmt.Errorf("phase cache: tenant scope is required")
	}

	entry, err := pc.store.Fetch(ctx, tenantID, cacheKey, phase)
	if err != nil {
		if err == ErrEntryNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("phase cache fetch failed: %w", err)
	}

	if !entry.IsLive(pc.now()) {
		fiberlog.Debugf("PhaseCache: entry %s/%s expired at %s, treating as miss", cacheKey, phase, entry.ExpiresAt.Format(time.RFC3339))
		return nil, false, nil
	}

	return entry, true, nil
}

// Put upserts the entry under (tenant, key, phase) with the caller-supplied
// TTL. The previous row, if any, is overwritten whole.
func (pc *PhaseCache) Put(ctx context.Context, tenantID, cacheKey, phase string, entry *models.ResearchCacheEntry, ttl time.Duration) error {
	if tenantID == "" {
		return fmt.Errorf("phase cache: tenant scope is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("phase cache: ttl must be positive, got %s", ttl)
	}

	entry.TenantID = tenantID
	entry.CacheKey = cacheKey
	entry.Phase = phase
	entry.CreatedAt = pc.now()
	entry.ExpiresAt = entry.CreatedAt.Add(ttl)

	if err := pc.store.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("phase cache upsert failed: %w", err)
	}

	fiberlog.Debugf("PhaseCache: stored %s/%s for tenant %s (expires %s)", cacheKey, phase, tenantID, entry.ExpiresAt.Format(time.RFC3339))
	return nil
}
