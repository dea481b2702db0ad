package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/talentforge/research-engine/internal/models"
)

// MemoryStore is an in-process cache store. Used for single-node deployments
// and tests; semantics match the database store, including keeping expired
// rows around until overwritten.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.ResearchCacheEntry
}

// NewMemoryStore creates an in-memory cache store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.ResearchCacheEntry)}
}

func compositeKey(tenantID, cacheKey, phase string) string {
	return fmt.Sprintf("%s\x00%s\x00%s", tenantID, cacheKey, phase)
}

// Fetch returns the row for the composite key, expired or not
func (s *MemoryStore) Fetch(_ context.Context, tenantID, cacheKey, phase string) (*models.ResearchCacheEntry, error) {
	s.mu.RLock()
	entry, ok := s.entries[compositeKey(tenantID, cacheKey, phase)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrEntryNotFound
	}
	return &entry, nil
}

// Upsert replaces any existing row for the same composite key
func (s *MemoryStore) Upsert(_ context.Context, entry *models.ResearchCacheEntry) error {
	s.mu.Lock()
	s.entries[compositeKey(entry.TenantID, entry.CacheKey, entry.Phase)] = *entry
	s.mu.Unlock()
	return nil
}

// Len returns the number of physical rows, including expired ones
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
