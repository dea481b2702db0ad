package research

import (
	"context"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/cache"
	"github.com/talentforge/research-engine/internal/services/cachekey"
)

// PollService answers deep-phase status queries. There is no job table:
// a live deep row means complete, anything else reads as pending, and a
// failed or never-started continuation is indistinguishable from a slow one.
type PollService struct {
	cache *cache.PhaseCache
}

// NewPollService creates the poll resolver
func NewPollService(phaseCache *cache.PhaseCache) *PollService {
	return &PollService{cache: phaseCache}
}

// Poll reports the deep-phase status for a cache key
func (s *PollService) Poll(ctx context.Context, tenantID, cacheKey string) (*models.PollResponse, error) {
	if !cachekey.IsValidKey(cacheKey) {
		return nil, models.NewValidationError("cache_key must be a 64-character hex digest", nil)
	}

	entry, hit, err := s.cache.Get(ctx, tenantID, cacheKey, models.PhaseDeep)
	if err != nil {
		return nil, models.NewInternalError("cache lookup failed", err)
	}
	if !hit {
		return &models.PollResponse{Status: models.ResearchStatusPending}, nil
	}

	return &models.PollResponse{
		Status:  models.ResearchStatusComplete,
		Data:    entry.Results,
		Sources: entry.SourceList(),
	}, nil
}
