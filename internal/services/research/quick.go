// Package research wires the phase cache and the invoker into the
// quick, deep and listings generation flows.
package research

import (
	"context"
	"encoding/json"
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/cache"
	"github.com/talentforge/research-engine/internal/services/cachekey"
	"github.com/talentforge/research-engine/internal/services/invoker"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// listingsPrefix namespaces listings keys away from market research keys
const listingsPrefix = "listings-"

// QuickService runs the synchronous generation paths: quick-phase research
// and competitor listings. A cache hit fully suppresses generation.
type QuickService struct {
	cache    *cache.PhaseCache
	invoker  *invoker.Invoker
	ladders  models.LaddersConfig
	cacheCfg models.ResearchCacheConfig
}

// NewQuickService creates the quick-phase orchestrator
func NewQuickService(phaseCache *cache.PhaseCache, inv *invoker.Invoker, ladders models.LaddersConfig, cacheCfg models.ResearchCacheConfig) *QuickService {
	return &QuickService{
		cache:    phaseCache,
		invoker:  inv,
		ladders:  ladders,
		cacheCfg: cacheCfg,
	}
}

// RunQuick serves a quick-phase request: derive the key, check the cache,
// generate on a miss and store the result. The response always carries the
// cache key so the caller can trigger the deep continuation later.
func (s *QuickService) RunQuick(ctx context.Context, tenantID string, req models.GenerationRequest) (*models.QuickResearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Task == "" {
		req.Task = models.TaskMarketInsightsQuick
	}

	task, ok := SpecFor(req.Task)
	if !ok || task.Phase != models.PhaseQuick {
		return nil, models.NewValidationError("unknown task: "+req.Task, nil)
	}

	key := cachekey.Derive(req)
	requestID := tenantID + "/" + key[:12]

	entry, hit, err := s.cache.Get(ctx, tenantID, key, models.PhaseQuick)
	if err != nil {
		return nil, models.NewInternalError("cache lookup failed", err)
	}
	if hit {
		fiberlog.Infof("[%s] QuickService: cache hit for task %s", requestID, req.Task)
		return &models.QuickResearchResponse{
			Data:                  entry.Results,
			Cached:                true,
			CacheKey:              key,
			DeepResearchAvailable: s.deepAvailable(ctx, tenantID, key),
		}, nil
	}

	fiberlog.Infof("[%s] QuickService: cache miss for task %s, generating", requestID, req.Task)
	result, err := s.invoker.Invoke(ctx, tenantID, req, task, s.ladders.Quick)
	if err != nil {
		return nil, err
	}

	if err := storeResult(ctx, s.cache, tenantID, key, models.PhaseQuick, req, result, s.cacheCfg.QuickTTL()); err != nil {
		return nil, err
	}

	return &models.QuickResearchResponse{
		Data:     result.Data,
		Cached:   false,
		CacheKey: key,
		// Same meaning as on the hit path: a live deep row exists right
		// now. A deep row can outlive its quick sibling, so even a fresh
		// miss has to probe instead of assuming false.
		DeepResearchAvailable: s.deepAvailable(ctx, tenantID, key),
	}, nil
}

// RunListings serves a competitor listings request. Listings live in their
// own namespaced key space with a shorter TTL, since job postings go stale
// faster than market aggregates.
func (s *QuickService) RunListings(ctx context.Context, tenantID string, req models.GenerationRequest) (*models.QuickResearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	req.Task = models.TaskCompetitorListings

	task, _ := SpecFor(models.TaskCompetitorListings)
	key := cachekey.DeriveNamespaced(listingsPrefix, req)
	requestID := tenantID + "/" + key

	entry, hit, err := s.cache.Get(ctx, tenantID, key, models.PhaseListings)
	if err != nil {
		return nil, models.NewInternalError("cache lookup failed", err)
	}
	if hit {
		fiberlog.Infof("[%s] QuickService: listings cache hit", requestID)
		return &models.QuickResearchResponse{Data: entry.Results, Cached: true, CacheKey: key}, nil
	}

	fiberlog.Infof("[%s] QuickService: listings cache miss, generating", requestID)
	result, err := s.invoker.Invoke(ctx, tenantID, req, task, s.ladders.Listings)
	if err != nil {
		return nil, err
	}

	if err := storeResult(ctx, s.cache, tenantID, key, models.PhaseListings, req, result, s.cacheCfg.ListingsTTL()); err != nil {
		return nil, err
	}

	return &models.QuickResearchResponse{Data: result.Data, Cached: false, CacheKey: key}, nil
}

// deepAvailable reports whether a completed deep-phase row already exists
// for the key. Cache read failures degrade to "not available".
func (s *QuickService) deepAvailable(ctx context.Context, tenantID, key string) bool {
	_, hit, err := s.cache.Get(ctx, tenantID, key, models.PhaseDeep)
	if err != nil {
		fiberlog.Warnf("QuickService: deep availability probe failed for %s: %v", key, err)
		return false
	}
	return hit
}

// storeResult encodes a generation result into a cache entry and upserts it
func storeResult(ctx context.Context, pc *cache.PhaseCache, tenantID, key, phase string, req models.GenerationRequest, result *models.GenerationResult, ttl time.Duration) error {
	searchParams, err := json.Marshal(req.Normalized())
	if err != nil {
		return models.NewInternalError("failed to encode search params", err)
	}

	entry := &models.ResearchCacheEntry{
		SearchParams:  searchParams,
		Results:       result.Data,
		ModelUsed:     result.ModelUsed,
		PromptVersion: result.PromptVersion,
	}
	if len(result.Sources) > 0 {
		sources, err := json.Marshal(result.Sources)
		if err != nil {
			return models.NewInternalError("failed to encode sources", err)
		}
		entry.Sources = sources
	}

	if err := pc.Put(ctx, tenantID, key, phase, entry, ttl); err != nil {
		return models.NewInternalError("cache write failed", err)
	}
	return nil
}
