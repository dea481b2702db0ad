package research

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/cache"
	"github.com/talentforge/research-engine/internal/services/cachekey"
	"github.com/talentforge/research-engine/internal/services/invoker"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// deepJobTimeout bounds one background continuation end to end, including
// every retry and escalation the ladder allows.
const deepJobTimeout = 15 * time.Minute

// DeepService runs the deep-phase continuation. Trigger acknowledges
// immediately after validating the key shape; the generation itself runs on
// a background goroutine whose only durable output is the deep cache row.
type DeepService struct {
	cache    *cache.PhaseCache
	invoker  *invoker.Invoker
	runner   *Runner
	writer   PlaybookWriter
	ladders  models.LaddersConfig
	cacheCfg models.ResearchCacheConfig
}

// NewDeepService creates the deep-phase orchestrator. writer is optional;
// without it, propagation requests are ignored.
func NewDeepService(phaseCache *cache.PhaseCache, inv *invoker.Invoker, runner *Runner, writer PlaybookWriter, ladders models.LaddersConfig, cacheCfg models.ResearchCacheConfig) *DeepService {
	return &DeepService{
		cache:    phaseCache,
		invoker:  inv,
		runner:   runner,
		writer:   writer,
		ladders:  ladders,
		cacheCfg: cacheCfg,
	}
}

// Trigger validates the key and schedules the continuation. Whether a quick
// row actually exists for the key is only discovered inside the job; the
// caller learns the outcome by polling.
func (s *DeepService) Trigger(tenantID string, trigger models.DeepTriggerRequest) (*models.DeepTriggerResponse, error) {
	if !cachekey.IsValidKey(trigger.CacheKey) {
		return nil, models.NewValidationError("cache_key must be a 64-character hex digest", nil)
	}

	scheduled := s.runner.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deepJobTimeout)
		defer cancel()
		s.runDeep(ctx, tenantID, trigger)
	})
	if !scheduled {
		return nil, models.NewInternalError("server is shutting down, deep research not accepted", nil)
	}

	fiberlog.Infof("[%s/%s] DeepService: continuation scheduled", tenantID, trigger.CacheKey[:12])
	return &models.DeepTriggerResponse{Accepted: true, CacheKey: trigger.CacheKey}, nil
}

// runDeep is the background continuation body. Failures terminate the job
// without writing a deep row, which pollers observe as indefinite pending.
func (s *DeepService) runDeep(ctx context.Context, tenantID string, trigger models.DeepTriggerRequest) {
	requestID := tenantID + "/" + trigger.CacheKey[:12]

	quickEntry, hit, err := s.cache.Get(ctx, tenantID, trigger.CacheKey, models.PhaseQuick)
	if err != nil {
		fiberlog.Errorf("[%s] DeepService: quick lookup failed: %v", requestID, err)
		return
	}
	if !hit {
		appErr := models.NewNotFoundError("no live quick entry for key " + trigger.CacheKey)
		fiberlog.Warnf("[%s] DeepService: dropping continuation: %v", requestID, appErr)
		return
	}

	req, err := decodeSearchParams(quickEntry)
	if err != nil {
		// The stored row is unusable as generation input. Log loudly and
		// stop; the quick row stays in place for direct reads.
		appErr := models.NewCacheCorruptionError("stored search params unusable for key "+trigger.CacheKey, err)
		fiberlog.Errorf("[%s] DeepService: %v", requestID, appErr)
		return
	}
	req.Task = models.TaskMarketInsightsDeep

	task, _ := SpecFor(models.TaskMarketInsightsDeep)
	result, err := s.invoker.Invoke(ctx, tenantID, req, task, s.ladders.Deep)
	if err != nil {
		fiberlog.Errorf("[%s] DeepService: generation failed: %v", requestID, err)
		return
	}

	if err := storeResult(ctx, s.cache, tenantID, trigger.CacheKey, models.PhaseDeep, req, result, s.cacheCfg.DeepTTL()); err != nil {
		fiberlog.Errorf("[%s] DeepService: cache write failed: %v", requestID, err)
		return
	}
	fiberlog.Infof("[%s] DeepService: deep research stored (model %s)", requestID, result.ModelUsed)

	// Propagation is best effort: the cache row above is already the source
	// of truth, so a failed write must not fail the job.
	if trigger.PlaybookID != nil && s.writer != nil {
		if err := s.writer.WriteDeepResearch(ctx, tenantID, *trigger.PlaybookID, result); err != nil {
			fiberlog.Warnf("[%s] DeepService: playbook %d propagation failed: %v", requestID, *trigger.PlaybookID, err)
		}
	}
}

// decodeSearchParams recovers the original generation request from a stored
// quick entry and re-validates it.
func decodeSearchParams(entry *models.ResearchCacheEntry) (models.GenerationRequest, error) {
	var req models.GenerationRequest
	if len(entry.SearchParams) == 0 {
		return req, errors.New("entry has no search params")
	}
	if err := json.Unmarshal(entry.SearchParams, &req); err != nil {
		return req, err
	}
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
