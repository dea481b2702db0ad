package research

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/cache"
	"github.com/talentforge/research-engine/internal/services/cachekey"
	"github.com/talentforge/research-engine/internal/services/invoker"
	"github.com/talentforge/research-engine/internal/services/providers"
)

const quickInsightsJSON = `{
	"salary_range": {"min": 90000, "max": 130000, "currency": "EUR"},
	"in_demand_skills": ["go", "postgres"],
	"talent_supply": "moderate",
	"hiring_difficulty": "high",
	"summary": "competitive market"
}`

const deepInsightsJSON = `{
	"salary_range": {"min": 90000, "max": 130000, "currency": "EUR"},
	"in_demand_skills": ["go", "postgres"],
	"talent_supply": "moderate",
	"hiring_difficulty": "high",
	"summary": "competitive market",
	"competitor_analysis": [{"company": "Globex", "hiring_activity": "expanding"}],
	"sourcing_channels": ["referrals"],
	"sources": ["https://example.com/report"]
}`

const listingsJSON = `{
	"listings": [{"company": "Globex", "title": "Backend Engineer", "location": "Berlin"}],
	"sources": ["https://example.com/jobs"]
}`

// stubProvider answers every call with a fixed payload and counts calls
type stubProvider struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (p *stubProvider) Name() string { return "fake" }

func (p *stubProvider) Generate(context.Context, providers.GenerateParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.response, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func stubLadders() models.LaddersConfig {
	tier := []models.ModelTier{{Provider: "fake", Model: "stub-model", MaxAttempts: 1, BackoffMs: 1, TimeoutMs: 5000}}
	return models.LaddersConfig{
		Quick:    models.EscalationLadder{Tiers: tier},
		Deep:     models.EscalationLadder{Tiers: tier},
		Listings: models.EscalationLadder{Tiers: tier},
	}
}

func newQuickFixture(provider *stubProvider) (*QuickService, *cache.PhaseCache) {
	phaseCache := cache.NewPhaseCache(cache.NewMemoryStore())
	inv := invoker.New(providers.Registry{"fake": provider}, nil, nil)
	return NewQuickService(phaseCache, inv, stubLadders(), models.ResearchCacheConfig{}), phaseCache
}

func TestRunQuickMissGeneratesAndCaches(t *testing.T) {
	provider := &stubProvider{response: quickInsightsJSON}
	svc, _ := newQuickFixture(provider)
	req := models.GenerationRequest{Role: "Backend Engineer", Location: "Berlin"}

	resp, err := svc.RunQuick(context.Background(), "acme", req)
	if err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}
	if resp.Cached {
		t.Error("first call should be a miss")
	}
	if resp.CacheKey != cachekey.Derive(models.GenerationRequest{Task: models.TaskMarketInsightsQuick, Role: "Backend Engineer", Location: "Berlin"}) {
		t.Error("response cache key does not match derived key")
	}
	if resp.DeepResearchAvailable {
		t.Error("no deep row exists yet, deep research must not be reported available")
	}

	var decoded MarketInsights
	if err := json.Unmarshal(resp.Data, &decoded); err != nil {
		t.Fatalf("response data is not valid payload: %v", err)
	}
	if decoded.Summary != "competitive market" {
		t.Errorf("summary = %q", decoded.Summary)
	}
}

func TestRunQuickDeepAvailabilityTracksDeepRow(t *testing.T) {
	provider := &stubProvider{response: quickInsightsJSON}
	svc, phaseCache := newQuickFixture(provider)
	poll := NewPollService(phaseCache)
	req := models.GenerationRequest{Role: "Backend Engineer"}
	ctx := context.Background()

	resp, err := svc.RunQuick(ctx, "acme", req)
	if err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}
	if resp.DeepResearchAvailable {
		t.Error("fresh request reported deep research available")
	}
	status, err := poll.Poll(ctx, "acme", resp.CacheKey)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if status.Status != models.ResearchStatusPending {
		t.Errorf("poll status = %s, want pending to match availability", status.Status)
	}

	// A deep row flips both the poll status and the availability flag.
	deepEntry := &models.ResearchCacheEntry{Results: json.RawMessage(deepInsightsJSON)}
	if err := phaseCache.Put(ctx, "acme", resp.CacheKey, models.PhaseDeep, deepEntry, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	resp, err = svc.RunQuick(ctx, "acme", req)
	if err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}
	if !resp.DeepResearchAvailable {
		t.Error("live deep row not reported as available")
	}
	status, err = poll.Poll(ctx, "acme", resp.CacheKey)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if status.Status != models.ResearchStatusComplete {
		t.Errorf("poll status = %s, want complete", status.Status)
	}
}

func TestRunQuickMissProbesExistingDeepRow(t *testing.T) {
	provider := &stubProvider{response: quickInsightsJSON}
	svc, phaseCache := newQuickFixture(provider)
	ctx := context.Background()
	key := cachekey.Derive(models.GenerationRequest{Task: models.TaskMarketInsightsQuick, Role: "Backend Engineer"})

	// Deep row outlives the quick one, so a quick miss can still have deep
	// data to offer.
	deepEntry := &models.ResearchCacheEntry{Results: json.RawMessage(deepInsightsJSON)}
	if err := phaseCache.Put(ctx, "acme", key, models.PhaseDeep, deepEntry, time.Hour); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	resp, err := svc.RunQuick(ctx, "acme", models.GenerationRequest{Role: "Backend Engineer"})
	if err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}
	if resp.Cached {
		t.Error("quick phase should be a miss")
	}
	if !resp.DeepResearchAvailable {
		t.Error("existing deep row not reported on the miss path")
	}
}

func TestRunQuickHitSuppressesGeneration(t *testing.T) {
	provider := &stubProvider{response: quickInsightsJSON}
	svc, _ := newQuickFixture(provider)
	req := models.GenerationRequest{Role: "Backend Engineer"}
	ctx := context.Background()

	if _, err := svc.RunQuick(ctx, "acme", req); err != nil {
		t.Fatalf("first RunQuick() error: %v", err)
	}

	resp, err := svc.RunQuick(ctx, "acme", req)
	if err != nil {
		t.Fatalf("second RunQuick() error: %v", err)
	}
	if !resp.Cached {
		t.Error("second call should hit the cache")
	}
	if got := provider.callCount(); got != 1 {
		t.Errorf("provider called %d times, want 1 (hit must suppress generation)", got)
	}
}

func TestRunQuickEquivalentRequestsShareEntry(t *testing.T) {
	provider := &stubProvider{response: quickInsightsJSON}
	svc, _ := newQuickFixture(provider)
	ctx := context.Background()

	if _, err := svc.RunQuick(ctx, "acme", models.GenerationRequest{Role: "Backend Engineer", Keywords: []string{"go", "grpc"}}); err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}

	resp, err := svc.RunQuick(ctx, "acme", models.GenerationRequest{Role: "  backend   ENGINEER ", Keywords: []string{"grpc", "go"}})
	if err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}
	if !resp.Cached {
		t.Error("semantically identical request should hit the cache")
	}
}

func TestRunQuickTenantsDoNotShare(t *testing.T) {
	provider := &stubProvider{response: quickInsightsJSON}
	svc, _ := newQuickFixture(provider)
	req := models.GenerationRequest{Role: "Backend Engineer"}
	ctx := context.Background()

	if _, err := svc.RunQuick(ctx, "acme", req); err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}

	resp, err := svc.RunQuick(ctx, "globex", req)
	if err != nil {
		t.Fatalf("RunQuick() error: %v", err)
	}
	if resp.Cached {
		t.Error("second tenant must not see the first tenant's entry")
	}
	if got := provider.callCount(); got != 2 {
		t.Errorf("provider called %d times, want 2", got)
	}
}

func TestRunQuickRejectsMissingRole(t *testing.T) {
	svc, _ := newQuickFixture(&stubProvider{response: quickInsightsJSON})

	_, err := svc.RunQuick(context.Background(), "acme", models.GenerationRequest{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr, ok := models.AsAppError(err)
	if !ok || appErr.Type != models.ErrorTypeValidation {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestRunQuickRejectsUnknownTask(t *testing.T) {
	svc, _ := newQuickFixture(&stubProvider{response: quickInsightsJSON})

	_, err := svc.RunQuick(context.Background(), "acme", models.GenerationRequest{Role: "x", Task: "nonsense"})
	if err == nil {
		t.Fatal("expected validation error for unknown task")
	}
}

func TestRunListingsUsesNamespacedKey(t *testing.T) {
	provider := &stubProvider{response: listingsJSON}
	svc, _ := newQuickFixture(provider)

	resp, err := svc.RunListings(context.Background(), "acme", models.GenerationRequest{Role: "Backend Engineer"})
	if err != nil {
		t.Fatalf("RunListings() error: %v", err)
	}
	if !strings.HasPrefix(resp.CacheKey, "listings-") {
		t.Errorf("cache key %s missing listings namespace", resp.CacheKey)
	}
	if resp.DeepResearchAvailable {
		t.Error("listings never offer a deep continuation")
	}

	again, err := svc.RunListings(context.Background(), "acme", models.GenerationRequest{Role: "Backend Engineer"})
	if err != nil {
		t.Fatalf("second RunListings() error: %v", err)
	}
	if !again.Cached {
		t.Error("second listings call should hit the cache")
	}
}
