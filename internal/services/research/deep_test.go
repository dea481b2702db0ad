package research

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/cache"
	"github.com/talentforge/research-engine/internal/services/invoker"
	"github.com/talentforge/research-engine/internal/services/providers"
)

type fakeWriter struct {
	mu     sync.Mutex
	err    error
	writes []uint
}

func (w *fakeWriter) WriteDeepResearch(_ context.Context, _ string, playbookID uint, _ *models.GenerationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.writes = append(w.writes, playbookID)
	return nil
}

type deepFixture struct {
	quick  *QuickService
	deep   *DeepService
	poll   *PollService
	runner *Runner
	writer *fakeWriter
	cache  *cache.PhaseCache
}

func newDeepFixture(provider *stubProvider) *deepFixture {
	phaseCache := cache.NewPhaseCache(cache.NewMemoryStore())
	inv := invoker.New(providers.Registry{"fake": provider}, nil, nil)
	runner := NewRunner()
	writer := &fakeWriter{}
	cfg := models.ResearchCacheConfig{}

	return &deepFixture{
		quick:  NewQuickService(phaseCache, inv, stubLadders(), cfg),
		deep:   NewDeepService(phaseCache, inv, runner, writer, stubLadders(), cfg),
		poll:   NewPollService(phaseCache),
		runner: runner,
		writer: writer,
		cache:  phaseCache,
	}
}

// seedQuick generates and caches a quick entry, switching the provider
// script to the deep payload afterwards.
func (f *deepFixture) seedQuick(t *testing.T, provider *stubProvider) string {
	t.Helper()
	provider.response = quickInsightsJSON
	resp, err := f.quick.RunQuick(context.Background(), "acme", models.GenerationRequest{Role: "Backend Engineer"})
	if err != nil {
		t.Fatalf("seeding quick entry failed: %v", err)
	}
	provider.response = deepInsightsJSON
	return resp.CacheKey
}

func TestTriggerRejectsMalformedKey(t *testing.T) {
	f := newDeepFixture(&stubProvider{})

	_, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: "not-a-key"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	appErr, ok := models.AsAppError(err)
	if !ok || appErr.Type != models.ErrorTypeValidation {
		t.Errorf("error = %v, want validation error", err)
	}
}

func TestDeepContinuationCompletes(t *testing.T) {
	provider := &stubProvider{}
	f := newDeepFixture(provider)
	key := f.seedQuick(t, provider)

	resp, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key})
	if err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	if !resp.Accepted || resp.CacheKey != key {
		t.Errorf("unexpected trigger response: %+v", resp)
	}

	f.runner.Drain(5 * time.Second)

	poll, err := f.poll.Poll(context.Background(), "acme", key)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if poll.Status != models.ResearchStatusComplete {
		t.Fatalf("status = %s, want complete", poll.Status)
	}

	var decoded DeepMarketInsights
	if err := json.Unmarshal(poll.Data, &decoded); err != nil {
		t.Fatalf("deep data invalid: %v", err)
	}
	if len(decoded.CompetitorAnalysis) == 0 {
		t.Error("deep payload missing competitor analysis")
	}
	if len(poll.Sources) == 0 {
		t.Error("deep sources missing from poll response")
	}
}

func TestDeepWithoutQuickEntryStaysPending(t *testing.T) {
	provider := &stubProvider{response: deepInsightsJSON}
	f := newDeepFixture(provider)

	key := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key}); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}

	f.runner.Drain(5 * time.Second)

	poll, err := f.poll.Poll(context.Background(), "acme", key)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if poll.Status != models.ResearchStatusPending {
		t.Errorf("status = %s, want pending (no quick entry, no deep row)", poll.Status)
	}
	if got := provider.callCount(); got != 0 {
		t.Errorf("provider called %d times, want 0", got)
	}
}

func TestDeepGenerationFailureLeavesPending(t *testing.T) {
	provider := &stubProvider{}
	f := newDeepFixture(provider)
	key := f.seedQuick(t, provider)

	provider.mu.Lock()
	provider.response = "garbage that fails schema validation"
	provider.mu.Unlock()

	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key}); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	f.runner.Drain(5 * time.Second)

	poll, err := f.poll.Poll(context.Background(), "acme", key)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if poll.Status != models.ResearchStatusPending {
		t.Errorf("status = %s, want pending after failed generation", poll.Status)
	}
}

func TestDeepCorruptQuickEntrySkipsGeneration(t *testing.T) {
	provider := &stubProvider{}
	f := newDeepFixture(provider)
	key := f.seedQuick(t, provider)

	// Overwrite the quick row with unusable search params
	corrupt := &models.ResearchCacheEntry{
		SearchParams: json.RawMessage(`{"role":""}`),
		Results:      json.RawMessage(`{}`),
	}
	if err := f.cache.Put(context.Background(), "acme", key, models.PhaseQuick, corrupt, time.Hour); err != nil {
		t.Fatalf("corrupting quick entry failed: %v", err)
	}

	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key}); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	f.runner.Drain(5 * time.Second)

	if got := provider.callCount(); got != 1 {
		t.Errorf("provider called %d times, want 1 (only the quick seed)", got)
	}
	poll, err := f.poll.Poll(context.Background(), "acme", key)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if poll.Status != models.ResearchStatusPending {
		t.Errorf("status = %s, want pending", poll.Status)
	}
}

func TestDeepPropagatesToPlaybook(t *testing.T) {
	provider := &stubProvider{}
	f := newDeepFixture(provider)
	key := f.seedQuick(t, provider)

	playbookID := uint(42)
	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key, PlaybookID: &playbookID}); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	f.runner.Drain(5 * time.Second)

	if len(f.writer.writes) != 1 || f.writer.writes[0] != playbookID {
		t.Errorf("writer received %v, want [42]", f.writer.writes)
	}
}

func TestDeepPropagationFailureIsBestEffort(t *testing.T) {
	provider := &stubProvider{}
	f := newDeepFixture(provider)
	key := f.seedQuick(t, provider)
	f.writer.err = errors.New("playbook table unavailable")

	playbookID := uint(42)
	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key, PlaybookID: &playbookID}); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	f.runner.Drain(5 * time.Second)

	poll, err := f.poll.Poll(context.Background(), "acme", key)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if poll.Status != models.ResearchStatusComplete {
		t.Errorf("status = %s, want complete despite propagation failure", poll.Status)
	}
}

func TestTriggerRejectedWhileDraining(t *testing.T) {
	f := newDeepFixture(&stubProvider{})
	f.runner.Drain(time.Second)

	key := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key}); err == nil {
		t.Fatal("expected trigger to be rejected after drain")
	}
}

func TestPollRejectsMalformedKey(t *testing.T) {
	f := newDeepFixture(&stubProvider{})

	_, err := f.poll.Poll(context.Background(), "acme", "nope")
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPollIsTenantScoped(t *testing.T) {
	provider := &stubProvider{}
	f := newDeepFixture(provider)
	key := f.seedQuick(t, provider)

	if _, err := f.deep.Trigger("acme", models.DeepTriggerRequest{CacheKey: key}); err != nil {
		t.Fatalf("Trigger() error: %v", err)
	}
	f.runner.Drain(5 * time.Second)

	poll, err := f.poll.Poll(context.Background(), "globex", key)
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if poll.Status != models.ResearchStatusPending {
		t.Errorf("other tenant sees status %s, want pending", poll.Status)
	}
}
