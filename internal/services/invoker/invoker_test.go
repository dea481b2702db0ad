package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/providers"
)

// scriptedProvider returns canned outcomes per model, in order
type scriptedProvider struct {
	mu      sync.Mutex
	scripts map[string][]outcome
	calls   map[string]int
}

type outcome struct {
	text string
	err  error
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{
		scripts: make(map[string][]outcome),
		calls:   make(map[string]int),
	}
}

func (p *scriptedProvider) script(model string, outcomes ...outcome) {
	p.scripts[model] = outcomes
}

func (p *scriptedProvider) Name() string { return "fake" }

func (p *scriptedProvider) Generate(_ context.Context, params providers.GenerateParams) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.calls[params.Model]
	p.calls[params.Model]++

	script := p.scripts[params.Model]
	if idx >= len(script) {
		return "", fmt.Errorf("unscripted call %d to %s", idx, params.Model)
	}
	return script[idx].text, script[idx].err
}

func (p *scriptedProvider) callCount(model string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[model]
}

type captureRecorder struct {
	mu      sync.Mutex
	records []models.InvocationRecord
}

func (r *captureRecorder) Record(record models.InvocationRecord) {
	r.mu.Lock()
	r.records = append(r.records, record)
	r.mu.Unlock()
}

func testTask() TaskSpec {
	return TaskSpec{
		Name:          "test_task",
		Phase:         models.PhaseQuick,
		PromptVersion: "v1",
		System:        "system",
		MaxTokens:     256,
		BuildPrompt:   func(models.GenerationRequest) string { return "prompt" },
		ParseOutput: func(raw string) (json.RawMessage, []string, error) {
			if !json.Valid([]byte(raw)) {
				return nil, nil, errors.New("not json")
			}
			return json.RawMessage(raw), nil, nil
		},
	}
}

func testLadder(models_ ...string) models.EscalationLadder {
	tiers := make([]models.ModelTier, 0, len(models_))
	for _, m := range models_ {
		tiers = append(tiers, models.ModelTier{
			Provider:    "fake",
			Model:       m,
			MaxAttempts: 3,
			BackoffMs:   1,
			TimeoutMs:   5000,
		})
	}
	return models.EscalationLadder{Tiers: tiers}
}

func newTestInvoker(p *scriptedProvider, recorder UsageRecorder) *Invoker {
	return New(providers.Registry{"fake": p}, nil, recorder)
}

func TestInvokeSuccessFirstTier(t *testing.T) {
	p := newScriptedProvider()
	p.script("small", outcome{text: `{"ok":true}`})

	result, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if result.ModelUsed != "small" {
		t.Errorf("ModelUsed = %s, want small", result.ModelUsed)
	}
	if p.callCount("large") != 0 {
		t.Error("second tier should not have been called")
	}
}

func TestTransientErrorRetriesSameTier(t *testing.T) {
	p := newScriptedProvider()
	p.script("small",
		outcome{err: models.NewRateLimitError("fake", nil)},
		outcome{err: models.NewProviderTimeoutError("fake", nil)},
		outcome{text: `{"ok":true}`},
	)

	result, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if result.ModelUsed != "small" {
		t.Errorf("ModelUsed = %s, want small (retry must stay on the tier)", result.ModelUsed)
	}
	if got := p.callCount("small"); got != 3 {
		t.Errorf("small called %d times, want 3", got)
	}
	if p.callCount("large") != 0 {
		t.Error("transient errors must not escalate")
	}
}

func TestSchemaFailureEscalatesImmediately(t *testing.T) {
	p := newScriptedProvider()
	p.script("small", outcome{text: "not json at all"})
	p.script("large", outcome{text: `{"ok":true}`})

	result, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if result.ModelUsed != "large" {
		t.Errorf("ModelUsed = %s, want large", result.ModelUsed)
	}
	if got := p.callCount("small"); got != 1 {
		t.Errorf("small called %d times, want 1 (schema failure must not retry the tier)", got)
	}
}

func TestTransientExhaustionEscalates(t *testing.T) {
	p := newScriptedProvider()
	p.script("small",
		outcome{err: models.NewRateLimitError("fake", nil)},
		outcome{err: models.NewRateLimitError("fake", nil)},
		outcome{err: models.NewRateLimitError("fake", nil)},
	)
	p.script("large", outcome{text: `{"ok":true}`})

	result, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if result.ModelUsed != "large" {
		t.Errorf("ModelUsed = %s, want large", result.ModelUsed)
	}
	if got := p.callCount("small"); got != 3 {
		t.Errorf("small called %d times, want full attempt budget of 3", got)
	}
}

func TestLadderExhaustion(t *testing.T) {
	p := newScriptedProvider()
	p.script("small", outcome{text: "garbage"})
	p.script("large", outcome{text: "more garbage"})

	_, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err == nil {
		t.Fatal("expected error after every tier failed")
	}

	appErr, ok := models.AsAppError(err)
	if !ok {
		t.Fatalf("error is not an AppError: %v", err)
	}
	if appErr.Type != models.ErrorTypeLadderExhausted {
		t.Errorf("error type = %s, want %s", appErr.Type, models.ErrorTypeLadderExhausted)
	}
}

func TestEmptyLadderRejected(t *testing.T) {
	p := newScriptedProvider()

	_, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), models.EscalationLadder{})
	if err == nil {
		t.Fatal("expected error for empty ladder")
	}
}

func TestUnconfiguredProviderRejected(t *testing.T) {
	p := newScriptedProvider()
	ladder := models.EscalationLadder{Tiers: []models.ModelTier{
		{Provider: "missing", Model: "m"},
	}}

	_, err := newTestInvoker(p, nil).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), ladder)
	if err == nil {
		t.Fatal("expected error for unconfigured provider")
	}
}

func TestPermanentRejectionSkipsRetryBudget(t *testing.T) {
	p := newScriptedProvider()
	p.script("small", outcome{err: errors.New("401 Unauthorized: invalid api key")})
	p.script("large", outcome{text: `{"ok":true}`})
	recorder := &captureRecorder{}

	result, err := newTestInvoker(p, recorder).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if result.ModelUsed != "large" {
		t.Errorf("ModelUsed = %s, want large", result.ModelUsed)
	}
	if got := p.callCount("small"); got != 1 {
		t.Errorf("small called %d times, want 1 (rejection must not burn the retry budget)", got)
	}

	if len(recorder.records) != 2 {
		t.Fatalf("got %d records, want 2", len(recorder.records))
	}
	failed := recorder.records[0]
	if failed.ErrorType != string(models.ErrorTypeProviderRejected) {
		t.Errorf("error type = %s, want provider_rejected", failed.ErrorType)
	}
	if failed.Attempts != 1 {
		t.Errorf("record attempts = %d, want the 1 call actually made", failed.Attempts)
	}
}

func TestRecordedAttemptsMatchCallsMade(t *testing.T) {
	p := newScriptedProvider()
	p.script("small",
		outcome{err: models.NewRateLimitError("fake", nil)},
		outcome{text: `{"ok":true}`},
	)
	recorder := &captureRecorder{}

	_, err := newTestInvoker(p, recorder).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("got %d records, want 1", len(recorder.records))
	}
	if got := recorder.records[0].Attempts; got != 2 {
		t.Errorf("record attempts = %d, want 2 (one transient failure plus the success)", got)
	}
}

func TestRecorderReceivesPerTierRecords(t *testing.T) {
	p := newScriptedProvider()
	p.script("small", outcome{text: "garbage"})
	p.script("large", outcome{text: `{"ok":true}`})
	recorder := &captureRecorder{}

	_, err := newTestInvoker(p, recorder).Invoke(context.Background(), "acme", models.GenerationRequest{Role: "x"}, testTask(), testLadder("small", "large"))
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}

	if len(recorder.records) != 2 {
		t.Fatalf("got %d records, want 2", len(recorder.records))
	}
	if recorder.records[0].Success || recorder.records[0].ErrorType != string(models.ErrorTypeSchemaValidation) {
		t.Errorf("first record = %+v, want schema failure", recorder.records[0])
	}
	if !recorder.records[1].Success || recorder.records[1].Model != "large" {
		t.Errorf("second record = %+v, want success on large", recorder.records[1])
	}
}
