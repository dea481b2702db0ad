// Package invoker wraps a single generation call in the two-axis failure
// recovery policy: transient faults retry at the same ladder tier with
// backoff, capability faults escalate to the next tier. Collapsing these
// axes into one blind retry loop would send every transient blip to the
// most expensive models, so the distinction is load-bearing.
package invoker

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/circuitbreaker"
	"github.com/talentforge/research-engine/internal/services/providers"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// TaskSpec describes one generation task: how to build its prompt and how
// to validate the structured output a model returns for it.
type TaskSpec struct {
	Name          string
	Phase         string
	PromptVersion string
	System        string
	MaxTokens     int
	BuildPrompt   func(req models.GenerationRequest) string
	// ParseOutput validates the raw model output against the task's output
	// schema, returning the conformant payload and any cited sources. A
	// parse failure means the tier's model cannot produce the schema and
	// triggers escalation.
	ParseOutput func(raw string) (json.RawMessage, []string, error)
}

// UsageRecorder receives one record per tier tried. Implementations must
// never block the invocation path.
type UsageRecorder interface {
	Record(record models.InvocationRecord)
}

// Invoker executes generation tasks against an escalation ladder
type Invoker struct {
	registry providers.Registry
	breakers map[string]*circuitbreaker.CircuitBreaker
	recorder UsageRecorder
}

// New creates an invoker. breakers and recorder are optional.
func New(registry providers.Registry, breakers map[string]*circuitbreaker.CircuitBreaker, recorder UsageRecorder) *Invoker {
	return &Invoker{
		registry: registry,
		breakers: breakers,
		recorder: recorder,
	}
}

// Invoke runs the task against the ladder, starting at the lowest tier.
// It returns a schema-validated result or a classified error; once every
// tier has failed the error is a terminal LadderExhaustedError.
func (inv *Invoker) Invoke(ctx context.Context, tenantID string, req models.GenerationRequest, task TaskSpec, ladder models.EscalationLadder) (*models.GenerationResult, error) {
	if ladder.IsEmpty() {
		return nil, models.NewInternalError("no escalation ladder configured for task "+task.Name, nil)
	}

	requestID := tenantID + "/" + task.Name
	var lastErr *models.AppError

	for tierIdx, tier := range ladder.Tiers {
		provider, ok := inv.registry.Get(tier.Provider)
		if !ok {
			return nil, models.NewInternalError("ladder references unconfigured provider "+tier.Provider, nil)
		}

		if breaker := inv.breakers[tier.Provider]; breaker != nil && !breaker.CanExecute() {
			fiberlog.Warnf("[%s] Invoker: circuit open for %s, skipping tier %d (%s)", requestID, tier.Provider, tierIdx+1, tier.Model)
			lastErr = models.NewCircuitBreakerError(tier.Provider)
			continue
		}

		result, tierErr := inv.runTier(ctx, provider, requestID, tenantID, req, task, tier, tierIdx)
		if tierErr == nil {
			return result, nil
		}
		lastErr = tierErr

		if ctx.Err() != nil {
			// Caller gave up; escalating further would outlive the request.
			return nil, providers.Classify(tier.Provider, ctx.Err())
		}

		if tierIdx < len(ladder.Tiers)-1 {
			next := ladder.Tiers[tierIdx+1]
			fiberlog.Warnf("[%s] Invoker: tier %d (%s/%s) failed with %s, escalating to %s/%s",
				requestID, tierIdx+1, tier.Provider, tier.Model, lastErr.Type, next.Provider, next.Model)
		}
	}

	fiberlog.Errorf("[%s] Invoker: all %d ladder tiers failed: %v", requestID, len(ladder.Tiers), lastErr)
	return nil, models.NewLadderExhaustedError(task.Name, len(ladder.Tiers), lastErr)
}

// runTier executes one ladder tier: up to the tier's attempt budget for
// transient faults, one shot for everything else.
func (inv *Invoker) runTier(ctx context.Context, provider providers.Provider, requestID, tenantID string, req models.GenerationRequest, task TaskSpec, tier models.ModelTier, tierIdx int) (*models.GenerationResult, *models.AppError) {
	params := providers.GenerateParams{
		Model:     tier.Model,
		System:    task.System,
		Prompt:    task.BuildPrompt(req),
		MaxTokens: task.MaxTokens,
	}
	breaker := inv.breakers[tier.Provider]

	var lastErr *models.AppError
	startTime := time.Now()

	// attempt survives the loop so the analytics record reports how many
	// calls were actually made, not the tier's budget.
	var attempt int
	for attempt = 1; attempt <= tier.Attempts(); attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, tier.Timeout())
		raw, err := provider.Generate(callCtx, params)
		cancel()

		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}

			data, sources, parseErr := task.ParseOutput(raw)
			if parseErr != nil {
				// The model answered but the shape is wrong. That is a
				// capability fault, so the next call must use the next
				// tier, never this one again.
				lastErr = models.NewSchemaValidationError(task.Name, "output does not conform to expected shape", parseErr)
				inv.record(tenantID, task, tier, tierIdx, attempt, startTime, lastErr)
				return nil, lastErr
			}

			inv.record(tenantID, task, tier, tierIdx, attempt, startTime, nil)
			fiberlog.Infof("[%s] Invoker: tier %d (%s/%s) succeeded on attempt %d", requestID, tierIdx+1, tier.Provider, tier.Model, attempt)
			return &models.GenerationResult{
				Data:          data,
				Sources:       sources,
				ModelUsed:     tier.Model,
				PromptVersion: task.PromptVersion,
				GeneratedAt:   time.Now().UTC(),
			}, nil
		}

		lastErr = providers.Classify(tier.Provider, err)
		if breaker != nil && lastErr.IsTransient() {
			breaker.RecordFailure()
		}

		if !lastErr.IsTransient() || attempt == tier.Attempts() {
			break
		}

		wait := backoffDelay(tier.Backoff(), attempt)
		fiberlog.Warnf("[%s] Invoker: transient %s on tier %d attempt %d/%d, retrying in %v",
			requestID, lastErr.Type, tierIdx+1, attempt, tier.Attempts(), wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			inv.record(tenantID, task, tier, tierIdx, attempt, startTime, lastErr)
			return nil, providers.Classify(tier.Provider, ctx.Err())
		}
	}

	inv.record(tenantID, task, tier, tierIdx, attempt, startTime, lastErr)
	return nil, lastErr
}

func (inv *Invoker) record(tenantID string, task TaskSpec, tier models.ModelTier, tierIdx, attempts int, startTime time.Time, failure *models.AppError) {
	if inv.recorder == nil {
		return
	}

	record := models.InvocationRecord{
		TenantID:  tenantID,
		Task:      task.Name,
		Phase:     task.Phase,
		Provider:  tier.Provider,
		Model:     tier.Model,
		Tier:      tierIdx + 1,
		Attempts:  attempts,
		LatencyMs: time.Since(startTime).Milliseconds(),
		Success:   failure == nil,
	}
	if failure != nil {
		record.ErrorType = string(failure.Type)
	}
	inv.recorder.Record(record)
}

// backoffDelay computes exponential backoff with 20% jitter
func backoffDelay(base time.Duration, attempt int) time.Duration {
	backoff := float64(base) * float64(int(1)<<(attempt-1))
	jitter := (rand.Float64() * 0.2) * backoff
	return time.Duration(backoff + jitter)
}
