package models

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Research phases. Entries for different phases share a cache key but are
// stored as distinct rows.
const (
	PhaseQuick    = "quick"
	PhaseDeep     = "deep"
	PhaseListings = "listings"
)

// Poll statuses reported for deep-phase research.
const (
	ResearchStatusPending  = "pending"
	ResearchStatusComplete = "complete"
)

// Generation task names. Each maps to a prompt template and output schema
// in the research task registry.
const (
	TaskMarketInsightsQuick = "market_insights_quick"
	TaskMarketInsightsDeep  = "market_insights_deep"
	TaskJobDescription      = "job_description"
	TaskStagePlan           = "stage_plan"
	TaskFeedbackSynthesis   = "feedback_synthesis"
	TaskCompetitorListings  = "competitor_listings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// GenerationRequest is the semantic input to a generation task. Two requests
// that normalize to the same content must always derive the same cache key.
type GenerationRequest struct {
	Task        string   `json:"task,omitzero"`
	Role        string   `json:"role"`
	Level       string   `json:"level,omitzero"`
	Industry    string   `json:"industry,omitzero"`
	Location    string   `json:"location,omitzero"`
	MarketFocus string   `json:"market_focus,omitzero"`
	Keywords    []string `json:"keywords,omitzero"`
}

// Normalized returns a copy with trimmed, whitespace-collapsed, lowercased
// string fields and sorted keywords, so that semantically identical requests
// canonicalize identically.
func (r GenerationRequest) Normalized() GenerationRequest {
	out := GenerationRequest{
		Task:        normalizeField(r.Task),
		Role:        normalizeField(r.Role),
		Level:       normalizeField(r.Level),
		Industry:    normalizeField(r.Industry),
		Location:    normalizeField(r.Location),
		MarketFocus: normalizeField(r.MarketFocus),
	}
	if len(r.Keywords) > 0 {
		out.Keywords = make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if norm := normalizeField(kw); norm != "" {
				out.Keywords = append(out.Keywords, norm)
			}
		}
		sort.Strings(out.Keywords)
		if len(out.Keywords) == 0 {
			out.Keywords = nil
		}
	}
	return out
}

// Validate checks caller-supplied request fields
func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Role) == "" {
		return NewValidationError("role is required", nil)
	}
	return nil
}

func normalizeField(s string) string {
	return strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " "))
}

// ResearchCacheEntry is the unit of cache storage. At most one live row
// exists per (tenant_id, cache_key, phase); writes upsert on that composite
// key and the last write wins.
type ResearchCacheEntry struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TenantID      string          `gorm:"uniqueIndex:idx_tenant_key_phase;size:64;not null" json:"tenant_id"`
	CacheKey      string          `gorm:"uniqueIndex:idx_tenant_key_phase;size:80;not null" json:"cache_key"`
	Phase         string          `gorm:"uniqueIndex:idx_tenant_key_phase;size:16;not null" json:"phase"`
	SearchParams  json.RawMessage `json:"search_params,omitempty"`
	Results       json.RawMessage `json:"results"`
	Sources       json.RawMessage `json:"sources,omitempty"`
	ModelUsed     string          `gorm:"size:128" json:"model_used"`
	PromptVersion string          `gorm:"size:32" json:"prompt_version"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt     time.Time       `gorm:"index" json:"expires_at"`
}

func (ResearchCacheEntry) TableName() string {
	return "research_cache_entries"
}

// IsLive reports whether the entry is still within its TTL. Expiry is
// checked lazily on read; stale rows are never actively swept.
func (e *ResearchCacheEntry) IsLive(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// SourceList decodes the stored sources column
func (e *ResearchCacheEntry) SourceList() []string {
	if len(e.Sources) == 0 {
		return nil
	}
	var sources []string
	if err := json.Unmarshal(e.Sources, &sources); err != nil {
		return nil
	}
	return sources
}

// GenerationResult is the immutable product of one successful invoker call.
// A new generation always produces a new cache entry, never a patch.
type GenerationResult struct {
	Data          json.RawMessage `json:"data"`
	Sources       []string        `json:"sources,omitempty"`
	ModelUsed     string          `json:"model_used"`
	PromptVersion string          `json:"prompt_version"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// QuickResearchResponse is returned by the synchronous quick-phase path.
// DeepResearchAvailable reports whether a live deep row exists for the key
// at response time, regardless of whether the quick phase hit or missed.
type QuickResearchResponse struct {
	Data                  json.RawMessage `json:"data"`
	Cached                bool            `json:"cached"`
	CacheKey              string          `json:"cache_key"`
	DeepResearchAvailable bool            `json:"deep_research_available"`
}

// DeepTriggerRequest starts a deep-phase background continuation for a
// previously derived cache key. PlaybookID is the optional subject the
// result is propagated to.
type DeepTriggerRequest struct {
	CacheKey   string `json:"cache_key"`
	PlaybookID *uint  `json:"playbook_id,omitempty"`
}

// DeepTriggerResponse is the immediate acknowledgment for a deep trigger
type DeepTriggerResponse struct {
	Accepted bool   `json:"accepted"`
	CacheKey string `json:"cache_key"`
}

// PollResponse reports deep-phase progress. The system keeps no explicit
// in-progress marker: not-started, running and failed are all "pending".
type PollResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Sources []string        `json:"sources,omitempty"`
}
