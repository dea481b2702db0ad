package research

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/talentforge/research-engine/internal/models"
	"github.com/talentforge/research-engine/internal/services/invoker"
)

const promptVersion = "v3"

// MarketInsights is the quick-phase market research payload
type MarketInsights struct {
	SalaryRange struct {
		Min      int    `json:"min"`
		Max      int    `json:"max"`
		Currency string `json:"currency"`
	} `json:"salary_range"`
	InDemandSkills   []string `json:"in_demand_skills"`
	TalentSupply     string   `json:"talent_supply"`
	HiringDifficulty string   `json:"hiring_difficulty"`
	Summary          string   `json:"summary"`
	Sources          []string `json:"sources,omitempty"`
}

// DeepMarketInsights extends the quick payload with competitor and sourcing
// analysis produced by the heavier deep-phase generation
type DeepMarketInsights struct {
	MarketInsights
	CompetitorAnalysis []struct {
		Company        string `json:"company"`
		HiringActivity string `json:"hiring_activity"`
	} `json:"competitor_analysis"`
	SourcingChannels []string `json:"sourcing_channels"`
}

// JobDescription is the JD drafting payload
type JobDescription struct {
	Title            string   `json:"title"`
	Summary          string   `json:"summary"`
	Responsibilities []string `json:"responsibilities"`
	Requirements     []string `json:"requirements"`
	NiceToHave       []string `json:"nice_to_have,omitempty"`
}

// StagePlan is the interview stage planning payload
type StagePlan struct {
	Stages []struct {
		Name            string `json:"name"`
		Purpose         string `json:"purpose"`
		DurationMinutes int    `json:"duration_minutes"`
		Evaluators      string `json:"evaluators,omitempty"`
	} `json:"stages"`
}

// FeedbackSynthesis is the cross-interviewer feedback summary payload
type FeedbackSynthesis struct {
	OverallSentiment string   `json:"overall_sentiment"`
	Strengths        []string `json:"strengths"`
	Concerns         []string `json:"concerns"`
	Recommendation   string   `json:"recommendation"`
	Summary          string   `json:"summary"`
}

// CompetitorListings is the listings search payload
type CompetitorListings struct {
	Listings []struct {
		Company  string `json:"company"`
		Title    string `json:"title"`
		Location string `json:"location"`
		URL      string `json:"url,omitempty"`
		Salary   string `json:"salary,omitempty"`
	} `json:"listings"`
	Sources []string `json:"sources,omitempty"`
}

const researchSystem = "You are a recruitment market research assistant. " +
	"Respond with a single JSON object that matches the requested schema exactly. " +
	"Do not include any prose outside the JSON."

// SpecFor returns the task spec for a task name
func SpecFor(task string) (invoker.TaskSpec, bool) {
	spec, ok := taskSpecs[task]
	return spec, ok
}

var taskSpecs = map[string]invoker.TaskSpec{
	models.TaskMarketInsightsQuick: {
		Name:          models.TaskMarketInsightsQuick,
		Phase:         models.PhaseQuick,
		PromptVersion: promptVersion,
		System:        researchSystem,
		MaxTokens:     2048,
		BuildPrompt: func(req models.GenerationRequest) string {
			return fmt.Sprintf(
				"Provide hiring market insights for a %s role.\n%s"+
					"Return JSON with: salary_range {min, max, currency}, in_demand_skills (array), "+
					"talent_supply, hiring_difficulty, summary.",
				describeRole(req), describeMarket(req))
		},
		ParseOutput: parseAs[MarketInsights](func(v MarketInsights) ([]string, error) {
			if v.SalaryRange.Currency == "" || len(v.InDemandSkills) == 0 || v.Summary == "" {
				return nil, fmt.Errorf("missing salary_range, in_demand_skills or summary")
			}
			return v.Sources, nil
		}),
	},
	models.TaskMarketInsightsDeep: {
		Name:          models.TaskMarketInsightsDeep,
		Phase:         models.PhaseDeep,
		PromptVersion: promptVersion,
		System:        researchSystem,
		MaxTokens:     8192,
		BuildPrompt: func(req models.GenerationRequest) string {
			return fmt.Sprintf(
				"Run an in-depth hiring market analysis for a %s role.\n%s"+
					"Research competitor hiring activity and sourcing channels in addition to market data. "+
					"Return JSON with: salary_range {min, max, currency}, in_demand_skills (array), "+
					"talent_supply, hiring_difficulty, summary, competitor_analysis "+
					"(array of {company, hiring_activity}), sourcing_channels (array), sources (array of URLs).",
				describeRole(req), describeMarket(req))
		},
		ParseOutput: parseAs[DeepMarketInsights](func(v DeepMarketInsights) ([]string, error) {
			if v.Summary == "" || len(v.CompetitorAnalysis) == 0 || len(v.SourcingChannels) == 0 {
				return nil, fmt.Errorf("missing summary, competitor_analysis or sourcing_channels")
			}
			return v.Sources, nil
		}),
	},
	models.TaskJobDescription: {
		Name:          models.TaskJobDescription,
		Phase:         models.PhaseQuick,
		PromptVersion: promptVersion,
		System:        researchSystem,
		MaxTokens:     2048,
		BuildPrompt: func(req models.GenerationRequest) string {
			return fmt.Sprintf(
				"Draft a job description for a %s role.\n%s"+
					"Return JSON with: title, summary, responsibilities (array), requirements (array), nice_to_have (array).",
				describeRole(req), describeMarket(req))
		},
		ParseOutput: parseAs[JobDescription](func(v JobDescription) ([]string, error) {
			if v.Title == "" || len(v.Responsibilities) == 0 || len(v.Requirements) == 0 {
				return nil, fmt.Errorf("missing title, responsibilities or requirements")
			}
			return nil, nil
		}),
	},
	models.TaskStagePlan: {
		Name:          models.TaskStagePlan,
		Phase:         models.PhaseQuick,
		PromptVersion: promptVersion,
		System:        researchSystem,
		MaxTokens:     2048,
		BuildPrompt: func(req models.GenerationRequest) string {
			return fmt.Sprintf(
				"Design an interview stage plan for a %s role.\n%s"+
					"Return JSON with: stages (array of {name, purpose, duration_minutes, evaluators}).",
				describeRole(req), describeMarket(req))
		},
		ParseOutput: parseAs[StagePlan](func(v StagePlan) ([]string, error) {
			if len(v.Stages) == 0 {
				return nil, fmt.Errorf("missing stages")
			}
			for _, stage := range v.Stages {
				if stage.Name == "" || stage.Purpose == "" {
					return nil, fmt.Errorf("stage missing name or purpose")
				}
			}
			return nil, nil
		}),
	},
	models.TaskFeedbackSynthesis: {
		Name:          models.TaskFeedbackSynthesis,
		Phase:         models.PhaseQuick,
		PromptVersion: promptVersion,
		System:        researchSystem,
		MaxTokens:     2048,
		BuildPrompt: func(req models.GenerationRequest) string {
			return fmt.Sprintf(
				"Synthesize interviewer feedback themes for a %s hire.\n%s"+
					"Return JSON with: overall_sentiment, strengths (array), concerns (array), recommendation, summary.",
				describeRole(req), describeMarket(req))
		},
		ParseOutput: parseAs[FeedbackSynthesis](func(v FeedbackSynthesis) ([]string, error) {
			if v.OverallSentiment == "" || v.Recommendation == "" || v.Summary == "" {
				return nil, fmt.Errorf("missing overall_sentiment, recommendation or summary")
			}
			return nil, nil
		}),
	},
	models.TaskCompetitorListings: {
		Name:          models.TaskCompetitorListings,
		Phase:         models.PhaseListings,
		PromptVersion: promptVersion,
		System:        researchSystem,
		MaxTokens:     4096,
		BuildPrompt: func(req models.GenerationRequest) string {
			return fmt.Sprintf(
				"Find representative competitor job listings for a %s role.\n%s"+
					"Return JSON with: listings (array of {company, title, location, url, salary}), sources (array of URLs).",
				describeRole(req), describeMarket(req))
		},
		ParseOutput: parseAs[CompetitorListings](func(v CompetitorListings) ([]string, error) {
			if len(v.Listings) == 0 {
				return nil, fmt.Errorf("missing listings")
			}
			return v.Sources, nil
		}),
	},
}

func describeRole(req models.GenerationRequest) string {
	parts := []string{}
	if req.Level != "" {
		parts = append(parts, req.Level)
	}
	parts = append(parts, req.Role)
	return strings.Join(parts, " ")
}

func describeMarket(req models.GenerationRequest) string {
	var sb strings.Builder
	if req.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s.\n", req.Industry)
	}
	if req.Location != "" {
		fmt.Fprintf(&sb, "Location: %s.\n", req.Location)
	}
	if req.MarketFocus != "" {
		fmt.Fprintf(&sb, "Market focus: %s.\n", req.MarketFocus)
	}
	if len(req.Keywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s.\n", strings.Join(req.Keywords, ", "))
	}
	return sb.String()
}

// parseAs builds a ParseOutput func that extracts the JSON object from the
// raw model text, decodes it into T and applies the task's field checks.
func parseAs[T any](check func(T) ([]string, error)) func(string) (json.RawMessage, []string, error) {
	return func(raw string) (json.RawMessage, []string, error) {
		cleaned, err := extractJSON(raw)
		if err != nil {
			return nil, nil, err
		}

		var v T
		if err := json.Unmarshal(cleaned, &v); err != nil {
			return nil, nil, fmt.Errorf("decode failed: %w", err)
		}

		sources, err := check(v)
		if err != nil {
			return nil, nil, err
		}
		return cleaned, sources, nil
	}
}

// extractJSON isolates the JSON object in the model output, tolerating
// markdown code fences and surrounding prose.
func extractJSON(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in output")
	}
	candidate := trimmed[start : end+1]

	if !json.Valid([]byte(candidate)) {
		return nil, fmt.Errorf("output is not valid JSON")
	}
	return json.RawMessage(candidate), nil
}
