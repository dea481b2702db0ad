package models

import (
	"encoding/json"
	"time"
)

// Playbook is the hiring-plan subject record deep research results are
// propagated onto. The propagation is a denormalized copy for downstream
// consumers; the deep-phase cache entry remains the source of truth.
type Playbook struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	TenantID          string          `gorm:"not null;index;size:64" json:"tenant_id"`
	Title             string          `gorm:"size:255" json:"title"`
	Role              string          `gorm:"size:255" json:"role"`
	Level             string          `gorm:"size:64" json:"level,omitempty"`
	Location          string          `gorm:"size:255" json:"location,omitempty"`
	DeepResearch      json.RawMessage `json:"deep_research,omitempty"`
	DeepResearchModel string          `gorm:"size:128" json:"deep_research_model,omitempty"`
	DeepResearchAt    *time.Time      `json:"deep_research_at,omitempty"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Playbook) TableName() string {
	return "playbooks"
}
