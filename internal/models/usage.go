package models

import "time"

// InvocationRecord is one provider call outcome, recorded for spend and
// reliability analytics. Written in the background through the usage worker;
// recording never blocks or fails a request.
type InvocationRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	TenantID  string    `gorm:"index;size:64" json:"tenant_id"`
	Task      string    `gorm:"size:64" json:"task"`
	Phase     string    `gorm:"size:16" json:"phase"`
	Provider  string    `gorm:"size:32" json:"provider"`
	Model     string    `gorm:"size:128" json:"model"`
	Tier      int       `json:"tier"`
	Attempts  int       `json:"attempts"`
	LatencyMs int64     `json:"latency_ms"`
	Success   bool      `json:"success"`
	ErrorType string    `gorm:"size:32" json:"error_type,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (InvocationRecord) TableName() string {
	return "research_invocations"
}
