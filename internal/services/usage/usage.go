// Package usage records provider invocation outcomes for spend and
// reliability analytics.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service persists invocation records. The backing database is typically
// the ClickHouse analytics store, but any GORM dialect works.
type Service struct {
	db *gorm.DB
}

// NewService creates a usage service over the given database
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.InvocationRecord{})
}

// RecordInvocation writes one invocation record
func (s *Service) RecordInvocation(ctx context.Context, record models.InvocationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to record invocation: %w", err)
	}
	return nil
}

// TenantStats aggregates invocation outcomes for one tenant
type TenantStats struct {
	TotalInvocations   int64   `json:"total_invocations"`
	SuccessInvocations int64   `json:"success_invocations"`
	FailedInvocations  int64   `json:"failed_invocations"`
	EscalatedTiers     int64   `json:"escalated_tiers"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
}

// GetTenantStats aggregates invocation outcomes for a tenant over a window
func (s *Service) GetTenantStats(ctx context.Context, tenantID string, startDate, endDate time.Time) (*TenantStats, error) {
	var stats TenantStats

	query := s.db.WithContext(ctx).
		Model(&models.InvocationRecord{}).
		Where("tenant_id = ?", tenantID)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	err := query.
		Select(
			"COUNT(*) as total_invocations",
			"COUNT(CASE WHEN success THEN 1 END) as success_invocations",
			"COUNT(CASE WHEN NOT success THEN 1 END) as failed_invocations",
			"COUNT(CASE WHEN tier > 1 THEN 1 END) as escalated_tiers",
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms",
		).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant stats: %w", err)
	}

	return &stats, nil
}
