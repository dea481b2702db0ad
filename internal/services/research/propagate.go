package research

import (
	"context"
	"fmt"

	"github.com/talentforge/research-engine/internal/models"

	"gorm.io/gorm"
)

// PlaybookWriter attaches a finished deep research result to the hiring
// playbook it was requested for.
type PlaybookWriter interface {
	WriteDeepResearch(ctx context.Context, tenantID string, playbookID uint, result *models.GenerationResult) error
}

// GormPlaybookWriter persists propagation into the playbooks table
type GormPlaybookWriter struct {
	db *gorm.DB
}

// NewGormPlaybookWriter creates a playbook writer over the given database
func NewGormPlaybookWriter(db *gorm.DB) *GormPlaybookWriter {
	return &GormPlaybookWriter{db: db}
}

// WriteDeepResearch updates the playbook row, scoped to the tenant so a
// stale or malicious playbook ID can never cross tenants.
func (w *GormPlaybookWriter) WriteDeepResearch(ctx context.Context, tenantID string, playbookID uint, result *models.GenerationResult) error {
	res := w.db.WithContext(ctx).
		Model(&models.Playbook{}).
		Where("id = ? AND tenant_id = ?", playbookID, tenantID).
		Updates(map[string]any{
			"deep_research":       []byte(result.Data),
			"deep_research_model": result.ModelUsed,
			"deep_research_at":    result.GeneratedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("playbook update failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("playbook %d not found for tenant", playbookID)
	}
	return nil
}

var _ PlaybookWriter = (*GormPlaybookWriter)(nil)
