package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunClickHouseMigrations creates the analytics tables directly. GORM's
// AutoMigrate is unreliable against the ClickHouse driver, so the schema
// is spelled out here.
func RunClickHouseMigrations(db *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS research_invocations (
			id String,
			tenant_id String,
			task String,
			phase String,
			provider String,
			model String,
			tier Int32,
			attempts Int32,
			latency_ms Int64,
			success UInt8,
			error_type String,
			created_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (tenant_id, created_at)`,
	}

	for _, query := range queries {
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}

	return nil
}
