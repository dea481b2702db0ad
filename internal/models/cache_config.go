package models

import "time"

// CacheBackend identifies the phase cache storage backend
type CacheBackend string

const (
	CacheBackendDatabase CacheBackend = "database"
	CacheBackendMemory   CacheBackend = "memory"
)

// ResearchCacheConfig configures the phase cache. TTLs are phase-dependent
// and applied by the orchestrators at write time; the cache itself is
// TTL-agnostic storage plus an expiry check on read.
type ResearchCacheConfig struct {
	Backend          CacheBackend `yaml:"backend" json:"backend"`
	QuickTTLHours    int          `yaml:"quick_ttl_hours,omitempty" json:"quick_ttl_hours,omitzero"`
	DeepTTLHours     int          `yaml:"deep_ttl_hours,omitempty" json:"deep_ttl_hours,omitzero"`
	ListingsTTLHours int          `yaml:"listings_ttl_hours,omitempty" json:"listings_ttl_hours,omitzero"`
}

// QuickTTL returns the quick-phase TTL (default 30 days)
func (c ResearchCacheConfig) QuickTTL() time.Duration {
	return ttlOrDefault(c.QuickTTLHours, 30*24*time.Hour)
}

// DeepTTL returns the deep-phase TTL (default 30 days)
func (c ResearchCacheConfig) DeepTTL() time.Duration {
	return ttlOrDefault(c.DeepTTLHours, 30*24*time.Hour)
}

// EffectiveBackend resolves the backend that actually serves the phase
// cache, given whether a database connection exists. An unset backend means
// "database when available".
func (c ResearchCacheConfig) EffectiveBackend(hasDatabase bool) CacheBackend {
	if c.Backend == CacheBackendMemory || !hasDatabase {
		return CacheBackendMemory
	}
	return CacheBackendDatabase
}

// ListingsTTL returns the listings-phase TTL (default 7 days)
func (c ResearchCacheConfig) ListingsTTL() time.Duration {
	return ttlOrDefault(c.ListingsTTLHours, 7*24*time.Hour)
}

func ttlOrDefault(hours int, fallback time.Duration) time.Duration {
	if hours <= 0 {
		return fallback
	}
	return time.Duration(hours) * time.Hour
}

// RedisConfig holds the Redis connection used for circuit breaker state
type RedisConfig struct {
	URL string `yaml:"url" json:"url,omitzero"`
}
