package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/talentforge/research-engine/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Server         models.ServerConfig                `yaml:"server"`
	Auth           models.AuthConfig                  `yaml:"auth"`
	Providers      map[string]models.ProviderConfig   `yaml:"providers"`
	Ladders        models.LaddersConfig               `yaml:"ladders"`
	Cache          models.ResearchCacheConfig         `yaml:"cache"`
	Redis          models.RedisConfig                 `yaml:"redis"`
	CircuitBreaker models.CircuitBreakerConfig        `yaml:"circuit_breaker"`
	Database       *models.DatabaseConfig             `yaml:"database,omitempty"`
	Analytics      *models.DatabaseConfig             `yaml:"analytics,omitempty"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize provider map keys to lowercase for case-insensitive lookups
	if config.Providers != nil {
		normalizedProviders := make(map[string]models.ProviderConfig, len(config.Providers))
		for key, value := range config.Providers {
			normalizedProviders[strings.ToLower(key)] = value
		}
		config.Providers = normalizedProviders
	}

	if config.Ladders.Quick.IsEmpty() && config.Ladders.Deep.IsEmpty() && config.Ladders.Listings.IsEmpty() {
		config.Ladders = models.DefaultLadders()
	}

	// An omitted auth section means defaults, not "no auth". Disabling
	// tenant resolution takes an explicit enabled: false.
	if config.Auth.IsZero() {
		config.Auth = models.DefaultAuthConfig()
	}

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// GetProviderConfig returns the configuration for a specific provider
func (c *Config) GetProviderConfig(provider string) (models.ProviderConfig, bool) {
	if c.Providers == nil {
		return models.ProviderConfig{}, false
	}
	config, exists := c.Providers[strings.ToLower(provider)]
	return config, exists
}

// LadderForPhase returns the escalation ladder configured for a phase
func (c *Config) LadderForPhase(phase string) models.EscalationLadder {
	switch phase {
	case models.PhaseDeep:
		return c.Ladders.Deep
	case models.PhaseListings:
		return c.Ladders.Listings
	default:
		return c.Ladders.Quick
	}
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if len(c.Providers) == 0 {
		missing = append(missing, "providers")
	}

	for phase, ladder := range map[string]models.EscalationLadder{
		models.PhaseQuick:    c.Ladders.Quick,
		models.PhaseDeep:     c.Ladders.Deep,
		models.PhaseListings: c.Ladders.Listings,
	} {
		for _, tier := range ladder.Tiers {
			if _, ok := c.GetProviderConfig(tier.Provider); !ok {
				return fmt.Errorf("ladder %s references unconfigured provider %q", phase, tier.Provider)
			}
		}
	}

	switch c.Cache.Backend {
	case "", models.CacheBackendMemory:
	case models.CacheBackendDatabase:
		if c.Database == nil {
			return fmt.Errorf("cache.backend is %q but no database is configured", models.CacheBackendDatabase)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}
