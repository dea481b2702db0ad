package models

// DatabaseType selects the dialect for a GORM connection
type DatabaseType string

const (
	PostgreSQL DatabaseType = "postgresql"
	MySQL      DatabaseType = "mysql"
	SQLite     DatabaseType = "sqlite"
	ClickHouse DatabaseType = "clickhouse"
)

// DatabaseConfig describes one database connection. The primary connection
// holds cache entries, tenant keys and playbooks; the analytics connection
// receives invocation records. Either a full DSN or the individual host
// fields can be given; a non-empty DSN wins.
type DatabaseConfig struct {
	Type     DatabaseType `yaml:"type" json:"type"`
	DSN      string       `yaml:"dsn,omitempty" json:"dsn,omitzero"`
	Host     string       `yaml:"host,omitempty" json:"host,omitzero"`
	Port     int          `yaml:"port,omitempty" json:"port,omitzero"`
	Username string       `yaml:"username,omitempty" json:"username,omitzero"`
	Password string       `yaml:"password,omitempty" json:"-"`
	Database string       `yaml:"database" json:"database"`
	SSLMode  string       `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitzero"`

	// FilePath is the on-disk location for sqlite deployments
	FilePath string `yaml:"file_path,omitempty" json:"file_path,omitzero"`

	MaxOpenConns           int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitzero"`
	MaxIdleConns           int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitzero"`
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes,omitempty" json:"conn_max_lifetime_minutes,omitzero"`
}
