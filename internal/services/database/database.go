// Package database opens the GORM connections the engine runs on: one
// relational database for cache entries, tenant keys and playbooks, and an
// optional second connection (usually ClickHouse) for invocation records.
package database

import (
	"fmt"
	"time"

	"github.com/talentforge/research-engine/internal/models"

	"gorm.io/driver/clickhouse"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// DB wraps a GORM connection together with its driver identity. Migration
// code needs the identity to choose between AutoMigrate and raw DDL.
type DB struct {
	*gorm.DB
	driverName string
}

// New opens a connection for the configured dialect and verifies it with a
// ping before handing it out.
func New(cfg models.DatabaseConfig) (*DB, error) {
	var (
		gormDB *gorm.DB
		driver string
		err    error
	)

	switch cfg.Type {
	case models.PostgreSQL:
		gormDB, err = gorm.Open(postgres.Open(postgresDSN(cfg)), &gorm.Config{})
		driver = "postgres"
	case models.MySQL:
		gormDB, err = gorm.Open(mysql.Open(mysqlDSN(cfg)), &gorm.Config{})
		driver = "mysql"
	case models.SQLite:
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file_path is required for sqlite")
		}
		gormDB, err = gorm.Open(sqlite.Open(cfg.FilePath), &gorm.Config{})
		driver = "sqlite"
	case models.ClickHouse:
		// Prepared statements stay off: the ClickHouse driver's support is
		// incomplete and breaks SELECTs and column introspection.
		gormDB, err = gorm.Open(clickhouse.New(clickhouse.Config{
			DSN: clickhouseDSN(cfg),
		}), &gorm.Config{PrepareStmt: false})
		driver = "clickhouse"
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Type, err)
	}

	db := &DB{DB: gormDB, driverName: driver}
	db.configurePool(cfg)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Type, err)
	}
	return db, nil
}

// DriverName returns the dialect identity of the connection
func (db *DB) DriverName() string {
	return db.driverName
}

// Ping verifies the underlying connection is alive
func (db *DB) Ping() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (db *DB) configurePool(cfg models.DatabaseConfig) {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}
}

func postgresDSN(cfg models.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database, sslMode)
}

func mysqlDSN(cfg models.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func clickhouseDSN(cfg models.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("clickhouse://%s:%s@%s:%d/%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}
