package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// Postgres represents a PostgreSQL connection
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a PostgreSQL connection pool
func NewPostgres(cfg Config) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

// FromDB wraps an existing handle.
func FromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB returns the underlying handle.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the database connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Schema lists the statements CreateTables runs, in order.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS health_checks (
		id BIGSERIAL PRIMARY KEY,
		provider VARCHAR(64) NOT NULL,
		is_healthy BOOLEAN NOT NULL,
		response_time_ms DOUBLE PRECISION,
		status_code INTEGER,
		error_message TEXT,
		checked_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_health_checks_provider_time
		ON health_checks (provider, checked_at DESC)`,
	`CREATE TABLE IF NOT EXISTS failover_events (
		id UUID PRIMARY KEY,
		from_provider VARCHAR(64) NOT NULL,
		to_provider VARCHAR(64) NOT NULL,
		reason TEXT NOT NULL,
		is_manual BOOLEAN NOT NULL,
		triggered_by VARCHAR(64) NOT NULL,
		actor VARCHAR(255),
		details JSONB,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_failover_events_time
		ON failover_events (occurred_at DESC)`,
	`CREATE TABLE IF NOT EXISTS performance_metrics (
		id BIGSERIAL PRIMARY KEY,
		provider VARCHAR(64) NOT NULL,
		cpu_utilization DOUBLE PRECISION,
		memory_utilization DOUBLE PRECISION,
		disk_iops DOUBLE PRECISION,
		network_throughput DOUBLE PRECISION,
		request_success_rate DOUBLE PRECISION,
		average_response_time DOUBLE PRECISION,
		recorded_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS active_provider (
		id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		provider VARCHAR(64) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

// CreateTables creates the failover engine tables
func (p *Postgres) CreateTables(ctx context.Context) error {
	for _, query := range Schema {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
