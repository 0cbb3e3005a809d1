package domain

import (
	"context"
	"time"
)

// Repository defines the interface for audit persistence.
type Repository interface {
	// Charge operations
	SaveCharge(ctx context.Context, charge *Charge) error
	GetCharge(ctx context.Context, chargeID string) (*Charge, error)

	// Assessment operations
	SaveAssessment(ctx context.Context, assessment *Assessment) error
	GetAssessment(ctx context.Context, assessmentID string) (*Assessment, error)
	ListAssessmentsByCharge(ctx context.Context, chargeID string) ([]*Assessment, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
