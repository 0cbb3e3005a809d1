// Package repository provides audit persistence for charges and
// assessments.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/osprey/internal/domain"
)

var (
	// ErrNotFound aliases the domain sentinel so callers can match
	// either form with errors.Is.
	ErrNotFound     = domain.ErrNotFound
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveCharge stores a charge for audit.
func (r *SQLRepository) SaveCharge(ctx context.Context, charge *domain.Charge) error {
	if charge == nil || charge.ID == "" {
		return fmt.Errorf("%w: charge with id is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(charge.Metadata)

	query := `
		INSERT INTO charges (id, amount, currency, source, email, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		charge.ID, charge.Amount, charge.Currency,
		charge.Source, charge.Email,
		charge.CreatedAt, string(metadata),
	)
	return err
}

// GetCharge retrieves a charge by ID.
func (r *SQLRepository) GetCharge(ctx context.Context, chargeID string) (*domain.Charge, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("%w: chargeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, amount, currency, source, email, created_at, metadata
		FROM charges
		WHERE id = ?
	`

	var charge domain.Charge
	var metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), chargeID).Scan(
		&charge.ID, &charge.Amount, &charge.Currency,
		&charge.Source, &charge.Email,
		&charge.CreatedAt, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if metadata != "" {
		json.Unmarshal([]byte(metadata), &charge.Metadata)
	}

	return &charge, nil
}

// SaveAssessment stores an assessment result.
func (r *SQLRepository) SaveAssessment(ctx context.Context, assessment *domain.Assessment) error {
	if assessment == nil || assessment.ID == "" {
		return fmt.Errorf("%w: assessment with id is required", ErrInvalidInput)
	}

	rulesJSON, _ := json.Marshal(assessment.Result.TriggeredRules)
	metadata, _ := json.Marshal(assessment.Metadata)

	query := `
		INSERT INTO assessments (
			id, charge_id, risk_score, risk_percentage, is_high_risk,
			triggered_rules, decision, explanation, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		assessment.ID, assessment.ChargeID,
		assessment.Result.RiskScore, assessment.Result.RiskPercentage,
		boolToInt(assessment.Result.IsHighRisk),
		string(rulesJSON), assessment.Decision, assessment.Explanation,
		assessment.Timestamp, string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID.
func (r *SQLRepository) GetAssessment(ctx context.Context, assessmentID string) (*domain.Assessment, error) {
	if assessmentID == "" {
		return nil, fmt.Errorf("%w: assessmentID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, charge_id, risk_score, risk_percentage, is_high_risk,
			   triggered_rules, decision, explanation, timestamp, metadata
		FROM assessments
		WHERE id = ?
	`

	row := r.db.QueryRowContext(ctx, r.rebind(query), assessmentID)
	assessment, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return assessment, err
}

// ListAssessmentsByCharge retrieves every assessment recorded for a
// charge, oldest first.
func (r *SQLRepository) ListAssessmentsByCharge(ctx context.Context, chargeID string) ([]*domain.Assessment, error) {
	if chargeID == "" {
		return nil, fmt.Errorf("%w: chargeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, charge_id, risk_score, risk_percentage, is_high_risk,
			   triggered_rules, decision, explanation, timestamp, metadata
		FROM assessments
		WHERE charge_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), chargeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var highRisk int
	var rulesJSON, metadata string
	var explanation sql.NullString

	err := row.Scan(
		&a.ID, &a.ChargeID,
		&a.Result.RiskScore, &a.Result.RiskPercentage, &highRisk,
		&rulesJSON, &a.Decision, &explanation,
		&a.Timestamp, &metadata,
	)
	if err != nil {
		return nil, err
	}

	a.Result.IsHighRisk = highRisk != 0
	a.Explanation = explanation.String
	if rulesJSON != "" {
		json.Unmarshal([]byte(rulesJSON), &a.Result.TriggeredRules)
	}
	if a.Result.TriggeredRules == nil {
		a.Result.TriggeredRules = []string{}
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &a.Metadata)
	}

	return &a, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
