package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the plan_feedback table to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates clinician feedback for a plan.
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now()

	query := `
		INSERT INTO plan_feedback (
			plan_fingerprint, severity, overall_risk,
			suggested_primary, chosen_primary, agreed,
			notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (plan_fingerprint) DO UPDATE SET
			severity = EXCLUDED.severity,
			overall_risk = EXCLUDED.overall_risk,
			suggested_primary = EXCLUDED.suggested_primary,
			chosen_primary = EXCLUDED.chosen_primary,
			agreed = EXCLUDED.agreed,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		feedback.PlanFingerprint,
		feedback.Severity,
		feedback.OverallRisk,
		feedback.SuggestedPrimary,
		feedback.ChosenPrimary,
		feedback.Agreed,
		feedback.Notes,
		now,
		now,
	).Scan(&feedback.ID, &feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

// Get retrieves feedback for a plan fingerprint.
func (s *PostgresStore) Get(ctx context.Context, fingerprint string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM plan_feedback WHERE plan_fingerprint = $1 LIMIT 1",
		fingerprint,
	)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM plan_feedback ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}

	return result, rows.Err()
}

// Count returns the total number of feedback entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_feedback").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// Summary aggregates agreement in the database rather than in memory.
func (s *PostgresStore) Summary(ctx context.Context) (*AgreementSummary, error) {
	summary := &AgreementSummary{Overrides: map[string]int64{}}
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COUNT(*) FILTER (WHERE agreed) FROM plan_feedback",
	).Scan(&summary.Total, &summary.Agreed)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize feedback: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT chosen_primary, COUNT(*) FROM plan_feedback WHERE NOT agreed GROUP BY chosen_primary",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize overrides: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var chosen string
		var n int64
		if err := rows.Scan(&chosen, &n); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		summary.Overrides[chosen] = n
	}
	if summary.Total > 0 {
		summary.Rate = float64(summary.Agreed) / float64(summary.Total)
	}
	return summary, rows.Err()
}

// Delete removes a feedback entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM plan_feedback WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

// ExportJSON exports all feedback to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
