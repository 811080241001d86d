package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Path returns the database file location
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS plan_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_fingerprint TEXT NOT NULL UNIQUE,
		severity TEXT NOT NULL DEFAULT '',
		overall_risk TEXT NOT NULL DEFAULT '',
		suggested_primary TEXT NOT NULL,
		chosen_primary TEXT NOT NULL,
		agreed INTEGER NOT NULL DEFAULT 0,
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_plan_feedback_suggested ON plan_feedback(suggested_primary);
	CREATE INDEX IF NOT EXISTS idx_plan_feedback_created_at ON plan_feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates clinician feedback for a plan.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Validate(); err != nil {
		return err
	}
	now := time.Now()

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM plan_feedback WHERE plan_fingerprint = ?",
		feedback.PlanFingerprint,
	).Scan(&existingID)

	if err == nil {
		feedback.ID = existingID
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE plan_feedback SET
				severity = ?,
				overall_risk = ?,
				suggested_primary = ?,
				chosen_primary = ?,
				agreed = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			feedback.Severity,
			feedback.OverallRisk,
			feedback.SuggestedPrimary,
			feedback.ChosenPrimary,
			feedback.Agreed,
			feedback.Notes,
			now,
			existingID,
		)
		return err
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	feedback.CreatedAt = now
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_feedback (
			plan_fingerprint, severity, overall_risk,
			suggested_primary, chosen_primary, agreed,
			notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.PlanFingerprint,
		feedback.Severity,
		feedback.OverallRisk,
		feedback.SuggestedPrimary,
		feedback.ChosenPrimary,
		feedback.Agreed,
		feedback.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id

	return nil
}

// Get retrieves feedback for a plan fingerprint.
func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM plan_feedback WHERE plan_fingerprint = ? LIMIT 1",
		fingerprint,
	)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM plan_feedback ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM plan_feedback").Scan(&count)
	return count, err
}

// Summary aggregates agreement across all entries.
func (s *SQLiteStore) Summary(ctx context.Context) (*AgreementSummary, error) {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return nil, err
	}
	return summarize(all), nil
}

// Delete removes a feedback entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM plan_feedback WHERE id = ?", id)
	return err
}

// ExportJSON exports all feedback to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
