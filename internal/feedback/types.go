// Package feedback stores clinician feedback on recommended primary therapy.
// Entries are keyed by plan fingerprint and never carry patient values.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrInvalidFeedback is returned when required feedback fields are missing.
var ErrInvalidFeedback = errors.New("invalid feedback")

// Feedback represents a clinician's response to one recommended plan.
type Feedback struct {
	ID               int64     `json:"id,omitempty"`
	PlanFingerprint  string    `json:"plan_fingerprint"`  // Digest of the plan, see domain.Fingerprint
	Severity         string    `json:"severity"`          // Pain severity of the plan
	OverallRisk      string    `json:"overall_risk"`      // Risk level of the plan
	SuggestedPrimary string    `json:"suggested_primary"` // Engine's primary therapy
	ChosenPrimary    string    `json:"chosen_primary"`    // Clinician's primary therapy
	Agreed           bool      `json:"agreed"`            // Did the clinician keep the suggestion?
	Notes            string    `json:"notes,omitempty"`   // Free text, must not identify the patient
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks the fields every store requires and derives Agreed when the chosen
// primary is given.
func (f *Feedback) Validate() error {
	if f == nil {
		return ErrInvalidFeedback
	}
	if f.PlanFingerprint == "" || f.SuggestedPrimary == "" {
		return ErrInvalidFeedback
	}
	if f.ChosenPrimary == "" {
		f.ChosenPrimary = f.SuggestedPrimary
	}
	f.Agreed = f.ChosenPrimary == f.SuggestedPrimary
	return nil
}

// AgreementSummary aggregates how often clinicians kept the suggested primary therapy.
type AgreementSummary struct {
	Total     int64            `json:"total"`
	Agreed    int64            `json:"agreed"`
	Rate      float64          `json:"rate"`
	Overrides map[string]int64 `json:"overrides,omitempty"` // chosen primary -> count, disagreements only
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Feedback for an existing fingerprint is updated.
	Save(ctx context.Context, feedback *Feedback) error

	// Get retrieves feedback for a plan fingerprint. Returns nil when absent.
	Get(ctx context.Context, fingerprint string) (*Feedback, error)

	// List returns feedback entries with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	// Count returns the total number of feedback entries.
	Count(ctx context.Context) (int64, error)

	// Summary aggregates agreement across all entries.
	Summary(ctx context.Context) (*AgreementSummary, error)

	// Delete removes a feedback entry by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all feedback to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports feedback from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// columns is the select list shared by both stores.
const columns = `id, plan_fingerprint, severity, overall_risk, suggested_primary,
			chosen_primary, agreed, notes, created_at, updated_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanFeedback scans a row selected with columns into a Feedback struct.
func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	err := s.Scan(
		&fb.ID, &fb.PlanFingerprint, &fb.Severity, &fb.OverallRisk, &fb.SuggestedPrimary,
		&fb.ChosenPrimary, &fb.Agreed, &fb.Notes, &fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fb, nil
}

// summarize builds an AgreementSummary from a full listing.
func summarize(all []*Feedback) *AgreementSummary {
	summary := &AgreementSummary{Total: int64(len(all)), Overrides: map[string]int64{}}
	for _, fb := range all {
		if fb.Agreed {
			summary.Agreed++
			continue
		}
		summary.Overrides[fb.ChosenPrimary]++
	}
	if summary.Total > 0 {
		summary.Rate = float64(summary.Agreed) / float64(summary.Total)
	}
	return summary
}

type lister interface {
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)
	Get(ctx context.Context, fingerprint string) (*Feedback, error)
	Save(ctx context.Context, feedback *Feedback) error
}

func exportJSON(ctx context.Context, s lister, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}

	export := &FeedbackExport{
		Version:    exportVersion,
		ExportedAt: time.Now(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// importJSON saves entries whose fingerprint is not yet stored.
func importJSON(ctx context.Context, s lister, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		existing, err := s.Get(ctx, fb.PlanFingerprint)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		if err := s.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
