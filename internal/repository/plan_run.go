package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
)

// DefaultListLimit caps ListRuns when the caller passes no limit
const DefaultListLimit = 50

// querier is the subset of pgxpool.Pool used by the repository
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PlanRunRepository persists de-identified plan runs in PostgreSQL
type PlanRunRepository struct {
	db  querier
	log *logrus.Logger
}

// NewPlanRunRepository creates a new plan run repository
func NewPlanRunRepository(db querier, logger *logrus.Logger) *PlanRunRepository {
	return &PlanRunRepository{
		db:  db,
		log: logger,
	}
}

// SaveRun inserts a plan run. Run IDs must be UUIDs.
func (r *PlanRunRepository) SaveRun(ctx context.Context, run *domain.PlanRun) error {
	if run == nil {
		return fmt.Errorf("saving plan run: nil run")
	}
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("saving plan run: invalid id %q: %w", run.ID, err)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO plan_runs (
			id, request_id, fingerprint, severity, renal_category, overall_risk,
			primary_kind, primary_drug, alert_count, source, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)`

	_, err = r.db.Exec(ctx, query,
		id.String(),
		run.RequestID,
		run.Fingerprint,
		string(run.Severity),
		string(run.RenalCategory),
		string(run.OverallRisk),
		string(run.PrimaryKind),
		string(run.PrimaryDrug),
		run.AlertCount,
		run.Source,
		run.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"run_id":     run.ID,
			"request_id": run.RequestID,
			"error":      err,
		}).Error("Failed to save plan run")
		return fmt.Errorf("saving plan run: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"run_id":       run.ID,
		"overall_risk": run.OverallRisk,
		"primary_drug": run.PrimaryDrug,
	}).Debug("Plan run saved")
	return nil
}

const selectRunColumns = `
	SELECT id::text, request_id, fingerprint, severity, renal_category, overall_risk,
		   primary_kind, primary_drug, alert_count, source, created_at
	FROM plan_runs`

func scanRun(row pgx.Row) (*domain.PlanRun, error) {
	var run domain.PlanRun
	var severity, renal, risk, kind, drug string
	err := row.Scan(
		&run.ID,
		&run.RequestID,
		&run.Fingerprint,
		&severity,
		&renal,
		&risk,
		&kind,
		&drug,
		&run.AlertCount,
		&run.Source,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Severity = domain.Severity(severity)
	run.RenalCategory = domain.RenalCategory(renal)
	run.OverallRisk = domain.OverallRisk(risk)
	run.PrimaryKind = domain.PrimaryKind(kind)
	run.PrimaryDrug = domain.Drug(drug)
	return &run, nil
}

// GetRun retrieves a plan run by its ID
func (r *PlanRunRepository) GetRun(ctx context.Context, id string) (*domain.PlanRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("plan run %q: %w", id, domain.ErrNotFound)
	}

	run, err := scanRun(r.db.QueryRow(ctx, selectRunColumns+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plan run not found: %w", domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"run_id": id,
			"error":  err,
		}).Error("Failed to get plan run")
		return nil, fmt.Errorf("getting plan run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (r *PlanRunRepository) ListRuns(ctx context.Context, limit int) ([]*domain.PlanRun, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.Query(ctx, selectRunColumns+" ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("listing plan runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.PlanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan run row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
