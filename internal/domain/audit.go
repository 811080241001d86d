package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// PlanRun is a de-identified record of one engine run. It stores the plan outcome and a
// fingerprint of the plan, never the patient values that produced it.
type PlanRun struct {
	ID            string        `json:"id"`
	RequestID     string        `json:"request_id,omitempty"`
	Fingerprint   string        `json:"fingerprint"`
	Severity      Severity      `json:"severity"`
	RenalCategory RenalCategory `json:"renal_category"`
	OverallRisk   OverallRisk   `json:"overall_risk"`
	PrimaryKind   PrimaryKind   `json:"primary_kind"`
	PrimaryDrug   Drug          `json:"primary_drug,omitempty"`
	AlertCount    int           `json:"alert_count"`
	Source        string        `json:"source"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Fingerprint returns a stable hex digest of the plan's JSON form. Identical plans share a
// fingerprint.
func Fingerprint(plan *TreatmentPlan) (string, error) {
	b, err := json.Marshal(plan)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// NewPlanRun summarizes a plan for the audit trail.
func NewPlanRun(id, requestID, source string, plan *TreatmentPlan) (*PlanRun, error) {
	fp, err := Fingerprint(plan)
	if err != nil {
		return nil, err
	}
	return &PlanRun{
		ID:            id,
		RequestID:     requestID,
		Fingerprint:   fp,
		Severity:      plan.Severity,
		RenalCategory: plan.RenalCategory,
		OverallRisk:   plan.OverallRisk,
		PrimaryKind:   plan.Primary.Kind,
		PrimaryDrug:   plan.Primary.Drug,
		AlertCount:    len(plan.SafetyAlerts),
		Source:        source,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
