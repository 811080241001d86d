package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/pkg/units"
)

// AdvisorService orchestrates a recommendation run: parse, optional phenotype prediction,
// plan assembly and audit
type AdvisorService struct {
	logger   *logrus.Logger
	parser   *InputParserService
	planner  domain.Planner
	resolver *CachedPhenotypeResolver
	audit    domain.PlanAuditRepository
}

// NewAdvisorService creates a new advisor. resolver and audit may be nil.
func NewAdvisorService(
	logger *logrus.Logger,
	planner domain.Planner,
	resolver *CachedPhenotypeResolver,
	audit domain.PlanAuditRepository,
) *AdvisorService {
	return &AdvisorService{
		logger:   logger,
		parser:   NewInputParserService(),
		planner:  planner,
		resolver: resolver,
		audit:    audit,
	}
}

// PhenotypeFeatures are the prediction inputs that are not already part of the patient input
type PhenotypeFeatures struct {
	Sex                   string               `json:"sex"`
	CYP2D6Inhibitor       bool                 `json:"cyp2d6_inhibitor"`
	PriorCodeineResponse  domain.PriorResponse `json:"prior_codeine_response,omitempty"`
	PriorTramadolResponse domain.PriorResponse `json:"prior_tramadol_response,omitempty"`
}

// RecommendParams represents parameters for a recommendation run
type RecommendParams struct {
	Patient   RawPatientInput    `json:"patient"`
	Phenotype *PhenotypeFeatures `json:"phenotype,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
	Source    string             `json:"source,omitempty"`
}

// RecommendResult is the outcome of a recommendation run
type RecommendResult struct {
	RunID          string                      `json:"run_id"`
	Input          *domain.PatientInput        `json:"-"` // normalized input, kept off the wire
	Plan           *domain.TreatmentPlan       `json:"plan"`
	Prediction     *domain.PhenotypePrediction `json:"prediction,omitempty"`
	PredictionNote string                      `json:"prediction_note,omitempty"`
	ProcessingTime time.Duration               `json:"processing_time"`
}

// Recommend runs the full workflow. Input problems are returned as domain.ValidationErrors;
// prediction and audit failures are logged and never block the plan.
func (s *AdvisorService) Recommend(ctx context.Context, params *RecommendParams) (*RecommendResult, error) {
	startTime := time.Now()
	if params == nil {
		return nil, domain.ValidationErrors{domain.NewValidationError("patient", "patient input is required", nil)}
	}

	input, err := s.parser.Parse(&params.Patient)
	if err != nil {
		return nil, err
	}

	result := &RecommendResult{RunID: uuid.New().String(), Input: input}

	if params.Phenotype != nil && input.Genotype != domain.GenotypeKnown {
		if s.resolver == nil {
			result.PredictionNote = "phenotype prediction is not configured"
		} else {
			prediction, perr := s.resolver.Apply(ctx, input, phenotypeRequestFor(input, params.Phenotype))
			switch {
			case perr != nil:
				result.PredictionNote = "phenotype prediction unavailable; genotype treated as unknown"
			case input.Genotype != domain.GenotypeKnown:
				result.PredictionNote = "prediction below high confidence; genotype treated as unknown"
			}
			result.Prediction = prediction
		}
	}

	plan, err := s.planner.Assemble(ctx, input)
	if err != nil {
		return nil, err
	}
	result.Plan = plan
	result.ProcessingTime = time.Since(startTime)

	s.recordRun(ctx, result.RunID, params, plan)

	s.logger.WithFields(logrus.Fields{
		"run_id":          result.RunID,
		"request_id":      params.RequestID,
		"overall_risk":    plan.OverallRisk,
		"primary_drug":    plan.Primary.Drug,
		"predicted":       result.Prediction != nil,
		"processing_time": result.ProcessingTime,
	}).Info("Recommendation completed")

	return result, nil
}

func (s *AdvisorService) recordRun(ctx context.Context, runID string, params *RecommendParams, plan *domain.TreatmentPlan) {
	if s.audit == nil {
		return
	}
	source := params.Source
	if source == "" {
		source = "api"
	}
	run, err := domain.NewPlanRun(runID, params.RequestID, source, plan)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to summarize plan run")
		return
	}
	if err := s.audit.SaveRun(ctx, run); err != nil {
		s.logger.WithError(err).WithField("run_id", runID).Warn("Failed to record plan run")
	}
}

func phenotypeRequestFor(input *domain.PatientInput, f *PhenotypeFeatures) *domain.PhenotypeRequest {
	req := &domain.PhenotypeRequest{
		Weight:                input.Weight(),
		Sex:                   f.Sex,
		CYP2D6Inhibitor:       f.CYP2D6Inhibitor,
		PriorCodeineResponse:  f.PriorCodeineResponse,
		PriorTramadolResponse: f.PriorTramadolResponse,
	}
	if input.AgeYears != nil {
		req.Age = *input.AgeYears
	}
	if input.EGFR != nil {
		req.EGFR = *input.EGFR
	}
	return req
}

// PredictPhenotype exposes the resolver directly
func (s *AdvisorService) PredictPhenotype(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	if s.resolver == nil {
		return nil, domain.ErrPhenotypeUnavailable
	}
	return s.resolver.Resolve(ctx, req)
}

// DoseParams represents parameters for a single-drug dose calculation
type DoseParams struct {
	Drug       string `json:"drug"`
	Severity   string `json:"severity"`
	Weight     string `json:"weight,omitempty"`
	WeightUnit string `json:"weight_unit,omitempty"`
}

// CalculateDose returns the starting adult dose line for one drug. Weight is required only
// for weight-based drugs.
func (s *AdvisorService) CalculateDose(params *DoseParams) (*domain.DosingLine, error) {
	drug := domain.Drug(strings.ToLower(strings.TrimSpace(params.Drug)))
	if !drug.IsValid() {
		return nil, domain.NewValidationError("drug", domain.ErrUnknownDrug.Error(), params.Drug)
	}

	severity := domain.SeverityModerate
	if sv := strings.ToLower(strings.TrimSpace(params.Severity)); sv != "" {
		severity = domain.Severity(sv)
		if !severity.IsValid() {
			return nil, domain.NewValidationError("severity", domain.ErrInvalidSeverity.Error(), params.Severity)
		}
	}

	if _, weightBased := DoseTable[drug]; weightBased {
		w := parseNumber(params.Weight)
		if w == nil {
			return nil, domain.NewValidationError("weight", "weight is required", params.Weight)
		}
		kg, err := units.NormalizeWeight(*w, domain.WeightUnit(strings.ToLower(strings.TrimSpace(params.WeightUnit))))
		if err != nil {
			return nil, domain.NewValidationError("weight_unit", err.Error(), params.WeightUnit)
		}
		line, err := WeightBasedDose(drug, severity, kg)
		if err != nil {
			return nil, err
		}
		return &line, nil
	}

	switch drug {
	case domain.DrugAcetaminophen:
		line := AcetaminophenDose(severity)
		return &line, nil
	case domain.DrugNSAIDs:
		line := NSAIDDose(severity)
		return &line, nil
	}

	line, err := FixedDose(drug)
	if err != nil {
		return nil, fmt.Errorf("%w: %s has no dosing line", domain.ErrNoWeightBasedDosing, drug)
	}
	return &line, nil
}

// RenalAssessment is the renal part of a plan, computed on its own
type RenalAssessment struct {
	EGFR          *float64             `json:"egfr"`
	Category      domain.RenalCategory `json:"category"`
	NSAIDAllowed  bool                 `json:"nsaid_allowed"`
	PreferredIV   domain.Drug          `json:"preferred_iv_opioid"`
	Alerts        []domain.AlertCode   `json:"alerts"`
	StopRules     []domain.StopRule    `json:"stop_rules"`
	NSAIDAdvisory []domain.Advisory    `json:"nsaid_advisory,omitempty"`
}

// AssessRenal categorizes eGFR and reports the renal gates that follow from it
func (s *AdvisorService) AssessRenal(eGFR *float64, suspectedACS bool) *RenalAssessment {
	category := RenalCategoryFor(eGFR)
	assessment := &RenalAssessment{
		EGFR:         eGFR,
		Category:     category,
		NSAIDAllowed: NSAIDAllowed(category, suspectedACS),
		PreferredIV:  SelectPrimaryOpioid(SelectionContext{Renal: category, SuspectedACS: suspectedACS}),
		Alerts:       []domain.AlertCode{},
		StopRules:    StopRulesFor(category),
	}

	switch category {
	case domain.RenalSevere:
		assessment.Alerts = append(assessment.Alerts, domain.AlertRenalSevere)
	case domain.RenalModerate:
		assessment.Alerts = append(assessment.Alerts, domain.AlertRenalModerate)
	}

	if lines, err := SafetyLines(domain.DrugNSAIDs, SafetyContext{Renal: category}); err == nil {
		assessment.NSAIDAdvisory = lines
	}
	return assessment
}
