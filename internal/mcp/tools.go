package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/service"
)

// RecommendInput is the argument of recommend_analgesia
type RecommendInput struct {
	Age             *float64 `json:"age,omitempty" jsonschema:"patient age in years, required"`
	Weight          *float64 `json:"weight,omitempty" jsonschema:"body weight, kilograms unless weight_unit is lb, required"`
	WeightUnit      string   `json:"weight_unit,omitempty" jsonschema:"kg or lb"`
	EGFR            *float64 `json:"egfr,omitempty" jsonschema:"estimated glomerular filtration rate in mL/min/1.73m2, required"`
	CrisesPerYear   *float64 `json:"crises_per_year,omitempty" jsonschema:"number of vaso-occlusive crises in the past year"`
	Severity        string   `json:"severity,omitempty" jsonschema:"mild, moderate or severe; defaults to moderate"`
	Genotype        string   `json:"genotype,omitempty" jsonschema:"known or unknown CYP2D6 genotype status"`
	Phenotype       string   `json:"phenotype,omitempty" jsonschema:"CYP2D6 phenotype code PM, IM, EM or UM when genotype is known"`
	OpioidTolerant  bool     `json:"opioid_tolerant,omitempty"`
	Sedatives       bool     `json:"sedatives,omitempty" jsonschema:"concurrent benzodiazepines or other sedatives"`
	MorphineAllergy bool     `json:"morphine_allergy,omitempty"`
	RespiratoryRisk bool     `json:"respiratory_risk,omitempty" jsonschema:"sleep apnea, chronic lung disease or similar"`
	SuspectedACS    bool     `json:"suspected_acs,omitempty" jsonschema:"suspected acute chest syndrome"`

	Sex                   string `json:"sex,omitempty" jsonschema:"M or F; supplying any phenotype feature requests a CYP2D6 prediction when genotype is unknown"`
	CYP2D6Inhibitor       bool   `json:"cyp2d6_inhibitor,omitempty"`
	PriorCodeineResponse  string `json:"prior_codeine_response,omitempty" jsonschema:"effective, ineffective, toxicity or unknown"`
	PriorTramadolResponse string `json:"prior_tramadol_response,omitempty" jsonschema:"effective, ineffective, toxicity or unknown"`

	Language string `json:"language,omitempty" jsonschema:"en or ar"`
	DoseUnit string `json:"dose_unit,omitempty" jsonschema:"mg or mcg"`
	Format   string `json:"format,omitempty" jsonschema:"markdown (default), html or json"`
}

// RecommendOutput is the machine-readable part of a recommend_analgesia result
type RecommendOutput struct {
	RunID          string                      `json:"run_id"`
	Fingerprint    string                      `json:"fingerprint"`
	Plan           *domain.TreatmentPlan       `json:"plan"`
	Prediction     *domain.PhenotypePrediction `json:"prediction,omitempty"`
	PredictionNote string                      `json:"prediction_note,omitempty"`
}

// DoseInput is the argument of calculate_opioid_dose
type DoseInput struct {
	Drug       string   `json:"drug" jsonschema:"drug code such as morphine, hydromorphone, fentanyl or ketamine"`
	Severity   string   `json:"severity,omitempty" jsonschema:"mild, moderate or severe; defaults to moderate"`
	Weight     *float64 `json:"weight,omitempty" jsonschema:"required for weight-based drugs"`
	WeightUnit string   `json:"weight_unit,omitempty" jsonschema:"kg or lb"`
	DoseUnit   string   `json:"dose_unit,omitempty" jsonschema:"mg or mcg"`
}

// RenalInput is the argument of assess_renal_risk
type RenalInput struct {
	EGFR         *float64 `json:"egfr,omitempty" jsonschema:"estimated glomerular filtration rate; omitted means unknown"`
	SuspectedACS bool     `json:"suspected_acs,omitempty"`
}

// PredictInput is the argument of predict_cyp2d6_phenotype
type PredictInput struct {
	Age                   float64 `json:"age"`
	Weight                float64 `json:"weight" jsonschema:"body weight in kilograms"`
	EGFR                  float64 `json:"egfr"`
	Sex                   string  `json:"sex,omitempty" jsonschema:"M or F"`
	CYP2D6Inhibitor       bool    `json:"cyp2d6_inhibitor,omitempty"`
	PriorCodeineResponse  string  `json:"prior_codeine_response,omitempty"`
	PriorTramadolResponse string  `json:"prior_tramadol_response,omitempty"`
}

// registerTools registers every tool with the go-sdk server
func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: "recommend_analgesia",
		Description: "Build a first-line analgesia plan for a vaso-occlusive crisis in sickle cell disease. " +
			"Returns primary therapy, regimen, starting doses, alternatives, drugs to avoid, monitoring and stop rules.",
	}, s.handleRecommend)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "calculate_opioid_dose",
		Description: "Return the starting adult dose line for one analgesic at a given pain severity.",
	}, s.handleCalculateDose)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "assess_renal_risk",
		Description: "Categorize eGFR and report whether NSAIDs are allowed and which IV opioid is preferred.",
	}, s.handleAssessRenal)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "predict_cyp2d6_phenotype",
		Description: "Predict CYP2D6 metabolizer phenotype from clinical features when genotype is unknown.",
	}, s.handlePredictPhenotype)

	s.registerFeedbackTools()

	s.logger.Info("Registered MCP tools")
}

func (s *Server) handleRecommend(ctx context.Context, req *mcp.CallToolRequest, in RecommendInput) (*mcp.CallToolResult, any, error) {
	opts, err := s.opts.Display.With(in.Language, in.DoseUnit)
	if err != nil {
		return s.createErrorResult("Invalid display options", err), nil, nil
	}

	result, err := s.advisor.Recommend(ctx, &service.RecommendParams{
		Patient:   in.patient(),
		Phenotype: in.features(),
		Source:    "mcp",
	})
	if err != nil {
		return s.createErrorResult("Invalid patient input", err), nil, nil
	}

	fingerprint, err := domain.Fingerprint(result.Plan)
	if err != nil {
		return s.createErrorResult("Failed to fingerprint plan", err), nil, nil
	}
	out := RecommendOutput{
		RunID:          result.RunID,
		Fingerprint:    fingerprint,
		Plan:           result.Plan,
		Prediction:     result.Prediction,
		PredictionNote: result.PredictionNote,
	}

	doc, err := render.NewRenderer(opts).Build(result.Plan, result.Input)
	if err != nil {
		return s.createErrorResult("Failed to render plan", err), nil, nil
	}

	format := strings.ToLower(in.Format)
	if format == "" {
		format = render.FormatMarkdown
	}
	if format == render.FormatJSON {
		return s.createJSONResult(map[string]any{"result": out, "document": doc})
	}
	body, _, err := render.Encode(doc, format)
	if err != nil {
		return s.createErrorResult("Unsupported format", err), nil, nil
	}

	summary, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal recommendation: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id":       result.RunID,
		"overall_risk": result.Plan.OverallRisk,
		"format":       format,
	}).Debug("recommend_analgesia completed")

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: body},
			&mcp.TextContent{Text: string(summary)},
		},
	}, nil, nil
}

func (s *Server) handleCalculateDose(ctx context.Context, req *mcp.CallToolRequest, in DoseInput) (*mcp.CallToolResult, any, error) {
	opts, err := s.opts.Display.With("", in.DoseUnit)
	if err != nil {
		return s.createErrorResult("Invalid dose unit", err), nil, nil
	}

	line, err := s.advisor.CalculateDose(&service.DoseParams{
		Drug:       in.Drug,
		Severity:   in.Severity,
		Weight:     numberString(in.Weight),
		WeightUnit: in.WeightUnit,
	})
	if err != nil {
		return s.createErrorResult("Cannot calculate dose", err), nil, nil
	}

	return s.createJSONResult(map[string]any{
		"line": line,
		"text": render.NewRenderer(opts).DoseText(*line),
	})
}

func (s *Server) handleAssessRenal(ctx context.Context, req *mcp.CallToolRequest, in RenalInput) (*mcp.CallToolResult, any, error) {
	return s.createJSONResult(s.advisor.AssessRenal(in.EGFR, in.SuspectedACS))
}

func (s *Server) handlePredictPhenotype(ctx context.Context, req *mcp.CallToolRequest, in PredictInput) (*mcp.CallToolResult, any, error) {
	if in.Weight <= 0 {
		return s.createErrorResult("Invalid features", domain.ErrNonPositiveWeight), nil, nil
	}

	prediction, err := s.advisor.PredictPhenotype(ctx, &domain.PhenotypeRequest{
		Age:                   in.Age,
		Weight:                in.Weight,
		EGFR:                  in.EGFR,
		Sex:                   in.Sex,
		CYP2D6Inhibitor:       in.CYP2D6Inhibitor,
		PriorCodeineResponse:  domain.PriorResponse(strings.ToLower(in.PriorCodeineResponse)),
		PriorTramadolResponse: domain.PriorResponse(strings.ToLower(in.PriorTramadolResponse)),
	})
	if err != nil {
		if !errors.Is(err, domain.ErrPhenotypeUnavailable) {
			err = errors.Join(domain.ErrPhenotypeUnavailable, err)
		}
		return s.createErrorResult("Phenotype prediction failed", err), nil, nil
	}
	return s.createJSONResult(prediction)
}

func (in RecommendInput) patient() service.RawPatientInput {
	return service.RawPatientInput{
		Age:             numberString(in.Age),
		Weight:          numberString(in.Weight),
		WeightUnit:      in.WeightUnit,
		EGFR:            numberString(in.EGFR),
		CrisesPerYear:   numberString(in.CrisesPerYear),
		Severity:        in.Severity,
		Genotype:        in.Genotype,
		Phenotype:       in.Phenotype,
		OpioidTolerant:  in.OpioidTolerant,
		Sedatives:       in.Sedatives,
		MorphineAllergy: in.MorphineAllergy,
		RespiratoryRisk: in.RespiratoryRisk,
		SuspectedACS:    in.SuspectedACS,
	}
}

// features returns nil when no phenotype feature was supplied, so no prediction is requested
func (in RecommendInput) features() *service.PhenotypeFeatures {
	if in.Sex == "" && !in.CYP2D6Inhibitor && in.PriorCodeineResponse == "" && in.PriorTramadolResponse == "" {
		return nil
	}
	return &service.PhenotypeFeatures{
		Sex:                   in.Sex,
		CYP2D6Inhibitor:       in.CYP2D6Inhibitor,
		PriorCodeineResponse:  domain.PriorResponse(strings.ToLower(in.PriorCodeineResponse)),
		PriorTramadolResponse: domain.PriorResponse(strings.ToLower(in.PriorTramadolResponse)),
	}
}

func numberString(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// createJSONResult returns v as indented JSON text
func (s *Server) createJSONResult(v any) (*mcp.CallToolResult, any, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(b)}},
	}, nil, nil
}

// createErrorResult creates an error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
