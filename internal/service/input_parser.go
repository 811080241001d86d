package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/pkg/units"
)

// RawPatientInput is patient data as it arrives from a form, a JSON body, an MCP tool
// call or CLI flags. Numeric fields are strings so that blank and malformed values can be
// reported together.
type RawPatientInput struct {
	Age             string `json:"age"`
	Weight          string `json:"weight"`
	WeightUnit      string `json:"weight_unit,omitempty"`
	EGFR            string `json:"egfr"`
	CrisesPerYear   string `json:"crises_per_year,omitempty"`
	Severity        string `json:"severity"`
	Genotype        string `json:"genotype,omitempty"`
	Phenotype       string `json:"phenotype,omitempty"`
	OpioidTolerant  bool   `json:"opioid_tolerant"`
	Sedatives       bool   `json:"sedatives"`
	MorphineAllergy bool   `json:"morphine_allergy"`
	RespiratoryRisk bool   `json:"respiratory_risk"`
	SuspectedACS    bool   `json:"suspected_acs"`
}

// InputParserService normalizes raw input into a domain.PatientInput
type InputParserService struct{}

// NewInputParserService creates a new input parser service
func NewInputParserService() *InputParserService {
	return &InputParserService{}
}

// Parse converts raw input. Missing or non-numeric age, weight and eGFR are collected into
// one domain.ValidationErrors alongside any invalid enum values.
func (p *InputParserService) Parse(raw *RawPatientInput) (*domain.PatientInput, error) {
	var errs domain.ValidationErrors
	input := &domain.PatientInput{
		OpioidTolerant:  raw.OpioidTolerant,
		Sedatives:       raw.Sedatives,
		MorphineAllergy: raw.MorphineAllergy,
		RespiratoryRisk: raw.RespiratoryRisk,
		SuspectedACS:    raw.SuspectedACS,
	}

	input.AgeYears = parseNumber(raw.Age)
	if input.AgeYears == nil {
		errs = append(errs, domain.NewValidationError("age", "age is required", raw.Age))
	}

	if w := parseNumber(raw.Weight); w == nil {
		errs = append(errs, domain.NewValidationError("weight", "weight is required", raw.Weight))
	} else {
		kg, err := units.NormalizeWeight(*w, domain.WeightUnit(strings.ToLower(strings.TrimSpace(raw.WeightUnit))))
		if err != nil {
			errs = append(errs, domain.NewValidationError("weight_unit", err.Error(), raw.WeightUnit))
		} else {
			input.WeightKg = &kg
		}
	}

	input.EGFR = parseNumber(raw.EGFR)
	if input.EGFR == nil {
		errs = append(errs, domain.NewValidationError("egfr", "eGFR is required", raw.EGFR))
	}

	// crises per year is context only; a bad value is dropped rather than rejected
	input.CrisesPerYear = parseNumber(raw.CrisesPerYear)

	input.Severity = domain.SeverityModerate
	if s := strings.ToLower(strings.TrimSpace(raw.Severity)); s != "" {
		input.Severity = domain.Severity(s)
		if !input.Severity.IsValid() {
			errs = append(errs, domain.NewValidationError("severity", domain.ErrInvalidSeverity.Error(), raw.Severity))
		}
	}

	input.Genotype = domain.GenotypeUnknown
	if g := strings.ToLower(strings.TrimSpace(raw.Genotype)); g != "" {
		input.Genotype = domain.GenotypeAvailability(g)
		if !input.Genotype.IsValid() {
			errs = append(errs, domain.NewValidationError("genotype", domain.ErrInvalidAvailability.Error(), raw.Genotype))
		}
	}

	input.Phenotype = domain.PhenotypeExtensive
	if input.Genotype == domain.GenotypeKnown && strings.TrimSpace(raw.Phenotype) != "" {
		ph, err := domain.ParsePhenotype(raw.Phenotype)
		if err != nil {
			errs = append(errs, domain.NewValidationError("phenotype", err.Error(), raw.Phenotype))
		} else {
			input.Phenotype = ph
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return input, nil
}

// parseNumber returns nil for blank, malformed or non-finite values.
func parseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
