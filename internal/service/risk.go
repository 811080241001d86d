package service

import (
	"github.com/scdaid-mcp-server/internal/domain"
)

// Renal stratification thresholds in mL/min/1.73m².
const (
	RenalSevereBelow   = 30.0
	RenalModerateBelow = 60.0
)

// RenalCategoryFor stratifies eGFR. A nil eGFR is unknown, never an error.
func RenalCategoryFor(eGFR *float64) domain.RenalCategory {
	if eGFR == nil {
		return domain.RenalUnknown
	}
	switch v := *eGFR; {
	case v < RenalSevereBelow:
		return domain.RenalSevere
	case v < RenalModerateBelow:
		return domain.RenalModerate
	default:
		return domain.RenalNormal
	}
}

// RiskContext carries the inputs of the overall risk ladder.
type RiskContext struct {
	Renal           domain.RenalCategory
	SuspectedACS    bool
	RespiratoryRisk bool
	Sedatives       bool
	Genotype        domain.GenotypeAvailability
	Phenotype       domain.Phenotype
}

// riskRule is one rung of the overall risk ladder
type riskRule struct {
	Name    string
	Tier    domain.OverallRisk
	Applies func(rc RiskContext) bool
}

// riskLadder is evaluated top to bottom; the first rule that applies decides the tier.
var riskLadder = []riskRule{
	{
		Name: "acute_chest_or_respiratory",
		Tier: domain.RiskHigh,
		Applies: func(rc RiskContext) bool {
			return rc.SuspectedACS || rc.RespiratoryRisk
		},
	},
	{
		Name:    "concomitant_sedatives",
		Tier:    domain.RiskHigh,
		Applies: func(rc RiskContext) bool { return rc.Sedatives },
	},
	{
		Name:    "severe_renal_impairment",
		Tier:    domain.RiskHigh,
		Applies: func(rc RiskContext) bool { return rc.Renal == domain.RenalSevere },
	},
	{
		Name: "cyp2d6_poor_or_ultrarapid",
		Tier: domain.RiskHigh,
		Applies: func(rc RiskContext) bool {
			return rc.Genotype == domain.GenotypeKnown && rc.Phenotype.IsHighRisk()
		},
	},
	{
		Name:    "moderate_renal_impairment",
		Tier:    domain.RiskModerate,
		Applies: func(rc RiskContext) bool { return rc.Renal == domain.RenalModerate },
	},
}

// OverallRiskFor applies the risk ladder and returns the tier with the name of the rule
// that decided it. Low is the fall-through tier.
func OverallRiskFor(rc RiskContext) (domain.OverallRisk, string) {
	for _, rule := range riskLadder {
		if rule.Applies(rc) {
			return rule.Tier, rule.Name
		}
	}
	return domain.RiskLow, "no_risk_factor"
}

// RiskContextFor builds a RiskContext from a patient input.
func RiskContextFor(input *domain.PatientInput) RiskContext {
	return RiskContext{
		Renal:           RenalCategoryFor(input.EGFR),
		SuspectedACS:    input.SuspectedACS,
		RespiratoryRisk: input.RespiratoryRisk,
		Sedatives:       input.Sedatives,
		Genotype:        input.Genotype,
		Phenotype:       input.Phenotype,
	}
}
