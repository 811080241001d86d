package service

import (
	"fmt"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/pkg/units"
)

// DoseRule is a weight-based adult starting dose for one severity.
// RatePerKg and Cap are in the drug's native unit; a zero Cap means uncapped.
type DoseRule struct {
	RatePerKg float64
	Cap       float64
	Step      float64
}

// WeightBasedRegimen describes how one drug is dosed by weight.
type WeightBasedRegimen struct {
	Unit       domain.DoseUnit
	Route      domain.Route
	Interval   string
	Caveats    []domain.Caveat
	BySeverity map[domain.Severity]DoseRule
}

// DoseTable holds every weight-based regimen. Thresholds live here, not in branches.
var DoseTable = map[domain.Drug]WeightBasedRegimen{
	domain.DrugMorphine: {
		Unit:     domain.DoseUnitMg,
		Route:    domain.RouteIV,
		Interval: "q2–4h PRN",
		BySeverity: map[domain.Severity]DoseRule{
			domain.SeverityMild:     {RatePerKg: 0.03, Cap: 4, Step: 0.5},
			domain.SeverityModerate: {RatePerKg: 0.05, Cap: 6, Step: 0.5},
			domain.SeveritySevere:   {RatePerKg: 0.10, Cap: 10, Step: 0.5},
		},
	},
	domain.DrugHydromorphone: {
		Unit:     domain.DoseUnitMg,
		Route:    domain.RouteIV,
		Interval: "q2–4h PRN",
		BySeverity: map[domain.Severity]DoseRule{
			domain.SeverityMild:     {RatePerKg: 0.005, Cap: 0.8, Step: 0.1},
			domain.SeverityModerate: {RatePerKg: 0.01, Cap: 1.0, Step: 0.1},
			domain.SeveritySevere:   {RatePerKg: 0.015, Cap: 1.5, Step: 0.1},
		},
	},
	domain.DrugFentanyl: {
		Unit:     domain.DoseUnitMcg,
		Route:    domain.RouteIV,
		Interval: "q1–2h PRN",
		BySeverity: map[domain.Severity]DoseRule{
			domain.SeverityMild:     {RatePerKg: 0.5, Cap: 100, Step: 5},
			domain.SeverityModerate: {RatePerKg: 1.0, Cap: 100, Step: 5},
			domain.SeveritySevere:   {RatePerKg: 1.5, Cap: 100, Step: 5},
		},
	},
	domain.DrugKetamine: {
		Unit:     domain.DoseUnitMg,
		Route:    domain.RouteIV,
		Interval: "slow IV/short infusion",
		Caveats:  []domain.Caveat{domain.CaveatKetamineInfuse},
		BySeverity: map[domain.Severity]DoseRule{
			domain.SeverityMild:     {RatePerKg: 0.15, Step: 1},
			domain.SeverityModerate: {RatePerKg: 0.15, Step: 1},
			domain.SeveritySevere:   {RatePerKg: 0.15, Step: 1},
		},
	},
}

// WeightBasedDose computes the starting dose for drug at severity. Weight must be
// positive; the caller omits the dosing line on ErrNonPositiveWeight.
func WeightBasedDose(drug domain.Drug, severity domain.Severity, weightKg float64) (domain.DosingLine, error) {
	regimen, ok := DoseTable[drug]
	if !ok {
		return domain.DosingLine{}, fmt.Errorf("dosing %s: %w", drug, domain.ErrNoWeightBasedDosing)
	}
	rule, ok := regimen.BySeverity[severity]
	if !ok {
		return domain.DosingLine{}, fmt.Errorf("dosing %s: %w: %q", drug, domain.ErrInvalidSeverity, severity)
	}
	if weightKg <= 0 {
		return domain.DosingLine{}, fmt.Errorf("dosing %s: %w", drug, domain.ErrNonPositiveWeight)
	}

	raw := rule.RatePerKg * weightKg
	capped := rule.Cap > 0 && raw > rule.Cap
	if capped {
		raw = rule.Cap
	}
	amount := units.RoundToStep(raw, rule.Step)

	mg, err := units.ToMg(amount, regimen.Unit)
	if err != nil {
		return domain.DosingLine{}, fmt.Errorf("dosing %s: %w", drug, err)
	}

	return domain.DosingLine{
		Drug:       drug,
		Route:      regimen.Route,
		Basis:      domain.BasisWeight,
		NativeUnit: regimen.Unit,
		Amount:     amount,
		DoseMg:     mg,
		RatePerKg:  rule.RatePerKg,
		Cap:        rule.Cap,
		Capped:     capped,
		Interval:   regimen.Interval,
		Caveats:    append([]domain.Caveat(nil), regimen.Caveats...),
	}, nil
}

// IVOpioidDose is WeightBasedDose restricted to the three IV primary opioids.
func IVOpioidDose(drug domain.Drug, severity domain.Severity, weightKg float64) (domain.DosingLine, error) {
	if !drug.IsStrongOpioid() {
		return domain.DosingLine{}, fmt.Errorf("dosing %s: %w", drug, domain.ErrNoWeightBasedDosing)
	}
	return WeightBasedDose(drug, severity, weightKg)
}

// KetamineDose computes the low-dose ketamine adjunct bolus.
func KetamineDose(weightKg float64) (domain.DosingLine, error) {
	return WeightBasedDose(domain.DrugKetamine, domain.SeveritySevere, weightKg)
}

// fixedLines are the adult adjunct and oral lines that never scale with weight.
var fixedLines = map[domain.Drug]domain.DosingLine{
	domain.DrugIbuprofen: {
		Drug: domain.DrugIbuprofen, Route: domain.RoutePO, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitMg,
		RangeLow: 400, RangeHigh: 600, Interval: "q6–8h PRN", Caveats: []domain.Caveat{domain.CaveatRenalGIRisk},
	},
	domain.DrugKetorolac: {
		Drug: domain.DrugKetorolac, Route: domain.RouteIV, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitMg,
		RangeLow: 15, RangeHigh: 30, Interval: "q6h PRN", Caveats: []domain.Caveat{domain.CaveatMaxFiveDays},
	},
	domain.DrugOxycodone: {
		Drug: domain.DrugOxycodone, Route: domain.RoutePO, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitMg,
		RangeLow: 5, RangeHigh: 10, Interval: "q4–6h PRN", Caveats: []domain.Caveat{domain.CaveatOralTransition},
	},
	domain.DrugCodeine: {
		Drug: domain.DrugCodeine, Route: domain.RoutePO, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitMg,
		RangeLow: 30, RangeHigh: 60, Interval: "q4–6h PRN",
		Caveats: []domain.Caveat{domain.CaveatMildPainOnly, domain.CaveatAvoidPMUM},
	},
	domain.DrugTramadol: {
		Drug: domain.DrugTramadol, Route: domain.RoutePO, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitMg,
		RangeLow: 50, RangeHigh: 100, Interval: "q6h PRN", MaxDailyMg: 400,
		Caveats: []domain.Caveat{domain.CaveatAvoidPMUM},
	},
}

// FixedDose returns a copy of the fixed adult line for drug.
func FixedDose(drug domain.Drug) (domain.DosingLine, error) {
	line, ok := fixedLines[drug]
	if !ok {
		return domain.DosingLine{}, fmt.Errorf("fixed dose %s: %w", drug, domain.ErrUnknownDrug)
	}
	line.Caveats = append([]domain.Caveat(nil), line.Caveats...)
	return line, nil
}

// AcetaminophenDose returns the acetaminophen line. Mild pain uses the oral line; moderate
// and severe pain allow PO/IV and carry the liver-risk ceiling.
func AcetaminophenDose(severity domain.Severity) domain.DosingLine {
	line := domain.DosingLine{
		Drug:       domain.DrugAcetaminophen,
		Route:      domain.RoutePO,
		Basis:      domain.BasisFixed,
		NativeUnit: domain.DoseUnitG,
		RangeLow:   1,
		RangeHigh:  1,
		DoseMg:     1000,
		Interval:   "q6–8h",
		MaxDailyMg: 4000,
	}
	if severity != domain.SeverityMild {
		line.Route = domain.RoutePOIV
		line.Caveats = []domain.Caveat{domain.CaveatLiverRisk}
	}
	return line
}

// NSAIDDose returns the default NSAID line for the severity.
func NSAIDDose(severity domain.Severity) domain.DosingLine {
	line, _ := FixedDose(ChooseNSAIDVariant(severity))
	return line
}
