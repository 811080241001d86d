// Package units converts body weight and drug amounts between the units a clinician
// enters and reads, and formats doses for display.
package units

import (
	"fmt"
	"math"

	"github.com/scdaid-mcp-server/internal/domain"
)

// KgPerLb is the exact international avoirdupois pound.
const KgPerLb = 0.45359237

// roundingEpsilon absorbs binary representation error before half-up rounding,
// so that 0.15 * 70 = 10.499999... still rounds to 11.
const roundingEpsilon = 1e-9

// LbToKg converts pounds to kilograms.
func LbToKg(lb float64) float64 {
	return lb * KgPerLb
}

// NormalizeWeight converts a weight in the given unit to kilograms.
func NormalizeWeight(value float64, unit domain.WeightUnit) (float64, error) {
	switch unit {
	case domain.WeightKg, "":
		return value, nil
	case domain.WeightLb:
		return LbToKg(value), nil
	default:
		return 0, fmt.Errorf("normalizing weight: %w: %q", domain.ErrInvalidWeightUnit, unit)
	}
}

// MgToMcg converts milligrams to micrograms.
func MgToMcg(mg float64) float64 {
	return mg * 1000
}

// McgToMg converts micrograms to milligrams.
func McgToMg(mcg float64) float64 {
	return mcg / 1000
}

func MgToG(mg float64) float64 {
	return mg / 1000
}

func GToMg(g float64) float64 {
	return g * 1000
}

// ToMg converts an amount in unit to milligrams.
func ToMg(amount float64, unit domain.DoseUnit) (float64, error) {
	switch unit {
	case domain.DoseUnitMg:
		return amount, nil
	case domain.DoseUnitMcg:
		return McgToMg(amount), nil
	case domain.DoseUnitG:
		return GToMg(amount), nil
	default:
		return 0, fmt.Errorf("converting dose: %w: %q", domain.ErrInvalidDoseUnit, unit)
	}
}

// FromMg converts milligrams to an amount in unit.
func FromMg(mg float64, unit domain.DoseUnit) (float64, error) {
	switch unit {
	case domain.DoseUnitMg:
		return mg, nil
	case domain.DoseUnitMcg:
		return MgToMcg(mg), nil
	case domain.DoseUnitG:
		return MgToG(mg), nil
	default:
		return 0, fmt.Errorf("converting dose: %w: %q", domain.ErrInvalidDoseUnit, unit)
	}
}

// RoundToStep rounds x to the nearest multiple of step, halves rounding up.
// A non-positive step returns x unchanged.
func RoundToStep(x, step float64) float64 {
	if step <= 0 {
		return x
	}
	// ketamine 0.15 mg/kg at 70 kg must come out as 11 mg, not 10
	r := math.Floor(x/step+0.5+roundingEpsilon) * step
	// trim float noise such as 0.7000000000000001
	return math.Round(r*1e6) / 1e6
}

// FormatDose renders a canonical milligram amount in the requested display unit.
// The alternate unit follows in parentheses, except for mg doses of 2 mg or more.
func FormatDose(mg float64, unit domain.DoseUnit) string {
	if math.IsNaN(mg) || math.IsInf(mg, 0) {
		return "-"
	}
	switch unit {
	case domain.DoseUnitMcg:
		return fmt.Sprintf("%.0f mcg (%.3f mg)", MgToMcg(mg), mg)
	case domain.DoseUnitG:
		return fmt.Sprintf("%.3f g (%.0f mg)", MgToG(mg), mg)
	default:
		if mg < 2 {
			return fmt.Sprintf("%.2f mg (%.0f mcg)", mg, MgToMcg(mg))
		}
		return fmt.Sprintf("%.2f mg", mg)
	}
}

// FormatAmount renders a bare amount with its unit, trimming needless decimals.
func FormatAmount(amount float64, unit domain.DoseUnit) string {
	if amount == math.Trunc(amount) {
		return fmt.Sprintf("%.0f %s", amount, unit)
	}
	return fmt.Sprintf("%g %s", amount, unit)
}
