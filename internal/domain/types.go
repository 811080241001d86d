// Package domain contains the core entities and enumerations for analgesia decision support
// in adult sickle cell disease vaso-occlusive crisis (VOC).
//
// Every value the engine consumes or produces is an enumerated identifier or a number, so the
// same plan can be rendered in any display language without re-running the rules.
//
// Reference: Saudi MOH Acute Pain Protocol for SCD; CPIC Guideline for CYP2D6 and Opioid Therapy (2021);
// ASH 2020 Guidelines for Sickle Cell Disease: Management of Acute and Chronic Pain.
package domain

import (
	"errors"
	"strings"
)

// Severity is the clinician-assessed pain severity of the current crisis.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// GenotypeAvailability records whether a CYP2D6 genotype result exists.
type GenotypeAvailability string

const (
	GenotypeKnown   GenotypeAvailability = "known"
	GenotypeUnknown GenotypeAvailability = "unknown"
)

// Phenotype is the CYP2D6 metabolizer phenotype.
type Phenotype string

const (
	PhenotypeExtensive    Phenotype = "EM"
	PhenotypeIntermediate Phenotype = "IM"
	PhenotypePoor         Phenotype = "PM"
	PhenotypeUltrarapid   Phenotype = "UM"
)

// RenalCategory is the stratified kidney function derived from eGFR.
type RenalCategory string

const (
	RenalNormal   RenalCategory = "normal"
	RenalModerate RenalCategory = "moderate"
	RenalSevere   RenalCategory = "severe"
	RenalUnknown  RenalCategory = "unknown"
)

// OverallRisk is the aggregate safety tier used for the plan banner.
type OverallRisk string

const (
	RiskLow      OverallRisk = "Low"
	RiskModerate OverallRisk = "Moderate"
	RiskHigh     OverallRisk = "High"
)

// WeightUnit is the unit a body weight arrives in.
type WeightUnit string

const (
	WeightKg WeightUnit = "kg"
	WeightLb WeightUnit = "lb"
)

// DoseUnit is the display unit selected for doses.
type DoseUnit string

const (
	DoseUnitMg  DoseUnit = "mg"
	DoseUnitMcg DoseUnit = "mcg"
	DoseUnitG   DoseUnit = "g"
)

// Route is the administration route of a dosing line.
type Route string

const (
	RouteIV   Route = "IV"
	RoutePO   Route = "PO"
	RoutePOIV Route = "PO/IV"
)

// Validation errors for clinical input integrity
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidSeverity      = errors.New("invalid pain severity")
	ErrInvalidPhenotype     = errors.New("invalid CYP2D6 phenotype")
	ErrInvalidAvailability  = errors.New("invalid genotype availability")
	ErrInvalidWeightUnit    = errors.New("invalid weight unit")
	ErrInvalidDoseUnit      = errors.New("invalid dose unit")
	ErrNonPositiveWeight    = errors.New("weight must be positive for weight-based dosing")
	ErrUnknownDrug          = errors.New("unknown drug")
	ErrNoWeightBasedDosing  = errors.New("drug has no weight-based dosing rule")
	ErrPhenotypeUnavailable = errors.New("phenotype prediction unavailable")
)

// IsValid reports whether the severity is one of the three supported levels.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid validates the genotype availability.
func (g GenotypeAvailability) IsValid() bool {
	return g == GenotypeKnown || g == GenotypeUnknown
}

func (g GenotypeAvailability) String() string {
	return string(g)
}

// IsValid validates the phenotype code.
func (p Phenotype) IsValid() bool {
	switch p {
	case PhenotypeExtensive, PhenotypeIntermediate, PhenotypePoor, PhenotypeUltrarapid:
		return true
	default:
		return false
	}
}

func (p Phenotype) String() string {
	return string(p)
}

// IsHighRisk reports whether the phenotype makes codeine and tramadol unsafe.
func (p Phenotype) IsHighRisk() bool {
	return p == PhenotypePoor || p == PhenotypeUltrarapid
}

// ParsePhenotype accepts the engine codes plus the external "NM" (normal metabolizer)
// code, which maps onto EM.
func ParsePhenotype(code string) (Phenotype, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "NM" {
		return PhenotypeExtensive, nil
	}
	p := Phenotype(c)
	if !p.IsValid() {
		return "", ErrInvalidPhenotype
	}
	return p, nil
}

func (r RenalCategory) IsValid() bool {
	switch r {
	case RenalNormal, RenalModerate, RenalSevere, RenalUnknown:
		return true
	default:
		return false
	}
}

func (r RenalCategory) String() string {
	return string(r)
}

func (o OverallRisk) String() string {
	return string(o)
}

// IsValid validates the overall risk tier.
func (o OverallRisk) IsValid() bool {
	switch o {
	case RiskLow, RiskModerate, RiskHigh:
		return true
	default:
		return false
	}
}

func (u WeightUnit) IsValid() bool {
	return u == WeightKg || u == WeightLb
}

func (u DoseUnit) IsValid() bool {
	switch u {
	case DoseUnitMg, DoseUnitMcg, DoseUnitG:
		return true
	default:
		return false
	}
}

func (u DoseUnit) String() string {
	return string(u)
}
