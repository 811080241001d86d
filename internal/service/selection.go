package service

import (
	"github.com/scdaid-mcp-server/internal/domain"
)

// SelectionContext carries the factors that route the primary opioid.
type SelectionContext struct {
	Renal           domain.RenalCategory
	MorphineAllergy bool
	SuspectedACS    bool
	RespiratoryRisk bool
}

// SelectPrimaryOpioid picks the IV opioid for moderate and severe pain. Acute respiratory
// concerns route to fentanyl titration ahead of everything else; a morphine allergy also
// routes to fentanyl, then renal impairment steers away from morphine.
func SelectPrimaryOpioid(sc SelectionContext) domain.Drug {
	switch {
	case sc.SuspectedACS || sc.RespiratoryRisk:
		return domain.DrugFentanyl
	case sc.MorphineAllergy:
		return domain.DrugFentanyl
	case sc.Renal == domain.RenalSevere:
		return domain.DrugFentanyl
	case sc.Renal == domain.RenalModerate:
		return domain.DrugHydromorphone
	default:
		return domain.DrugMorphine
	}
}

// ChooseNSAIDVariant returns the default NSAID for the severity when NSAIDs are allowed.
func ChooseNSAIDVariant(severity domain.Severity) domain.Drug {
	if severity == domain.SeverityModerate || severity == domain.SeveritySevere {
		return domain.DrugKetorolac
	}
	return domain.DrugIbuprofen
}
