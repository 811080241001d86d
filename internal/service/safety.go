package service

import (
	"fmt"

	"github.com/scdaid-mcp-server/internal/domain"
)

var nsaidFamilyAdvisories = []domain.Advisory{
	"nsaids.monitor",
	"nsaids.renal",
	"nsaids.cv",
	"nsaids.interactions",
	"nsaids.contra",
	"nsaids.stop",
}

// safetyLibrary maps every drug identifier to its monitoring advisories. Completeness is
// checked in init.
var safetyLibrary = map[domain.Drug][]domain.Advisory{
	domain.DrugAcetaminophen: {
		"acetaminophen.monitor",
		"acetaminophen.renal",
		"acetaminophen.hepatic",
		"acetaminophen.interactions",
		"acetaminophen.stop",
	},
	domain.DrugNSAIDs:     nsaidFamilyAdvisories,
	domain.DrugIbuprofen:  nsaidFamilyAdvisories,
	domain.DrugDiclofenac: nsaidFamilyAdvisories,
	domain.DrugCelecoxib:  nsaidFamilyAdvisories,
	domain.DrugKetorolac: {
		"ketorolac.monitor",
		"ketorolac.renal",
		"ketorolac.stop",
	},
	domain.DrugMorphine: {
		"morphine.monitor",
		"morphine.renal",
		"morphine.resp",
		"morphine.cv",
	},
	domain.DrugHydromorphone: {
		"hydromorphone.monitor",
		"hydromorphone.renal",
		"hydromorphone.resp",
	},
	domain.DrugFentanyl: {
		"fentanyl.monitor",
		"fentanyl.renal",
		"fentanyl.resp",
		"fentanyl.cv",
	},
	domain.DrugOxycodone: {
		"oxycodone.monitor",
		"oxycodone.renal",
		"oxycodone.interactions",
		"oxycodone.voc",
	},
	domain.DrugCodeine: {
		"codeine.not_recommended",
		"codeine.avoid",
	},
	domain.DrugTramadol: {
		"tramadol.monitor",
		"tramadol.renal",
		"tramadol.ssri",
		"tramadol.voc",
	},
	domain.DrugMeperidine: {
		"meperidine.not_recommended",
		"meperidine.avoid",
	},
	domain.DrugKetamine: {
		"ketamine.monitor",
		"ketamine.renal",
		"ketamine.contra",
		"ketamine.voc",
		"ketamine.stop",
	},
}

func init() {
	if missing := missingSafetyEntries(); len(missing) > 0 {
		panic(fmt.Sprintf("safety library incomplete: no advisories for %v", missing))
	}
}

func missingSafetyEntries() []domain.Drug {
	var missing []domain.Drug
	for _, d := range domain.AllDrugs {
		if len(safetyLibrary[d]) == 0 {
			missing = append(missing, d)
		}
	}
	return missing
}

// SafetyContext is the patient context that adds advisories ahead of the static lines.
type SafetyContext struct {
	Renal     domain.RenalCategory
	Genotype  domain.GenotypeAvailability
	Phenotype domain.Phenotype
}

// SafetyLines returns the advisories for drug. Contextual lines come first.
func SafetyLines(drug domain.Drug, sc SafetyContext) ([]domain.Advisory, error) {
	static, ok := safetyLibrary[drug]
	if !ok {
		return nil, fmt.Errorf("safety lines %s: %w", drug, domain.ErrUnknownDrug)
	}

	var lines []domain.Advisory
	if drug.IsNSAID() && sc.Renal == domain.RenalSevere {
		lines = append(lines, domain.AdvisoryRenalHighNSAID)
	}
	if drug == domain.DrugMorphine && (sc.Renal == domain.RenalModerate || sc.Renal == domain.RenalSevere) {
		lines = append(lines, domain.AdvisoryRenalCautionMorph)
	}
	if drug.IsCYP2D6Dependent() && (sc.Genotype != domain.GenotypeKnown || sc.Phenotype.IsHighRisk()) {
		lines = append(lines, domain.AdvisoryCYP2D6Risk)
	}

	return append(lines, static...), nil
}

// SafetyBlocksFor builds one block per distinct drug, in order of first appearance.
func SafetyBlocksFor(drugs []domain.Drug, sc SafetyContext) ([]domain.SafetyBlock, error) {
	seen := make(map[domain.Drug]bool, len(drugs))
	blocks := make([]domain.SafetyBlock, 0, len(drugs))
	for _, d := range drugs {
		if seen[d] {
			continue
		}
		seen[d] = true
		lines, err := SafetyLines(d, sc)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, domain.SafetyBlock{Drug: d, Lines: lines})
	}
	return blocks, nil
}

// GeneralMonitoring returns the monitoring lines that apply to every VOC admission.
func GeneralMonitoring() []domain.MonitoringLine {
	return []domain.MonitoringLine{
		domain.MonitorVitals,
		domain.MonitorScores,
		domain.MonitorLabs,
		domain.MonitorComplications,
	}
}

// StopRulesFor returns the safety stop rules. The renal rule applies below eGFR 30 only.
func StopRulesFor(renal domain.RenalCategory) []domain.StopRule {
	rules := []domain.StopRule{domain.StopRespiratory, domain.StopHypoxiaACS}
	if renal == domain.RenalSevere {
		rules = append(rules, domain.StopRenalSevere)
	}
	return append(rules, domain.StopCreatinine)
}

// AllAdvisories lists every advisory the library can emit, contextual lines included.
func AllAdvisories() []domain.Advisory {
	seen := map[domain.Advisory]bool{}
	out := []domain.Advisory{
		domain.AdvisoryRenalHighNSAID,
		domain.AdvisoryRenalCautionMorph,
		domain.AdvisoryCYP2D6Risk,
	}
	for _, a := range out {
		seen[a] = true
	}
	for _, d := range domain.AllDrugs {
		for _, a := range safetyLibrary[d] {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	return out
}
