package service

import (
	"github.com/scdaid-mcp-server/internal/domain"
)

// NSAIDAllowed gates the NSAID family. Only normal renal function without suspected
// acute chest syndrome qualifies; unknown renal function does not.
func NSAIDAllowed(renal domain.RenalCategory, suspectedACS bool) bool {
	return renal == domain.RenalNormal && !suspectedACS
}

// CPICAllowsCodeineTramadol gates the CYP2D6-dependent orals. An unknown genotype is
// treated as disallowed regardless of any phenotype value supplied.
func CPICAllowsCodeineTramadol(genotype domain.GenotypeAvailability, phenotype domain.Phenotype) bool {
	if genotype != domain.GenotypeKnown {
		return false
	}
	if phenotype.IsHighRisk() {
		return false
	}
	return phenotype == domain.PhenotypeExtensive || phenotype == domain.PhenotypeIntermediate
}

// OxycodoneTransitionAllowed gates the oral transition suggestion.
func OxycodoneTransitionAllowed(severity domain.Severity, renal domain.RenalCategory, respiratoryRisk, suspectedACS bool) bool {
	if severity == domain.SeveritySevere {
		return false
	}
	if renal == domain.RenalSevere {
		return false
	}
	return !respiratoryRisk && !suspectedACS
}

// KetamineActive reports whether low-dose ketamine belongs in the active dosing lines
// rather than the alternatives.
func KetamineActive(severity domain.Severity, opioidTolerant bool) bool {
	return opioidTolerant || severity == domain.SeveritySevere
}
