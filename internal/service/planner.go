package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
)

// hardAvoid is prepended to every avoid list regardless of input
var hardAvoid = domain.AvoidEntry{Drug: domain.DrugMeperidine, Reason: domain.AvoidHardBlock}

// PlanAssembler runs the analgesia rules in a single pass and returns a language-neutral plan.
// It holds no per-run state and is safe for concurrent use.
type PlanAssembler struct {
	logger *logrus.Logger
}

// NewPlanAssembler creates a new plan assembler
func NewPlanAssembler(logger *logrus.Logger) *PlanAssembler {
	return &PlanAssembler{logger: logger}
}

// derived holds the values computed once per run and shared by every step
type derived struct {
	renal     domain.RenalCategory
	nsaidOK   bool
	cpicOK    bool
	risk      domain.OverallRisk
	riskRule  string
	weightKg  float64
	safetyCtx SafetyContext
	planDrugs []domain.Drug
}

// Assemble validates input and builds the treatment plan. The only error it returns is a
// domain.ValidationErrors describing every missing or invalid field.
func (a *PlanAssembler) Assemble(ctx context.Context, input *domain.PatientInput) (*domain.TreatmentPlan, error) {
	if input == nil {
		return nil, domain.ValidationErrors{domain.NewValidationError("input", "patient input is required", nil)}
	}
	if err := input.Validate(); err != nil {
		a.logger.WithError(err).Debug("Rejected patient input")
		return nil, err
	}

	d := a.derive(input)
	plan := &domain.TreatmentPlan{
		Severity:         input.Severity,
		RenalCategory:    d.renal,
		OverallRisk:      d.risk,
		NSAIDAllowed:     d.nsaidOK,
		CPICOralsAllowed: d.cpicOK,
		Regimen:          []domain.RegimenLine{},
		SafetyAlerts:     []domain.AlertCode{},
		Dosing:           []domain.DosingLine{},
		Alternatives:     []domain.Alternative{},
		Avoid:            []domain.AvoidEntry{hardAvoid},
	}

	if input.IsMinor() {
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertAdultsOnly)
	}

	a.applyRenalAndNSAID(plan, d)
	a.applyCYP2D6(plan, input)
	a.applyAcuteFlags(plan, input)

	if input.Severity == domain.SeverityMild {
		a.buildMildPathway(plan, &d)
	} else {
		a.buildOpioidPathway(plan, input, &d)
	}

	plan.Recommendations = []domain.Recommendation{
		domain.RecommendMultimodal,
		domain.RecommendEscalateMonitoring,
	}
	plan.Monitoring = GeneralMonitoring()
	plan.StopRules = StopRulesFor(d.renal)

	blocks, err := SafetyBlocksFor(d.planDrugs, d.safetyCtx)
	if err != nil {
		// every plan drug is in the library, so this is a programming error
		return nil, fmt.Errorf("assembling safety blocks: %w", err)
	}
	plan.SafetyBlocks = blocks

	fields := logrus.Fields(plan.LogFields())
	fields["risk_rule"] = d.riskRule
	a.logger.WithFields(fields).Info("Assembled analgesia plan")

	return plan, nil
}

func (a *PlanAssembler) derive(input *domain.PatientInput) derived {
	rc := RiskContextFor(input)
	risk, rule := OverallRiskFor(rc)
	sc := SafetyContext{
		Renal:     rc.Renal,
		Genotype:  input.Genotype,
		Phenotype: input.Phenotype,
	}
	return derived{
		renal:     rc.Renal,
		nsaidOK:   NSAIDAllowed(rc.Renal, input.SuspectedACS),
		cpicOK:    CPICAllowsCodeineTramadol(input.Genotype, input.Phenotype),
		risk:      risk,
		riskRule:  rule,
		weightKg:  input.Weight(),
		safetyCtx: sc,
	}
}

func (a *PlanAssembler) applyRenalAndNSAID(plan *domain.TreatmentPlan, d derived) {
	switch d.renal {
	case domain.RenalSevere:
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertRenalSevere)
	case domain.RenalModerate:
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertRenalModerate)
	}

	if !d.nsaidOK {
		plan.Avoid = append(plan.Avoid, domain.AvoidEntry{Drug: domain.DrugNSAIDs, Reason: domain.AvoidNSAIDRenalACS})
		return
	}
	plan.Alternatives = append(plan.Alternatives,
		domain.Alternative{Drug: domain.DrugDiclofenac, Reason: domain.AltNSAIDOption},
		domain.Alternative{Drug: domain.DrugCelecoxib, Reason: domain.AltCOX2Option},
	)
}

func (a *PlanAssembler) applyCYP2D6(plan *domain.TreatmentPlan, input *domain.PatientInput) {
	switch {
	case input.Genotype == domain.GenotypeKnown && input.Phenotype.IsHighRisk():
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertCYP2D6HighRisk)
		plan.Avoid = append(plan.Avoid,
			domain.AvoidEntry{Drug: domain.DrugCodeine, Reason: domain.AvoidCYP2D6HighRisk},
			domain.AvoidEntry{Drug: domain.DrugTramadol, Reason: domain.AvoidCYP2D6HighRisk},
		)
	case input.Genotype != domain.GenotypeKnown:
		plan.Avoid = append(plan.Avoid,
			domain.AvoidEntry{Drug: domain.DrugCodeine, Reason: domain.AvoidGenotypeUnknown},
			domain.AvoidEntry{Drug: domain.DrugTramadol, Reason: domain.AvoidGenotypeUnknown},
		)
	}
}

func (a *PlanAssembler) applyAcuteFlags(plan *domain.TreatmentPlan, input *domain.PatientInput) {
	if input.RespiratoryRisk || input.Sedatives {
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertRespiratorySedation)
	}
	if input.SuspectedACS {
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertSuspectedACS)
	}
}

func (a *PlanAssembler) buildMildPathway(plan *domain.TreatmentPlan, d *derived) {
	plan.Primary = domain.PrimaryTherapy{Kind: domain.PrimaryNonOpioid}

	regimen := domain.RegimenLine{Role: domain.RegimenNonOpioid, Drugs: []domain.Drug{domain.DrugAcetaminophen}}
	a.addDosing(plan, d, AcetaminophenDose(domain.SeverityMild))
	if d.nsaidOK {
		regimen.Drugs = append(regimen.Drugs, domain.DrugNSAIDs)
		a.addDosing(plan, d, NSAIDDose(domain.SeverityMild))
	}
	plan.Regimen = append(plan.Regimen, regimen)

	if d.cpicOK {
		plan.Alternatives = append(plan.Alternatives,
			domain.Alternative{Drug: domain.DrugCodeine, Reason: domain.AltMildPainStepDown},
			domain.Alternative{Drug: domain.DrugTramadol, Reason: domain.AltMildPainStepDown},
		)
	}
}

func (a *PlanAssembler) buildOpioidPathway(plan *domain.TreatmentPlan, input *domain.PatientInput, d *derived) {
	opioid := SelectPrimaryOpioid(SelectionContext{
		Renal:           d.renal,
		MorphineAllergy: input.MorphineAllergy,
		SuspectedACS:    input.SuspectedACS,
		RespiratoryRisk: input.RespiratoryRisk,
	})
	plan.Primary = domain.PrimaryTherapy{Kind: domain.PrimaryOpioid, Drug: opioid}
	d.planDrugs = append(d.planDrugs, opioid)

	adjuncts := domain.RegimenLine{Role: domain.RegimenAdjuncts, Drugs: []domain.Drug{domain.DrugAcetaminophen}}
	if d.nsaidOK {
		adjuncts.Drugs = append(adjuncts.Drugs, domain.DrugNSAIDs)
	}
	plan.Regimen = append(plan.Regimen,
		domain.RegimenLine{Role: domain.RegimenPreferredOpioid, Drugs: []domain.Drug{opioid}},
		adjuncts,
	)

	if line, err := IVOpioidDose(opioid, input.Severity, d.weightKg); err == nil {
		a.addDosing(plan, d, line)
	} else if errors.Is(err, domain.ErrNonPositiveWeight) {
		a.logger.WithField("drug", opioid).Warn("Omitting IV opioid dosing line: weight not positive")
	}

	a.addDosing(plan, d, AcetaminophenDose(input.Severity))
	if d.nsaidOK {
		a.addDosing(plan, d, NSAIDDose(input.Severity))
	}

	if KetamineActive(input.Severity, input.OpioidTolerant) {
		if line, err := KetamineDose(d.weightKg); err == nil {
			a.addDosing(plan, d, line)
		} else {
			a.logger.WithError(err).Warn("Omitting ketamine dosing line")
		}
	} else {
		plan.Alternatives = append(plan.Alternatives,
			domain.Alternative{Drug: domain.DrugKetamine, Reason: domain.AltKetamineConsider})
	}

	if OxycodoneTransitionAllowed(input.Severity, d.renal, input.RespiratoryRisk, input.SuspectedACS) {
		oxy, _ := FixedDose(domain.DrugOxycodone)
		plan.Alternatives = append(plan.Alternatives,
			domain.Alternative{Drug: domain.DrugOxycodone, Reason: domain.AltOralTransition, Dose: &oxy})
	}

	if input.Severity == domain.SeverityModerate && d.cpicOK {
		codeine, _ := FixedDose(domain.DrugCodeine)
		tramadol, _ := FixedDose(domain.DrugTramadol)
		plan.Alternatives = append(plan.Alternatives,
			domain.Alternative{Drug: domain.DrugCodeine, Reason: domain.AltCPICOralStepDown, Dose: &codeine},
			domain.Alternative{Drug: domain.DrugTramadol, Reason: domain.AltCPICOralStepDown, Dose: &tramadol},
		)
	}

	if input.MorphineAllergy {
		plan.SafetyAlerts = append(plan.SafetyAlerts, domain.AlertMorphineAllergy)
	}
}

func (a *PlanAssembler) addDosing(plan *domain.TreatmentPlan, d *derived, line domain.DosingLine) {
	plan.Dosing = append(plan.Dosing, line)
	d.planDrugs = append(d.planDrugs, line.Drug)
}
