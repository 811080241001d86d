package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scdaid-mcp-server/internal/domain"
)

func newTestAssembler() *PlanAssembler {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Suppress logs during testing
	return NewPlanAssembler(logger)
}

func basePatient() *domain.PatientInput {
	return &domain.PatientInput{
		AgeYears:  domain.Float(30),
		WeightKg:  domain.Float(70),
		EGFR:      domain.Float(95),
		Severity:  domain.SeverityModerate,
		Genotype:  domain.GenotypeUnknown,
		Phenotype: domain.PhenotypeExtensive,
	}
}

func drugsOf(blocks []domain.SafetyBlock) []domain.Drug {
	out := make([]domain.Drug, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, b.Drug)
	}
	return out
}

func TestPlanAssembler_ScenarioSevereRenalFailure(t *testing.T) {
	input := basePatient()
	input.Severity = domain.SeveritySevere
	input.EGFR = domain.Float(25)
	input.Genotype = domain.GenotypeKnown
	input.Phenotype = domain.PhenotypeExtensive

	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.RenalSevere, plan.RenalCategory)
	assert.Equal(t, domain.RiskHigh, plan.OverallRisk)
	assert.Equal(t, domain.PrimaryTherapy{Kind: domain.PrimaryOpioid, Drug: domain.DrugFentanyl}, plan.Primary)
	assert.False(t, plan.NSAIDAllowed)

	fentanyl, ok := plan.DosingFor(domain.DrugFentanyl)
	require.True(t, ok)
	assert.Equal(t, 100.0, fentanyl.Amount)
	assert.Equal(t, domain.DoseUnitMcg, fentanyl.NativeUnit)
	assert.True(t, fentanyl.Capped)

	ketamine, ok := plan.DosingFor(domain.DrugKetamine)
	require.True(t, ok)
	assert.Equal(t, 11.0, ketamine.Amount)

	assert.Equal(t, hardAvoid, plan.Avoid[0])
	assert.True(t, plan.Avoids(domain.DrugNSAIDs))
	assert.False(t, plan.OffersAlternative(domain.DrugOxycodone))
	assert.False(t, plan.OffersAlternative(domain.DrugDiclofenac))
	assert.True(t, plan.HasAlert(domain.AlertRenalSevere))
	assert.Contains(t, plan.StopRules, domain.StopRenalSevere)

	assert.Equal(t, []domain.Drug{domain.DrugFentanyl, domain.DrugAcetaminophen, domain.DrugKetamine}, drugsOf(plan.SafetyBlocks))
}

func TestPlanAssembler_ScenarioMildUnknownGenotype(t *testing.T) {
	input := basePatient()
	input.Severity = domain.SeverityMild
	input.EGFR = domain.Float(90)
	input.WeightKg = domain.Float(60)

	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.PrimaryNonOpioid, plan.Primary.Kind)
	assert.Empty(t, plan.Primary.Drug)
	assert.Equal(t, domain.RiskLow, plan.OverallRisk)
	assert.True(t, plan.NSAIDAllowed)
	require.Len(t, plan.Regimen, 1)
	assert.Equal(t, []domain.Drug{domain.DrugAcetaminophen, domain.DrugNSAIDs}, plan.Regimen[0].Drugs)

	_, ok := plan.DosingFor(domain.DrugIbuprofen)
	assert.True(t, ok)

	assert.True(t, plan.Avoids(domain.DrugCodeine))
	assert.True(t, plan.Avoids(domain.DrugTramadol))
	assert.False(t, plan.OffersAlternative(domain.DrugCodeine))
	assert.False(t, plan.OffersAlternative(domain.DrugTramadol))
	assert.True(t, plan.OffersAlternative(domain.DrugDiclofenac))
	assert.True(t, plan.OffersAlternative(domain.DrugCelecoxib))

	for _, line := range plan.Dosing {
		assert.False(t, line.Drug.IsStrongOpioid(), "mild pathway should not dose %s", line.Drug)
	}
	assert.Equal(t, []domain.Drug{domain.DrugAcetaminophen, domain.DrugIbuprofen}, drugsOf(plan.SafetyBlocks))
}

func TestPlanAssembler_ScenarioModerateRenalWithAllergy(t *testing.T) {
	input := basePatient()
	input.EGFR = domain.Float(45)
	input.MorphineAllergy = true

	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.DrugFentanyl, plan.Primary.Drug)
	assert.Equal(t, domain.RiskModerate, plan.OverallRisk)
	assert.True(t, plan.HasAlert(domain.AlertRenalModerate))
	assert.True(t, plan.HasAlert(domain.AlertMorphineAllergy))
	assert.True(t, plan.Avoids(domain.DrugNSAIDs))
	assert.True(t, plan.OffersAlternative(domain.DrugKetamine))
	assert.True(t, plan.OffersAlternative(domain.DrugOxycodone))

	fentanyl, ok := plan.DosingFor(domain.DrugFentanyl)
	require.True(t, ok)
	assert.Equal(t, 70.0, fentanyl.Amount)
}

func TestPlanAssembler_ScenarioZeroWeight(t *testing.T) {
	input := basePatient()
	input.Severity = domain.SeveritySevere
	input.WeightKg = domain.Float(0)

	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.DrugMorphine, plan.Primary.Drug)
	_, ok := plan.DosingFor(domain.DrugMorphine)
	assert.False(t, ok)
	_, ok = plan.DosingFor(domain.DrugKetamine)
	assert.False(t, ok)

	_, ok = plan.DosingFor(domain.DrugAcetaminophen)
	assert.True(t, ok)
	_, ok = plan.DosingFor(domain.DrugKetorolac)
	assert.True(t, ok)
	assert.NotEmpty(t, plan.Monitoring)
	assert.NotEmpty(t, plan.StopRules)
	assert.Len(t, plan.Recommendations, 2)
	assert.Equal(t, domain.DrugMorphine, plan.SafetyBlocks[0].Drug)
}

func TestPlanAssembler_AlertOrdering(t *testing.T) {
	input := basePatient()
	input.AgeYears = domain.Float(16)
	input.EGFR = domain.Float(20)
	input.Genotype = domain.GenotypeKnown
	input.Phenotype = domain.PhenotypeUltrarapid
	input.Sedatives = true
	input.SuspectedACS = true
	input.MorphineAllergy = true

	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, []domain.AlertCode{
		domain.AlertAdultsOnly,
		domain.AlertRenalSevere,
		domain.AlertCYP2D6HighRisk,
		domain.AlertRespiratorySedation,
		domain.AlertSuspectedACS,
		domain.AlertMorphineAllergy,
	}, plan.SafetyAlerts)

	assert.Equal(t, []domain.AvoidEntry{
		hardAvoid,
		{Drug: domain.DrugNSAIDs, Reason: domain.AvoidNSAIDRenalACS},
		{Drug: domain.DrugCodeine, Reason: domain.AvoidCYP2D6HighRisk},
		{Drug: domain.DrugTramadol, Reason: domain.AvoidCYP2D6HighRisk},
	}, plan.Avoid)
}

func TestPlanAssembler_CPICOralsForModeratePain(t *testing.T) {
	input := basePatient()
	input.Genotype = domain.GenotypeKnown
	input.Phenotype = domain.PhenotypeIntermediate

	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)

	assert.True(t, plan.CPICOralsAllowed)
	assert.False(t, plan.Avoids(domain.DrugCodeine))

	var stepDowns []domain.Drug
	for _, alt := range plan.Alternatives {
		if alt.Reason == domain.AltCPICOralStepDown {
			require.NotNil(t, alt.Dose)
			stepDowns = append(stepDowns, alt.Drug)
		}
	}
	assert.Equal(t, []domain.Drug{domain.DrugCodeine, domain.DrugTramadol}, stepDowns)

	input.Severity = domain.SeveritySevere
	plan, err = newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, plan.OffersAlternative(domain.DrugCodeine))
}

func TestPlanAssembler_RequiresEGFR(t *testing.T) {
	input := basePatient()
	input.EGFR = nil

	_, err := newTestAssembler().Assemble(context.Background(), input)
	require.Error(t, err, "eGFR is a required input")

	input.EGFR = domain.Float(10)
	plan, err := newTestAssembler().Assemble(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, plan.NSAIDAllowed)
}

func TestPlanAssembler_Validation(t *testing.T) {
	tests := []struct {
		name           string
		input          *domain.PatientInput
		expectedFields []string
	}{
		{
			name:           "nil input",
			input:          nil,
			expectedFields: []string{"input"},
		},
		{
			name:           "all numbers missing",
			input:          &domain.PatientInput{Severity: domain.SeverityMild, Genotype: domain.GenotypeUnknown, Phenotype: domain.PhenotypeExtensive},
			expectedFields: []string{"age", "weight", "egfr"},
		},
		{
			name: "bad severity",
			input: &domain.PatientInput{
				AgeYears: domain.Float(30), WeightKg: domain.Float(70), EGFR: domain.Float(90),
				Severity: "extreme", Genotype: domain.GenotypeUnknown, Phenotype: domain.PhenotypeExtensive,
			},
			expectedFields: []string{"severity"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := newTestAssembler().Assemble(context.Background(), tt.input)
			assert.Nil(t, plan)

			var verrs domain.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.expectedFields, verrs.Fields())
		})
	}
}

func TestPlanAssembler_Idempotent(t *testing.T) {
	assembler := newTestAssembler()
	input := basePatient()
	input.EGFR = domain.Float(50)
	input.OpioidTolerant = true

	first, err := assembler.Assemble(context.Background(), input)
	require.NoError(t, err)
	second, err := assembler.Assemble(context.Background(), input)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestPlanAssembler_EveryPlanDrugHasSafetyBlock(t *testing.T) {
	assembler := newTestAssembler()
	for _, severity := range []domain.Severity{domain.SeverityMild, domain.SeverityModerate, domain.SeveritySevere} {
		for _, egfr := range []float64{15, 45, 90} {
			input := basePatient()
			input.Severity = severity
			input.EGFR = domain.Float(egfr)

			plan, err := assembler.Assemble(context.Background(), input)
			require.NoError(t, err)

			blocks := drugsOf(plan.SafetyBlocks)
			for _, line := range plan.Dosing {
				assert.Contains(t, blocks, line.Drug, "severity %s egfr %.0f", severity, egfr)
			}
			if plan.Primary.Kind == domain.PrimaryOpioid {
				assert.Equal(t, plan.Primary.Drug, blocks[0])
			}
		}
	}
}

func TestPlanAssembler_InvariantsAcrossInputSpace(t *testing.T) {
	assembler := newTestAssembler()

	type genotypeCase struct {
		genotype  domain.GenotypeAvailability
		phenotype domain.Phenotype
	}
	genotypes := []genotypeCase{
		{domain.GenotypeUnknown, domain.PhenotypeExtensive},
		{domain.GenotypeKnown, domain.PhenotypeExtensive},
		{domain.GenotypeKnown, domain.PhenotypeIntermediate},
		{domain.GenotypeKnown, domain.PhenotypePoor},
		{domain.GenotypeKnown, domain.PhenotypeUltrarapid},
	}
	severities := []domain.Severity{domain.SeverityMild, domain.SeverityModerate, domain.SeveritySevere}
	egfrs := []float64{0, 10, 29.9, 30, 45, 59.9, 60, 90, 130}
	weights := []float64{0, 70}

	runs := 0
	for _, severity := range severities {
		for _, egfr := range egfrs {
			for _, g := range genotypes {
				for _, weight := range weights {
					for flags := 0; flags < 1<<5; flags++ {
						input := &domain.PatientInput{
							AgeYears:        domain.Float(30),
							WeightKg:        domain.Float(weight),
							EGFR:            domain.Float(egfr),
							Severity:        severity,
							Genotype:        g.genotype,
							Phenotype:       g.phenotype,
							OpioidTolerant:  flags&1 != 0,
							Sedatives:       flags&2 != 0,
							MorphineAllergy: flags&4 != 0,
							RespiratoryRisk: flags&8 != 0,
							SuspectedACS:    flags&16 != 0,
						}

						plan, err := assembler.Assemble(context.Background(), input)
						require.NoError(t, err)
						runs++

						require.NotEmpty(t, plan.Avoid)
						assert.Equal(t, hardAvoid, plan.Avoid[0], "input %+v", input)
						if input.SuspectedACS || input.RespiratoryRisk {
							assert.Equal(t, domain.RiskHigh, plan.OverallRisk, "input %+v", input)
						}
						if weight == 0 {
							_, ok := plan.DosingFor(domain.DrugKetamine)
							assert.False(t, ok, "input %+v", input)
						}
					}
				}
			}
		}
	}
	assert.Equal(t, len(severities)*len(egfrs)*len(genotypes)*len(weights)*32, runs)
}
