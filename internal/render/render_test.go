package render

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/service"
)

func assemble(t *testing.T, input *domain.PatientInput) *domain.TreatmentPlan {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	plan, err := service.NewPlanAssembler(logger).Assemble(context.Background(), input)
	require.NoError(t, err)
	return plan
}

func severeRenalPatient() *domain.PatientInput {
	return &domain.PatientInput{
		AgeYears:  domain.Float(30),
		WeightKg:  domain.Float(70),
		EGFR:      domain.Float(25),
		Severity:  domain.SeveritySevere,
		Genotype:  domain.GenotypeKnown,
		Phenotype: domain.PhenotypeExtensive,
	}
}

func TestCatalog_EnglishCoversEveryCode(t *testing.T) {
	en := NewCatalog(language.English)

	var keys []string
	for _, d := range domain.AllDrugs {
		keys = append(keys, "drug."+string(d))
	}
	for _, a := range service.AllAdvisories() {
		keys = append(keys, "advisory."+string(a))
	}
	for _, code := range []domain.AlertCode{
		domain.AlertAdultsOnly, domain.AlertRenalSevere, domain.AlertRenalModerate, domain.AlertCYP2D6HighRisk,
		domain.AlertRespiratorySedation, domain.AlertSuspectedACS, domain.AlertMorphineAllergy,
	} {
		keys = append(keys, "alert."+string(code))
	}
	for _, reason := range []domain.AvoidReason{
		domain.AvoidHardBlock, domain.AvoidNSAIDRenalACS, domain.AvoidCYP2D6HighRisk, domain.AvoidGenotypeUnknown,
	} {
		keys = append(keys, "avoid."+string(reason))
	}
	for _, reason := range []domain.AlternativeReason{
		domain.AltNSAIDOption, domain.AltCOX2Option, domain.AltMildPainStepDown,
		domain.AltOralTransition, domain.AltKetamineConsider, domain.AltCPICOralStepDown,
	} {
		keys = append(keys, "alt."+string(reason))
	}
	for _, caveat := range []domain.Caveat{
		domain.CaveatLiverRisk, domain.CaveatMaxFiveDays, domain.CaveatRenalGIRisk, domain.CaveatKetamineInfuse,
		domain.CaveatMildPainOnly, domain.CaveatAvoidPMUM, domain.CaveatOralTransition,
	} {
		keys = append(keys, "caveat."+string(caveat))
	}
	for _, role := range []domain.RegimenRole{domain.RegimenNonOpioid, domain.RegimenPreferredOpioid, domain.RegimenAdjuncts} {
		keys = append(keys, "regimen."+string(role))
	}
	for _, rec := range []domain.Recommendation{domain.RecommendMultimodal, domain.RecommendEscalateMonitoring} {
		keys = append(keys, "recommend."+string(rec))
	}
	for _, line := range service.GeneralMonitoring() {
		keys = append(keys, "monitor."+string(line))
	}
	for _, rule := range service.StopRulesFor(domain.RenalSevere) {
		keys = append(keys, "stop."+string(rule))
	}
	for _, s := range []domain.Severity{domain.SeverityMild, domain.SeverityModerate, domain.SeveritySevere} {
		keys = append(keys, "severity."+string(s))
	}
	for _, p := range []domain.Phenotype{domain.PhenotypeExtensive, domain.PhenotypeIntermediate, domain.PhenotypePoor, domain.PhenotypeUltrarapid} {
		keys = append(keys, "phenotype."+string(p))
	}
	for _, r := range []domain.OverallRisk{domain.RiskLow, domain.RiskModerate, domain.RiskHigh} {
		keys = append(keys, "risk."+string(r))
	}
	keys = append(keys, "primary."+string(domain.PrimaryNonOpioid))

	for _, key := range keys {
		assert.True(t, en.Has(key), "missing english text for %s", key)
	}
}

func TestCatalog_ArabicFallsBackToEnglish(t *testing.T) {
	ar := NewCatalog(language.Arabic)

	assert.Equal(t, "قصور كلوي شديد (<30): تجنب NSAIDs وتجنب/قلل المورفين بسبب تراكم النواتج.", ar.Text("alert.renal_severe"))
	assert.False(t, ar.Has("monitor.vitals"))
	assert.Equal(t, NewCatalog(language.English).Text("monitor.vitals"), ar.Text("monitor.vitals"))
	assert.Equal(t, "no.such.key", ar.Text("no.such.key"))

	// Every Arabic key must exist in English.
	for key := range messages[language.Arabic] {
		assert.Contains(t, messages[language.English], key)
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected language.Tag
	}{
		{"", language.English},
		{"en", language.English},
		{"ar", language.Arabic},
		{"ar-SA", language.Arabic},
		{"fr-FR,ar;q=0.8,en;q=0.5", language.Arabic},
		{"de", language.English},
		{"%%%", language.English},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, MatchLanguage(tt.input))
		})
	}

	assert.True(t, IsRTL(language.Arabic))
	assert.False(t, IsRTL(language.English))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(domain.DisplayConfig{Language: "ar", DoseUnit: "MCG"})
	require.NoError(t, err)
	assert.Equal(t, language.Arabic, opts.Language)
	assert.Equal(t, domain.DoseUnitMcg, opts.DoseUnit)

	opts, err = OptionsFromConfig(domain.DisplayConfig{})
	require.NoError(t, err)
	assert.Equal(t, language.English, opts.Language)
	assert.Equal(t, domain.DoseUnitMg, opts.DoseUnit)

	_, err = OptionsFromConfig(domain.DisplayConfig{DoseUnit: "grain"})
	assert.ErrorIs(t, err, domain.ErrInvalidDoseUnit)
}

func TestThemeFor(t *testing.T) {
	assert.Equal(t, ThemeGreen, ThemeFor(domain.RiskLow))
	assert.Equal(t, ThemeYellow, ThemeFor(domain.RiskModerate))
	assert.Equal(t, ThemeRed, ThemeFor(domain.RiskHigh))
}

func TestRenderer_DoseText(t *testing.T) {
	tests := []struct {
		name     string
		unit     domain.DoseUnit
		line     domain.DosingLine
		expected string
	}{
		{
			name:     "capped fentanyl in mg",
			unit:     domain.DoseUnitMg,
			line:     domain.DosingLine{Drug: domain.DrugFentanyl, Route: domain.RouteIV, Basis: domain.BasisWeight, NativeUnit: domain.DoseUnitMcg, Amount: 100, DoseMg: 0.1, RatePerKg: 1.5, Cap: 100, Capped: true, Interval: "q1–2h PRN"},
			expected: "Fentanyl IV: 0.10 mg (100 mcg) (≈ 1.5 mcg/kg, max 100 mcg) q1–2h PRN",
		},
		{
			name:     "morphine in mcg",
			unit:     domain.DoseUnitMcg,
			line:     domain.DosingLine{Drug: domain.DrugMorphine, Route: domain.RouteIV, Basis: domain.BasisWeight, NativeUnit: domain.DoseUnitMg, Amount: 7, DoseMg: 7, RatePerKg: 0.1, Cap: 10, Interval: "q2–4h PRN"},
			expected: "Morphine IV: 7000 mcg (7.000 mg) (≈ 0.1 mg/kg, max 10 mg) q2–4h PRN",
		},
		{
			name:     "acetaminophen keeps grams",
			unit:     domain.DoseUnitMcg,
			line:     domain.DosingLine{Drug: domain.DrugAcetaminophen, Route: domain.RoutePOIV, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitG, RangeLow: 1, RangeHigh: 1, Interval: "q6–8h", MaxDailyMg: 4000, Caveats: []domain.Caveat{domain.CaveatLiverRisk}},
			expected: "Acetaminophen PO/IV: 1 g q6–8h; max 4 g/day; consider ≤3 g/day if liver risk",
		},
		{
			name:     "tramadol range",
			unit:     domain.DoseUnitMg,
			line:     domain.DosingLine{Drug: domain.DrugTramadol, Route: domain.RoutePO, Basis: domain.BasisFixed, NativeUnit: domain.DoseUnitMg, RangeLow: 50, RangeHigh: 100, Interval: "q6h PRN", MaxDailyMg: 400},
			expected: "Tramadol PO: 50–100 mg q6h PRN; max 400 mg/day",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(Options{Language: language.English, DoseUnit: tt.unit})
			assert.Equal(t, tt.expected, r.DoseText(tt.line))
		})
	}
}

func TestRenderer_Build(t *testing.T) {
	plan := assemble(t, severeRenalPatient())

	doc, err := NewRenderer(Options{Language: language.English, DoseUnit: domain.DoseUnitMg}).Build(plan, severeRenalPatient())
	require.NoError(t, err)

	assert.Equal(t, "en", doc.Language)
	assert.False(t, doc.RTL)
	assert.Equal(t, ThemeRed, doc.Theme)
	assert.Equal(t, "Severity: Severe | CYP2D6: EM (Normal)", doc.Step)
	assert.Equal(t, "Algorithm-guided: Fentanyl", doc.Primary)
	assert.Equal(t, "Overall risk: High", doc.Risk)
	assert.Nil(t, doc.GenotypeClues)
	assert.Len(t, doc.References, 4)

	keys := make([]string, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"rec", "regimen", "safety", "dosing", "alternatives", "extra", "avoid", "monitoring", "safety_stops", "drug_safety"}, keys)

	avoid := doc.Sections[6]
	assert.Equal(t, "Meperidine (pethidine): HARD BLOCK (neurotoxicity/seizure risk; worse in renal impairment)", avoid.Items[0])

	regimen := doc.Sections[1]
	assert.Equal(t, []string{"Preferred opioid: Fentanyl", "Adjuncts: Acetaminophen (no NSAID)"}, regimen.Items)

	drugSafety := doc.Sections[9]
	require.Len(t, drugSafety.Subsections, len(plan.SafetyBlocks))
	assert.Equal(t, "Fentanyl", drugSafety.Subsections[0].Title)
}

func TestRenderer_BuildArabicUnknownGenotype(t *testing.T) {
	input := severeRenalPatient()
	input.Severity = domain.SeverityMild
	input.EGFR = domain.Float(90)
	input.Genotype = domain.GenotypeUnknown
	plan := assemble(t, input)

	doc, err := NewRenderer(Options{Language: language.Arabic}).Build(plan, input)
	require.NoError(t, err)

	assert.True(t, doc.RTL)
	assert.Equal(t, ThemeGreen, doc.Theme)
	assert.Equal(t, "الشدة: خفيف | CYP2D6: Genotype unknown", doc.Step)
	require.NotNil(t, doc.GenotypeClues)
	assert.Equal(t, "إذا تحليل CYP2D6 غير متوفر", doc.GenotypeClues.Title)
	assert.Equal(t, "https://ascpt.onlinelibrary.wiley.com/doi/10.1002/cpt.2149", doc.References[1].URL)
}

func TestRenderer_BuildNilPlan(t *testing.T) {
	_, err := NewRenderer(Options{}).Build(nil, nil)
	assert.Error(t, err)
}

func TestMarkdownAndHTML(t *testing.T) {
	plan := assemble(t, severeRenalPatient())
	doc, err := NewRenderer(Options{Language: language.English}).Build(plan, severeRenalPatient())
	require.NoError(t, err)

	md := Markdown(doc)
	assert.True(t, strings.HasPrefix(md, "# SCDAid\n"))
	assert.Contains(t, md, "## Safety alerts\n")
	assert.Contains(t, md, "### Fentanyl\n")
	assert.Contains(t, md, "## References\n")
	assert.Contains(t, md, "- [CPIC Guideline: CYP2D6 & Opioid Therapy (Crews et al., 2021)](https://ascpt.onlinelibrary.wiley.com/doi/10.1002/cpt.2149)")

	html, err := HTML(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(html, `<div dir="ltr" lang="en" class="risk-red">`))
	assert.Contains(t, html, "<h2>Safety alerts</h2>")
	assert.Contains(t, html, `<a href="https://pmc.ncbi.nlm.nih.gov/articles/PMC6917891/">`)

	doc.RTL, doc.Language = true, "ar"
	html, err = HTML(doc)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(html, `<div dir="rtl" lang="ar"`))
}

func TestOptions_With(t *testing.T) {
	base := Options{Language: language.English, DoseUnit: domain.DoseUnitMg}

	tests := []struct {
		name     string
		lang     string
		unit     string
		wantLang language.Tag
		wantUnit domain.DoseUnit
		wantErr  bool
	}{
		{"no overrides", "", "", language.English, domain.DoseUnitMg, false},
		{"arabic header", "ar-SA,ar;q=0.9", "", language.Arabic, domain.DoseUnitMg, false},
		{"unit override", "", "MCG", language.English, domain.DoseUnitMcg, false},
		{"bad unit", "", "grain", language.English, domain.DoseUnitMg, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := base.With(tt.lang, tt.unit)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidDoseUnit)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLang, got.Language)
			assert.Equal(t, tt.wantUnit, got.DoseUnit)
		})
	}
}

func TestEncode(t *testing.T) {
	doc, err := NewRenderer(Options{Language: language.English}).Build(assemble(t, severeRenalPatient()), severeRenalPatient())
	require.NoError(t, err)

	body, contentType, err := Encode(doc, "md")
	require.NoError(t, err)
	assert.Equal(t, "text/markdown; charset=utf-8", contentType)
	assert.Equal(t, Markdown(doc), body)

	body, contentType, err = Encode(doc, FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "text/html; charset=utf-8", contentType)
	assert.Contains(t, body, "<h2>")

	_, _, err = Encode(doc, "pdf")
	assert.Error(t, err)
}
