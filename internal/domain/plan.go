package domain

// AlertCode identifies a safety alert raised for a run.
type AlertCode string

const (
	AlertAdultsOnly          AlertCode = "adults_only"
	AlertRenalSevere         AlertCode = "renal_severe"
	AlertRenalModerate       AlertCode = "renal_moderate"
	AlertCYP2D6HighRisk      AlertCode = "cyp2d6_pm_um"
	AlertRespiratorySedation AlertCode = "respiratory_sedatives"
	AlertSuspectedACS        AlertCode = "suspected_acs"
	AlertMorphineAllergy     AlertCode = "morphine_allergy"
)

// AvoidReason explains why a drug is on the avoid list.
type AvoidReason string

const (
	AvoidHardBlock       AvoidReason = "hard_block_neurotoxicity"
	AvoidNSAIDRenalACS   AvoidReason = "renal_or_acs"
	AvoidCYP2D6HighRisk  AvoidReason = "cyp2d6_pm_um"
	AvoidGenotypeUnknown AvoidReason = "genotype_unknown"
)

// AlternativeReason explains why a drug is offered as an alternative.
type AlternativeReason string

const (
	AltNSAIDOption      AlternativeReason = "nsaid_option"
	AltCOX2Option       AlternativeReason = "cox2_option"
	AltMildPainStepDown AlternativeReason = "mild_pain_step_down"
	AltOralTransition   AlternativeReason = "oral_transition"
	AltKetamineConsider AlternativeReason = "opioid_refractory_or_tolerant"
	AltCPICOralStepDown AlternativeReason = "cpic_oral_step_down"
)

// RegimenRole labels a line of the suggested regimen.
type RegimenRole string

const (
	RegimenNonOpioid       RegimenRole = "non_opioid"
	RegimenPreferredOpioid RegimenRole = "preferred_opioid"
	RegimenAdjuncts        RegimenRole = "adjuncts"
)

// PrimaryKind distinguishes an opioid primary therapy from the non-opioid pathway.
type PrimaryKind string

const (
	PrimaryNonOpioid PrimaryKind = "non_opioid_multimodal"
	PrimaryOpioid    PrimaryKind = "opioid"
)

// DoseBasis tells whether a dose scales with weight.
type DoseBasis string

const (
	BasisWeight DoseBasis = "weight_based"
	BasisFixed  DoseBasis = "fixed"
)

// Caveat is an annotation attached to a dosing line.
type Caveat string

const (
	CaveatLiverRisk      Caveat = "liver_risk_max_3g"
	CaveatMaxFiveDays    Caveat = "max_5_days"
	CaveatRenalGIRisk    Caveat = "avoid_renal_gi_risk"
	CaveatKetamineInfuse Caveat = "infusion_if_refractory"
	CaveatMildPainOnly   Caveat = "mild_pain_only"
	CaveatAvoidPMUM      Caveat = "avoid_cyp2d6_pm_um"
	CaveatOralTransition Caveat = "oral_transition"
)

// Recommendation is a fixed general recommendation appended to every plan.
type Recommendation string

const (
	RecommendMultimodal         Recommendation = "multimodal_reassess_titrate"
	RecommendEscalateMonitoring Recommendation = "escalate_monitoring_specialist"
)

// MonitoringLine is a general VOC monitoring instruction.
type MonitoringLine string

const (
	MonitorVitals        MonitoringLine = "vitals"
	MonitorScores        MonitoringLine = "pain_sedation_scores"
	MonitorLabs          MonitoringLine = "labs"
	MonitorComplications MonitoringLine = "complications"
)

// StopRule is a safety stop rule.
type StopRule string

const (
	StopRespiratory StopRule = "respiratory_hold_naloxone"
	StopHypoxiaACS  StopRule = "hypoxia_acs"
	StopRenalSevere StopRule = "renal_severe_avoid"
	StopCreatinine  StopRule = "creatinine_rise"
)

// Advisory is an identifier for one line of a drug safety block.
type Advisory string

const (
	AdvisoryRenalHighNSAID    Advisory = "nsaids.renal_high_risk"
	AdvisoryRenalCautionMorph Advisory = "morphine.renal_caution"
	AdvisoryCYP2D6Risk        Advisory = "cyp2d6.risk"
)

// PrimaryTherapy is the headline recommendation.
type PrimaryTherapy struct {
	Kind PrimaryKind `json:"kind"`
	Drug Drug        `json:"drug,omitempty"`
}

// RegimenLine is one line of the suggested regimen.
type RegimenLine struct {
	Role  RegimenRole `json:"role"`
	Drugs []Drug      `json:"drugs"`
}

// DosingLine is a structured starter dose. Weight-based lines carry the computed dose,
// fixed lines carry a range. Amounts are in NativeUnit, DoseMg is always canonical mg.
type DosingLine struct {
	Drug       Drug      `json:"drug"`
	Route      Route     `json:"route"`
	Basis      DoseBasis `json:"basis"`
	NativeUnit DoseUnit  `json:"native_unit"`
	Amount     float64   `json:"amount,omitempty"`
	DoseMg     float64   `json:"dose_mg,omitempty"`
	RatePerKg  float64   `json:"rate_per_kg,omitempty"`
	Cap        float64   `json:"cap,omitempty"`
	Capped     bool      `json:"capped,omitempty"`
	RangeLow   float64   `json:"range_low,omitempty"`
	RangeHigh  float64   `json:"range_high,omitempty"`
	Interval   string    `json:"interval"`
	MaxDailyMg float64   `json:"max_daily_mg,omitempty"`
	Caveats    []Caveat  `json:"caveats,omitempty"`
}

// Alternative is an optional next step.
type Alternative struct {
	Drug   Drug              `json:"drug"`
	Reason AlternativeReason `json:"reason"`
	Dose   *DosingLine       `json:"dose,omitempty"`
}

// AvoidEntry is an agent the plan explicitly rules out.
type AvoidEntry struct {
	Drug   Drug        `json:"drug"`
	Reason AvoidReason `json:"reason"`
}

// SafetyBlock lists the monitoring advisories for one drug in the plan.
type SafetyBlock struct {
	Drug  Drug       `json:"drug"`
	Lines []Advisory `json:"lines"`
}

// TreatmentPlan is the language-neutral output of one engine run.
type TreatmentPlan struct {
	Severity         Severity         `json:"severity"`
	RenalCategory    RenalCategory    `json:"renal_category"`
	OverallRisk      OverallRisk      `json:"overall_risk"`
	NSAIDAllowed     bool             `json:"nsaid_allowed"`
	CPICOralsAllowed bool             `json:"cpic_orals_allowed"`
	Primary          PrimaryTherapy   `json:"primary"`
	Regimen          []RegimenLine    `json:"regimen"`
	SafetyAlerts     []AlertCode      `json:"safety_alerts"`
	Dosing           []DosingLine     `json:"dosing"`
	Alternatives     []Alternative    `json:"alternatives"`
	Avoid            []AvoidEntry     `json:"avoid"`
	Recommendations  []Recommendation `json:"recommendations"`
	Monitoring       []MonitoringLine `json:"monitoring"`
	StopRules        []StopRule       `json:"stop_rules"`
	SafetyBlocks     []SafetyBlock    `json:"safety_blocks"`
}

// HasAlert reports whether the plan carries the given alert.
func (p *TreatmentPlan) HasAlert(code AlertCode) bool {
	for _, a := range p.SafetyAlerts {
		if a == code {
			return true
		}
	}
	return false
}

// DosingFor returns the dosing line for drug, if present.
func (p *TreatmentPlan) DosingFor(drug Drug) (DosingLine, bool) {
	for _, d := range p.Dosing {
		if d.Drug == drug {
			return d, true
		}
	}
	return DosingLine{}, false
}

// Avoids reports whether the drug is on the avoid list.
func (p *TreatmentPlan) Avoids(drug Drug) bool {
	for _, a := range p.Avoid {
		if a.Drug == drug {
			return true
		}
	}
	return false
}

// OffersAlternative reports whether the drug appears as an alternative.
func (p *TreatmentPlan) OffersAlternative(drug Drug) bool {
	for _, a := range p.Alternatives {
		if a.Drug == drug {
			return true
		}
	}
	return false
}

// LogFields returns de-identified structured logging fields for audit trails.
func (p *TreatmentPlan) LogFields() map[string]any {
	return map[string]any{
		"severity":       string(p.Severity),
		"renal_category": string(p.RenalCategory),
		"overall_risk":   string(p.OverallRisk),
		"primary_kind":   string(p.Primary.Kind),
		"primary_drug":   string(p.Primary.Drug),
		"nsaid_allowed":  p.NSAIDAllowed,
		"alerts":         len(p.SafetyAlerts),
		"dosing_lines":   len(p.Dosing),
		"avoid_entries":  len(p.Avoid),
	}
}
