package domain

// PatientInput is the normalized clinical input for one engine run. Age, weight and eGFR are
// pointers so that an absent value stays distinguishable from zero.
type PatientInput struct {
	AgeYears        *float64             `json:"age_years"`
	WeightKg        *float64             `json:"weight_kg"`
	EGFR            *float64             `json:"egfr"`
	CrisesPerYear   *float64             `json:"crises_per_year,omitempty"`
	Severity        Severity             `json:"severity"`
	Genotype        GenotypeAvailability `json:"genotype"`
	Phenotype       Phenotype            `json:"phenotype"`
	OpioidTolerant  bool                 `json:"opioid_tolerant"`
	Sedatives       bool                 `json:"sedatives"`
	MorphineAllergy bool                 `json:"morphine_allergy"`
	RespiratoryRisk bool                 `json:"respiratory_risk"`
	SuspectedACS    bool                 `json:"suspected_acs"`
}

// Validate checks every required field and reports all problems at once.
func (p *PatientInput) Validate() error {
	var errs ValidationErrors

	if p.AgeYears == nil {
		errs = append(errs, NewValidationError("age", "age is required", nil))
	}
	if p.WeightKg == nil {
		errs = append(errs, NewValidationError("weight", "weight is required", nil))
	}
	if p.EGFR == nil {
		errs = append(errs, NewValidationError("egfr", "eGFR is required", nil))
	}
	if !p.Severity.IsValid() {
		errs = append(errs, NewValidationError("severity", ErrInvalidSeverity.Error(), string(p.Severity)))
	}
	if !p.Genotype.IsValid() {
		errs = append(errs, NewValidationError("genotype", ErrInvalidAvailability.Error(), string(p.Genotype)))
	}
	if !p.Phenotype.IsValid() {
		errs = append(errs, NewValidationError("phenotype", ErrInvalidPhenotype.Error(), string(p.Phenotype)))
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Weight returns the weight in kilograms, or 0 when it is absent.
func (p *PatientInput) Weight() float64 {
	if p.WeightKg == nil {
		return 0
	}
	return *p.WeightKg
}

// IsMinor reports whether the patient is under 18.
func (p *PatientInput) IsMinor() bool {
	return p.AgeYears != nil && *p.AgeYears < 18
}

// Float returns a pointer to v, for building inputs in code.
func Float(v float64) *float64 {
	return &v
}
