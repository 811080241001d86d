package domain

import "time"

// PriorResponse is the remembered analgesic response to a previous codeine or tramadol course.
type PriorResponse string

const (
	ResponseUnknown     PriorResponse = "unknown"
	ResponseEffective   PriorResponse = "effective"
	ResponseIneffective PriorResponse = "ineffective"
	ResponseToxicity    PriorResponse = "toxicity"
)

func (r PriorResponse) IsValid() bool {
	switch r {
	case ResponseUnknown, ResponseEffective, ResponseIneffective, ResponseToxicity:
		return true
	default:
		return false
	}
}

// PredictionConfidence buckets the top-class probability of a phenotype prediction.
type PredictionConfidence string

const (
	ConfidenceHigh   PredictionConfidence = "high"
	ConfidenceMedium PredictionConfidence = "medium"
	ConfidenceLow    PredictionConfidence = "low"
)

// ConfidenceFor maps a probability onto a confidence bucket.
func ConfidenceFor(p float64) PredictionConfidence {
	switch {
	case p >= 0.75:
		return ConfidenceHigh
	case p >= 0.55:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// PhenotypeRequest carries the clinical features the phenotype prediction service was trained on.
type PhenotypeRequest struct {
	Age                   float64       `json:"age"`
	Weight                float64       `json:"weight"`
	EGFR                  float64       `json:"egfr"`
	Sex                   string        `json:"sex"`
	CYP2D6Inhibitor       bool          `json:"cyp2d6_inhibitor"`
	PriorCodeineResponse  PriorResponse `json:"prior_codeine_response"`
	PriorTramadolResponse PriorResponse `json:"prior_tramadol_response"`
}

// PhenotypePrediction is the normalized service response. Predicted is already
// mapped onto engine codes, so "NM" arrives here as EM.
type PhenotypePrediction struct {
	Predicted     Phenotype            `json:"predicted"`
	RawCode       string               `json:"raw_code"`
	Confidence    PredictionConfidence `json:"confidence"`
	Probabilities map[string]float64   `json:"probabilities,omitempty"`
	Source        string               `json:"source"`
	ReceivedAt    time.Time            `json:"received_at"`
}

// Resolution folds a prediction into the genotype fields of a patient input. Only a
// high-confidence prediction counts as a known phenotype; anything else, including a nil
// prediction, resolves to genotype unknown.
func (p *PhenotypePrediction) Resolution() (GenotypeAvailability, Phenotype) {
	if p == nil || !p.Predicted.IsValid() || p.Confidence != ConfidenceHigh {
		return GenotypeUnknown, PhenotypeExtensive
	}
	return GenotypeKnown, p.Predicted
}
