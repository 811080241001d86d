package domain

// Drug is the enumerated identifier of every agent the engine can name.
type Drug string

const (
	DrugAcetaminophen Drug = "acetaminophen"
	DrugNSAIDs        Drug = "nsaids"
	DrugIbuprofen     Drug = "ibuprofen"
	DrugKetorolac     Drug = "ketorolac"
	DrugDiclofenac    Drug = "diclofenac"
	DrugCelecoxib     Drug = "celecoxib"
	DrugMorphine      Drug = "morphine"
	DrugHydromorphone Drug = "hydromorphone"
	DrugFentanyl      Drug = "fentanyl"
	DrugOxycodone     Drug = "oxycodone"
	DrugCodeine       Drug = "codeine"
	DrugTramadol      Drug = "tramadol"
	DrugMeperidine    Drug = "meperidine"
	DrugKetamine      Drug = "ketamine"
)

// AllDrugs lists every drug identifier in a stable order.
var AllDrugs = []Drug{
	DrugAcetaminophen,
	DrugNSAIDs,
	DrugIbuprofen,
	DrugKetorolac,
	DrugDiclofenac,
	DrugCelecoxib,
	DrugMorphine,
	DrugHydromorphone,
	DrugFentanyl,
	DrugOxycodone,
	DrugCodeine,
	DrugTramadol,
	DrugMeperidine,
	DrugKetamine,
}

// IsValid reports whether d is a known drug identifier.
func (d Drug) IsValid() bool {
	for _, known := range AllDrugs {
		if d == known {
			return true
		}
	}
	return false
}

func (d Drug) String() string {
	return string(d)
}

// IsNSAID reports whether the drug belongs to the NSAID family.
func (d Drug) IsNSAID() bool {
	switch d {
	case DrugNSAIDs, DrugIbuprofen, DrugKetorolac, DrugDiclofenac, DrugCelecoxib:
		return true
	default:
		return false
	}
}

// IsStrongOpioid reports whether the drug is one of the IV primary opioids.
func (d Drug) IsStrongOpioid() bool {
	switch d {
	case DrugMorphine, DrugHydromorphone, DrugFentanyl:
		return true
	default:
		return false
	}
}

// IsCYP2D6Dependent reports whether analgesic effect depends on CYP2D6 activation.
func (d Drug) IsCYP2D6Dependent() bool {
	return d == DrugCodeine || d == DrugTramadol
}
