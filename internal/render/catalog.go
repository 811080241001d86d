package render

import (
	"fmt"

	"golang.org/x/text/language"
)

// messages holds display text per language. English is complete; any key missing from
// another language falls back to English.
var messages = map[language.Tag]map[string]string{
	language.English: {
		"title":      "SCDAid",
		"subtitle":   "SCD VOC analgesia decision support (Prototype): Severity + CPIC (CYP2D6) + Renal/Safety guardrails",
		"disclaimer": "Educational prototype only. Not a substitute for clinical judgment.",

		"label.step":      "Severity: %s | CYP2D6: %s",
		"label.primary":   "Algorithm-guided: %s",
		"label.risk":      "Overall risk: %s",
		"label.output":    "Output:",
		"label.max":       "max",
		"label.per_day":   "/day",
		"label.no_nsaid":  "(no NSAID)",
		"label.hard_stop": "HARD BLOCK",

		"section.rec":          "Recommendation",
		"section.regimen":      "Suggested regimen",
		"section.safety":       "Safety alerts",
		"section.dosing":       "Starter dosing (Adults, prototype)",
		"section.alternatives": "Alternatives",
		"section.extra":        "Additional recommendations",
		"section.avoid":        "Avoid / Not recommended",
		"section.monitoring":   "General VOC Monitoring",
		"section.safety_stops": "Safety Stops",
		"section.drug_safety":  "Medication Safety Monitoring",
		"section.refs":         "References",

		"severity.mild":     "Mild",
		"severity.moderate": "Moderate (4–6/10)",
		"severity.severe":   "Severe",

		"phenotype.EM":      "EM (Normal)",
		"phenotype.IM":      "IM (Intermediate)",
		"phenotype.PM":      "PM (Poor)",
		"phenotype.UM":      "UM (Ultrarapid)",
		"phenotype.unknown": "Genotype unknown",

		"risk.Low":      "Low",
		"risk.Moderate": "Moderate",
		"risk.High":     "High",

		"drug.acetaminophen": "Acetaminophen",
		"drug.nsaids":        "NSAID",
		"drug.ibuprofen":     "Ibuprofen",
		"drug.ketorolac":     "Ketorolac",
		"drug.diclofenac":    "Diclofenac",
		"drug.celecoxib":     "Celecoxib",
		"drug.morphine":      "Morphine",
		"drug.hydromorphone": "Hydromorphone",
		"drug.fentanyl":      "Fentanyl",
		"drug.oxycodone":     "Oxycodone",
		"drug.codeine":       "Codeine",
		"drug.tramadol":      "Tramadol",
		"drug.meperidine":    "Meperidine (pethidine)",
		"drug.ketamine":      "Ketamine (low-dose)",

		"primary.non_opioid_multimodal": "Non-opioid multimodal",

		"regimen.non_opioid":       "Non-opioid multimodal",
		"regimen.preferred_opioid": "Preferred opioid",
		"regimen.adjuncts":         "Adjuncts",

		"alert.adults_only":           "This prototype dosing is Adults-only (age ≥ 18).",
		"alert.renal_severe":          "Severe renal impairment (<30): avoid NSAIDs and avoid/limit morphine due to metabolite accumulation.",
		"alert.renal_moderate":        "Moderate renal impairment (30–59): avoid NSAIDs; monitor sedation/respirations.",
		"alert.cyp2d6_pm_um":          "CPIC (CYP2D6 PM/UM): avoid codeine and tramadol (nonresponse or toxicity).",
		"alert.respiratory_sedatives": "Respiratory risk/sedatives: use small titrated doses + close RR/O2 monitoring.",
		"alert.suspected_acs":         "Suspected ACS/hypoxia: prioritize workup/monitoring; avoid NSAIDs.",
		"alert.morphine_allergy":      "Morphine intolerance/allergy: alternative selected.",

		"avoid.hard_block_neurotoxicity": "HARD BLOCK (neurotoxicity/seizure risk; worse in renal impairment)",
		"avoid.renal_or_acs":             "avoid if eGFR <60, AKI risk, or suspected ACS/hypoxia",
		"avoid.cyp2d6_pm_um":             "avoid in CYP2D6 PM/UM",
		"avoid.genotype_unknown":         "avoid if genotype unknown (conservative)",

		"alt.nsaid_option":                  "consider if appropriate (GI/renal cautions)",
		"alt.cox2_option":                   "consider if appropriate (CV risk; not for severe acute VOC as sole agent)",
		"alt.mild_pain_step_down":           "only for mild pain; not preferred for VOC severe",
		"alt.oral_transition":               "oral transition when improving/discharge",
		"alt.opioid_refractory_or_tolerant": "consider if opioid-refractory or opioid-tolerant",
		"alt.cpic_oral_step_down":           "CPIC-permitted oral step-down for moderate pain",

		"caveat.liver_risk_max_3g":      "consider ≤3 g/day if liver risk",
		"caveat.max_5_days":             "max 5 days",
		"caveat.avoid_renal_gi_risk":    "avoid if renal/GI risk",
		"caveat.infusion_if_refractory": "consider infusion 0.1–0.3 mg/kg/hr if refractory",
		"caveat.mild_pain_only":         "mild pain only",
		"caveat.avoid_cyp2d6_pm_um":     "avoid in CYP2D6 PM/UM",
		"caveat.oral_transition":        "oral transition when improving/discharge",

		"recommend.multimodal_reassess_titrate":    "Prefer multimodal analgesia + frequent reassessment and titration.",
		"recommend.escalate_monitoring_specialist": "If frequent dosing or hypoxia: increase monitoring and consider specialist input.",

		"monitor.vitals":               "Vital signs BP HR RR SpO2 Temp q15 to 30 min initially then q1 to 2 h once stable.",
		"monitor.pain_sedation_scores": "Pain score Sedation scale RASS PASS Urine output q1 to 2 h.",
		"monitor.labs":                 "Labs CBC Cr eGFR LFT baseline then q12 to 24 h. If SpO2 <95 give O2.",
		"monitor.complications":        "Watch for ACS chest pain hypoxia fever. Watch compartment syndrome. Watch neuro changes.",

		"stop.respiratory_hold_naloxone": "If RR <12 hold opioid. If RR <10 or oversedation give naloxone.",
		"stop.hypoxia_acs":               "If SpO2 <92 or suspected ACS urgent evaluation and oxygen.",
		"stop.renal_severe_avoid":        "Renal: avoid NSAIDs and avoid morphine. Prefer fentanyl or hydromorphone.",
		"stop.creatinine_rise":           "If creatinine rises >=0.3 mg/dL in 48 h stop NSAIDs.",

		"advisory.nsaids.renal_high_risk": "RENAL HIGH RISK: avoid NSAIDs when eGFR <30 or AKI suspected.",
		"advisory.morphine.renal_caution": "Renal caution: consider hydromorphone or fentanyl instead of morphine.",
		"advisory.cyp2d6.risk":            "CYP2D6 risk: avoid codeine and tramadol when genotype unknown or PM UM.",

		"advisory.acetaminophen.monitor":      "Must monitor ALT AST and Cr eGFR.",
		"advisory.acetaminophen.renal":        "Renal: safe short term if eGFR >30. If eGFR <30 use caution and monitor Cr rise.",
		"advisory.acetaminophen.hepatic":      "Hepatic: avoid >3 g per day if risk factors. Contra severe liver disease.",
		"advisory.acetaminophen.interactions": "Interactions: warfarin INR. Alcohol increases toxicity.",
		"advisory.acetaminophen.stop":         "Stop: ALT >2x ULN or Cr rise >=0.3 mg per dL or no pain relief.",

		"advisory.nsaids.monitor":      "Must monitor Cr eGFR urine output BP platelets and bleeding.",
		"advisory.nsaids.renal":        "Renal: avoid if eGFR <30 or AKI risk.",
		"advisory.nsaids.cv":           "CV: fluid retention and HTN risk.",
		"advisory.nsaids.interactions": "Interactions: ACEi ARB diuretics anticoagulants.",
		"advisory.nsaids.contra":       "Contra: eGFR <30 active PUD platelets <50K.",
		"advisory.nsaids.stop":         "Stop: Cr rise >25 percent or urine output <0.5 mL per kg per h or BP rises.",

		"advisory.ketorolac.monitor": "Must monitor Cr eGFR urine output and GI bleed signs.",
		"advisory.ketorolac.renal":   "Renal: contraindicated if eGFR <30. Single dose ok if eGFR >30 with close monitoring.",
		"advisory.ketorolac.stop":    "Stop: any Cr rise or urine output drop or abdominal pain.",

		"advisory.morphine.monitor": "Must monitor RR SpO2 sedation q15 min initially then per stability. Watch constipation.",
		"advisory.morphine.renal":   "Renal: M6G accumulates if eGFR <60. Prefer alternatives if renal risk.",
		"advisory.morphine.resp":    "Resp: high risk. If RR <12 hold. If RR <10 or oversedation give naloxone.",
		"advisory.morphine.cv":      "CV: hypotension risk.",

		"advisory.hydromorphone.monitor": "Must monitor RR SpO2 sedation q15 min initially then per stability.",
		"advisory.hydromorphone.renal":   "Renal: less accumulation than morphine but monitor closely if eGFR <60.",
		"advisory.hydromorphone.resp":    "Resp: high potency. If RR <12 hold.",

		"advisory.fentanyl.monitor": "Continuous RR SpO2 sedation monitoring.",
		"advisory.fentanyl.renal":   "Renal: minimal accumulation and preferred if eGFR <30.",
		"advisory.fentanyl.resp":    "Resp: high potency. Risk chest wall rigidity at higher IV doses.",
		"advisory.fentanyl.cv":      "CV: bradycardia possible.",

		"advisory.oxycodone.monitor":      "Must monitor RR sedation constipation.",
		"advisory.oxycodone.renal":        "Renal: avoid or very low dose if eGFR <30.",
		"advisory.oxycodone.interactions": "Interactions: CYP3A4 and CYP2D6 inhibitors can increase levels.",
		"advisory.oxycodone.voc":          "VOC: mainly for oral transition. Personalize with CYP2D6 if available.",

		"advisory.codeine.not_recommended": "Non recommended in VOC due to CYP2D6 variability and unpredictable efficacy and toxicity.",
		"advisory.codeine.avoid":           "Avoid if CYP2D6 unknown PM UM or if eGFR <30.",

		"advisory.tramadol.monitor": "Must monitor RR sedation serotonin syndrome and seizures.",
		"advisory.tramadol.renal":   "Renal: avoid if eGFR <30 or reduce significantly.",
		"advisory.tramadol.ssri":    "Avoid with SSRIs due to serotonin syndrome risk.",
		"advisory.tramadol.voc":     "VOC: avoid severe pain. Weak opioid.",

		"advisory.meperidine.not_recommended": "Strongly non recommended. Neurotoxicity and seizures due to normeperidine accumulation.",
		"advisory.meperidine.avoid":           "Avoid especially if eGFR <60. No repeat dosing.",

		"advisory.ketamine.monitor": "Must monitor BP HR and emergence reactions.",
		"advisory.ketamine.renal":   "Renal: no adjustment usually required.",
		"advisory.ketamine.contra":  "Contra: uncontrolled HTN or psychosis history.",
		"advisory.ketamine.voc":     "VOC: opioid sparing adjuvant in refractory or opioid tolerant cases.",
		"advisory.ketamine.stop":    "Stop: BP >180 110 or intolerable hallucinations.",

		"ref.moh":  "Saudi MOH Protocol: Acute Pain Management (Protocol-001)",
		"ref.cpic": "CPIC Guideline: CYP2D6 & Opioid Therapy (Crews et al., 2021)",
		"ref.ash":  "ASH Guidelines: Sickle Cell Disease Pain Management (2020)",
		"ref.ows":  "Owsiany et al.: Opioid Management in CKD (review)",

		"geno.title":  "If CYP2D6 genotype is unavailable",
		"geno.intro":  "Clinical indicators suggestive of altered CYP2D6 activity (informational only):",
		"geno.um":     "Possible UM: marked sedation/respiratory depression on small doses of codeine/tramadol.",
		"geno.pm":     "Possible PM: no analgesic effect despite adequate doses of codeine/tramadol.",
		"geno.advice": "If genotype is unknown and codeine/tramadol is being considered, prefer non–CYP2D6-dependent options.",

		"error.age":    "Age is required.",
		"error.weight": "Weight is required.",
		"error.egfr":   "eGFR is required.",
	},

	language.Arabic: {
		"subtitle":   "أداة دعم قرار لألم VOC: الشدة + CPIC (CYP2D6) + الكلى/السلامة",
		"disclaimer": "نموذج تعليمي فقط. لا يغني عن الحكم السريري.",

		"label.step":     "الشدة: %s | CYP2D6: %s",
		"label.primary":  "الموصى به بالخوارزمية: %s",
		"label.risk":     "مستوى الخطورة: %s",
		"label.output":   "المخرجات:",
		"label.no_nsaid": "(بدون NSAID)",

		"section.rec":          "التوصية",
		"section.regimen":      "الخطة المقترحة",
		"section.safety":       "تنبيهات السلامة",
		"section.dosing":       "جرعات مبدئية (بالغين فقط)",
		"section.alternatives": "بدائل",
		"section.extra":        "توصيات إضافية",
		"section.avoid":        "تجنب / غير موصى به",
		"section.monitoring":   "مراقبة عامة لنوبة VOC",
		"section.safety_stops": "قواعد الإيقاف",
		"section.drug_safety":  "مراقبة السلامة للأدوية",
		"section.refs":         "المراجع",

		"severity.mild":     "خفيف",
		"severity.moderate": "متوسط (4–6/10)",
		"severity.severe":   "شديد",

		"phenotype.EM": "EM (طبيعي)",
		"phenotype.IM": "IM (متوسط)",
		"phenotype.PM": "PM (ضعيف)",
		"phenotype.UM": "UM (سريع جدًا)",

		"risk.Low":      "منخفضة",
		"risk.Moderate": "متوسطة",
		"risk.High":     "عالية",

		"drug.acetaminophen": "باراسيتامول",
		"drug.ibuprofen":     "ايبوبروفين",
		"drug.ketorolac":     "كيتورولاك",
		"drug.diclofenac":    "ديكلوفيناك",
		"drug.celecoxib":     "سيليكوكسيب",
		"drug.codeine":       "كودين",
		"drug.tramadol":      "ترامادول",
		"drug.meperidine":    "ميبيريدين (بيثيدين)",
		"drug.ketamine":      "كيتامين (جرعة منخفضة)",
		"drug.oxycodone":     "أوكسيكودون",

		"primary.non_opioid_multimodal": "علاج غير أفيوني متعدد الوسائط",

		"regimen.non_opioid":       "علاج غير أفيوني متعدد الوسائط",
		"regimen.preferred_opioid": "الأفيون المفضل",
		"regimen.adjuncts":         "العلاجات المساندة",

		"alert.adults_only":           "هذه النسخة للبالغين فقط (العمر ≥ 18).",
		"alert.renal_severe":          "قصور كلوي شديد (<30): تجنب NSAIDs وتجنب/قلل المورفين بسبب تراكم النواتج.",
		"alert.renal_moderate":        "قصور كلوي متوسط (30–59): تجنب NSAIDs وراقبي التهدئة/التنفس.",
		"alert.cyp2d6_pm_um":          "CPIC (CYP2D6 PM/UM): تجنبي الكودين والترامادول (فشل تسكين أو سُمّية).",
		"alert.respiratory_sedatives": "خطر تثبيط تنفسي/مهدئات: استخدمي جرعات صغيرة وتدريجية + مراقبة RR/O2.",
		"alert.suspected_acs":         "اشتباه ACS/نقص أكسجة: أولوية للتقييم والمراقبة، وتجنب NSAIDs.",
		"alert.morphine_allergy":      "تحسس/عدم تحمل المورفين: تم اختيار بديل.",

		"recommend.multimodal_reassess_titrate":    "يفضل علاج متعدد الوسائط + إعادة التقييم المتكرر وتعديل الجرعات تدريجيًا.",
		"recommend.escalate_monitoring_specialist": "إذا احتاج المريض جرعات متكررة أو أكسجة منخفضة: شددي المراقبة وفكري باستشارة مختص.",

		"ref.moh":  "بروتوكول وزارة الصحة: إدارة الألم الحاد (Protocol-001)",
		"ref.cpic": "CPIC: CYP2D6 والأفيونات (Crews et al., 2021)",
		"ref.ash":  "ASH: إرشادات ألم الأنيميا المنجلية (2020)",
		"ref.ows":  "Owsiany: مراجعة الأفيونات مع القصور الكلوي",

		"geno.title":  "إذا تحليل CYP2D6 غير متوفر",
		"geno.intro":  "مؤشرات سريرية قد توحي بتغير نشاط CYP2D6 (معلومة فقط):",
		"geno.um":     "احتمال UM: خمول/تثبيط تنفسي بعد جرعات بسيطة من الكودين/ترامادول.",
		"geno.pm":     "احتمال PM: عدم وجود تسكين رغم جرعات مناسبة من الكودين/ترامادول.",
		"geno.advice": "إذا الجين غير معروف وكان التفكير بالكودين/الترامادول، يفضل بدائل لا تعتمد على CYP2D6.",

		"error.age":    "العمر مطلوب.",
		"error.weight": "الوزن مطلوب.",
		"error.egfr":   "eGFR مطلوب.",
	},
}

// Catalog looks up display text for one language
type Catalog struct {
	tag     language.Tag
	entries map[string]string
}

// NewCatalog returns the catalog for tag. Unsupported tags get English.
func NewCatalog(tag language.Tag) *Catalog {
	entries, ok := messages[tag]
	if !ok {
		tag = language.English
		entries = messages[language.English]
	}
	return &Catalog{tag: tag, entries: entries}
}

// Language returns the catalog language
func (c *Catalog) Language() language.Tag {
	return c.tag
}

// Text returns the message for key, falling back to English and then to the key itself.
func (c *Catalog) Text(key string) string {
	if s, ok := c.entries[key]; ok {
		return s
	}
	if s, ok := messages[language.English][key]; ok {
		return s
	}
	return key
}

// Textf formats the message for key with args.
func (c *Catalog) Textf(key string, args ...any) string {
	return fmt.Sprintf(c.Text(key), args...)
}

// Has reports whether key exists in this catalog without fallback.
func (c *Catalog) Has(key string) bool {
	_, ok := c.entries[key]
	return ok
}
