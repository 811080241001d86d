// Package render turns a language-neutral treatment plan into localized display text.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/pkg/units"
)

// Theme is the colour band of the overall risk pill
type Theme string

const (
	ThemeGreen  Theme = "green"
	ThemeYellow Theme = "yellow"
	ThemeRed    Theme = "red"
)

// ThemeFor maps overall risk to its display theme.
func ThemeFor(risk domain.OverallRisk) Theme {
	switch risk {
	case domain.RiskHigh:
		return ThemeRed
	case domain.RiskModerate:
		return ThemeYellow
	default:
		return ThemeGreen
	}
}

// Options selects the display language and dose unit.
type Options struct {
	Language language.Tag
	DoseUnit domain.DoseUnit
}

// OptionsFromConfig resolves display defaults. Unknown languages fall back to English,
// an unknown dose unit is an error.
func OptionsFromConfig(cfg domain.DisplayConfig) (Options, error) {
	unit := domain.DoseUnit(strings.ToLower(strings.TrimSpace(cfg.DoseUnit)))
	if unit == "" {
		unit = domain.DoseUnitMg
	}
	if !unit.IsValid() {
		return Options{}, fmt.Errorf("dose unit %q: %w", cfg.DoseUnit, domain.ErrInvalidDoseUnit)
	}
	return Options{Language: MatchLanguage(cfg.Language), DoseUnit: unit}, nil
}

// With applies per-request overrides. An empty value keeps the current setting; lang is
// matched like an Accept-Language header.
func (o Options) With(lang, unit string) (Options, error) {
	if strings.TrimSpace(lang) != "" {
		o.Language = MatchLanguage(lang)
	}
	if u := strings.ToLower(strings.TrimSpace(unit)); u != "" {
		o.DoseUnit = domain.DoseUnit(u)
		if !o.DoseUnit.IsValid() {
			return o, fmt.Errorf("dose unit %q: %w", unit, domain.ErrInvalidDoseUnit)
		}
	}
	return o, nil
}

// Output formats accepted by Encode
const (
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// Encode renders doc as markdown or HTML and reports the matching content type.
func Encode(doc *Document, format string) (string, string, error) {
	switch strings.ToLower(format) {
	case FormatMarkdown, "md":
		return Markdown(doc), "text/markdown; charset=utf-8", nil
	case FormatHTML:
		out, err := HTML(doc)
		return out, "text/html; charset=utf-8", err
	default:
		return "", "", fmt.Errorf("unsupported format %q", format)
	}
}

// Section is one titled block of the rendered plan.
type Section struct {
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Items       []string  `json:"items,omitempty"`
	Subsections []Section `json:"subsections,omitempty"`
}

// Reference is a cited guideline.
type Reference struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Document is a fully localized plan ready for display.
type Document struct {
	Language      string      `json:"language"`
	RTL           bool        `json:"rtl"`
	Title         string      `json:"title"`
	Subtitle      string      `json:"subtitle"`
	Step          string      `json:"step"`
	Primary       string      `json:"primary"`
	Risk          string      `json:"risk"`
	Theme         Theme       `json:"theme"`
	Sections      []Section   `json:"sections"`
	GenotypeClues *Section    `json:"genotype_clues,omitempty"`
	References    []Reference `json:"references"`
	Disclaimer    string      `json:"disclaimer"`
}

var references = []struct {
	key string
	url string
}{
	{"ref.moh", "https://www.moh.gov.sa/Ministry/MediaCenter/Publications/Documents/Protocol-001.pdf"},
	{"ref.cpic", "https://ascpt.onlinelibrary.wiley.com/doi/10.1002/cpt.2149"},
	{"ref.ash", "https://ashpublications.org/bloodadvances/article/4/12/2656/461665"},
	{"ref.ows", "https://pmc.ncbi.nlm.nih.gov/articles/PMC6917891/"},
}

// Renderer builds documents for one language and dose unit.
type Renderer struct {
	catalog *Catalog
	unit    domain.DoseUnit
}

// NewRenderer creates a renderer for opts
func NewRenderer(opts Options) *Renderer {
	unit := opts.DoseUnit
	if !unit.IsValid() {
		unit = domain.DoseUnitMg
	}
	return &Renderer{catalog: NewCatalog(opts.Language), unit: unit}
}

// Build localizes plan. input supplies the genotype status shown in the step line and
// decides whether the genotype clue panel is included.
func (r *Renderer) Build(plan *domain.TreatmentPlan, input *domain.PatientInput) (*Document, error) {
	if plan == nil {
		return nil, errors.New("render: nil plan")
	}
	c := r.catalog

	genotypeUnknown := input == nil || input.Genotype != domain.GenotypeKnown
	phenotype := c.Text("phenotype.unknown")
	if !genotypeUnknown {
		phenotype = c.Text("phenotype." + string(input.Phenotype))
	}

	doc := &Document{
		Language:   c.Language().String(),
		RTL:        IsRTL(c.Language()),
		Title:      c.Text("title"),
		Subtitle:   c.Text("subtitle"),
		Step:       c.Textf("label.step", c.Text("severity."+string(plan.Severity)), phenotype),
		Primary:    c.Textf("label.primary", r.primaryText(plan.Primary)),
		Risk:       c.Textf("label.risk", c.Text("risk."+string(plan.OverallRisk))),
		Theme:      ThemeFor(plan.OverallRisk),
		Disclaimer: c.Text("disclaimer"),
	}

	doc.Sections = append(doc.Sections,
		r.section("rec", []string{r.primaryText(plan.Primary)}),
		r.section("regimen", r.regimenItems(plan)),
		r.section("safety", codes(c, "alert.", plan.SafetyAlerts)),
		r.section("dosing", r.dosingItems(plan.Dosing)),
		r.section("alternatives", r.alternativeItems(plan.Alternatives)),
		r.section("extra", codes(c, "recommend.", plan.Recommendations)),
		r.section("avoid", r.avoidItems(plan.Avoid)),
		r.section("monitoring", codes(c, "monitor.", plan.Monitoring)),
		r.section("safety_stops", codes(c, "stop.", plan.StopRules)),
	)

	drugSafety := r.section("drug_safety", nil)
	for _, block := range plan.SafetyBlocks {
		drugSafety.Subsections = append(drugSafety.Subsections, Section{
			Key:   string(block.Drug),
			Title: r.drug(block.Drug),
			Items: codes(c, "advisory.", block.Lines),
		})
	}
	doc.Sections = append(doc.Sections, drugSafety)

	if genotypeUnknown {
		clues := Section{
			Key:   "genotype_clues",
			Title: c.Text("geno.title"),
			Items: []string{c.Text("geno.intro"), c.Text("geno.um"), c.Text("geno.pm"), c.Text("geno.advice")},
		}
		doc.GenotypeClues = &clues
	}

	doc.References = r.References()
	return doc, nil
}

// References returns the cited guidelines with localized labels.
func (r *Renderer) References() []Reference {
	refs := make([]Reference, 0, len(references))
	for _, ref := range references {
		refs = append(refs, Reference{Label: r.catalog.Text(ref.key), URL: ref.url})
	}
	return refs
}

// Disclaimer returns the localized educational-use notice.
func (r *Renderer) Disclaimer() string {
	return r.catalog.Text("disclaimer")
}

func (r *Renderer) section(key string, items []string) Section {
	return Section{Key: key, Title: r.catalog.Text("section." + key), Items: items}
}

func (r *Renderer) drug(d domain.Drug) string {
	return r.catalog.Text("drug." + string(d))
}

func (r *Renderer) primaryText(p domain.PrimaryTherapy) string {
	if p.Kind == domain.PrimaryOpioid && p.Drug != "" {
		return r.drug(p.Drug)
	}
	return r.catalog.Text("primary." + string(p.Kind))
}

// codes localizes a list of string-typed codes under a key prefix.
func codes[T ~string](c *Catalog, prefix string, list []T) []string {
	out := make([]string, 0, len(list))
	for _, code := range list {
		out = append(out, c.Text(prefix+string(code)))
	}
	return out
}

func (r *Renderer) regimenItems(plan *domain.TreatmentPlan) []string {
	items := make([]string, 0, len(plan.Regimen))
	for _, line := range plan.Regimen {
		names := make([]string, 0, len(line.Drugs))
		for _, d := range line.Drugs {
			names = append(names, r.drug(d))
		}
		item := r.catalog.Text("regimen."+string(line.Role)) + ": " + strings.Join(names, " + ")
		if line.Role != domain.RegimenPreferredOpioid && !plan.NSAIDAllowed {
			item += " " + r.catalog.Text("label.no_nsaid")
		}
		items = append(items, item)
	}
	return items
}

func (r *Renderer) dosingItems(lines []domain.DosingLine) []string {
	items := make([]string, 0, len(lines))
	for _, line := range lines {
		items = append(items, r.DoseText(line))
	}
	return items
}

// DoseText renders one dosing line. Weight-based lines honour the display unit, fixed
// lines keep the unit they are prescribed in.
func (r *Renderer) DoseText(line domain.DosingLine) string {
	c := r.catalog
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: ", r.drug(line.Drug), line.Route)

	if line.Basis == domain.BasisWeight {
		b.WriteString(units.FormatDose(line.DoseMg, r.unit))
		fmt.Fprintf(&b, " (≈ %g %s/kg, %s %s)", line.RatePerKg, line.NativeUnit,
			c.Text("label.max"), units.FormatAmount(line.Cap, line.NativeUnit))
	} else {
		if line.RangeLow == line.RangeHigh {
			b.WriteString(units.FormatAmount(line.RangeLow, line.NativeUnit))
		} else {
			fmt.Fprintf(&b, "%g–%s", line.RangeLow, units.FormatAmount(line.RangeHigh, line.NativeUnit))
		}
	}
	if line.Interval != "" {
		b.WriteString(" " + line.Interval)
	}
	if line.MaxDailyMg > 0 {
		maxDaily, err := units.FromMg(line.MaxDailyMg, line.NativeUnit)
		if err != nil {
			maxDaily, line.NativeUnit = line.MaxDailyMg, domain.DoseUnitMg
		}
		fmt.Fprintf(&b, "; %s %s%s", c.Text("label.max"), units.FormatAmount(maxDaily, line.NativeUnit), c.Text("label.per_day"))
	}
	if caveats := codes(c, "caveat.", line.Caveats); len(caveats) > 0 {
		b.WriteString("; " + strings.Join(caveats, "; "))
	}
	return b.String()
}

func (r *Renderer) alternativeItems(alts []domain.Alternative) []string {
	items := make([]string, 0, len(alts))
	for _, alt := range alts {
		item := r.drug(alt.Drug) + ": " + r.catalog.Text("alt."+string(alt.Reason))
		if alt.Dose != nil {
			item += " (" + r.DoseText(*alt.Dose) + ")"
		}
		items = append(items, item)
	}
	return items
}

func (r *Renderer) avoidItems(entries []domain.AvoidEntry) []string {
	items := make([]string, 0, len(entries))
	for _, e := range entries {
		items = append(items, r.drug(e.Drug)+": "+r.catalog.Text("avoid."+string(e.Reason)))
	}
	return items
}

// Markdown renders the document as GitHub-flavoured markdown.
func Markdown(doc *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n%s\n\n", doc.Title, doc.Subtitle)
	fmt.Fprintf(&b, "- **%s**\n- **%s**\n- **%s** `%s`\n\n", doc.Step, doc.Primary, doc.Risk, doc.Theme)

	for _, s := range doc.Sections {
		writeSection(&b, s, "##")
	}
	if doc.GenotypeClues != nil {
		writeSection(&b, *doc.GenotypeClues, "##")
	}

	fmt.Fprintf(&b, "## %s\n\n", titleOf(doc, "refs"))
	for _, ref := range doc.References {
		fmt.Fprintf(&b, "- [%s](%s)\n", ref.Label, ref.URL)
	}
	fmt.Fprintf(&b, "\n> %s\n", doc.Disclaimer)
	return b.String()
}

func writeSection(b *strings.Builder, s Section, heading string) {
	if len(s.Items) == 0 && len(s.Subsections) == 0 {
		return
	}
	fmt.Fprintf(b, "%s %s\n\n", heading, s.Title)
	for _, item := range s.Items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	if len(s.Items) > 0 {
		b.WriteString("\n")
	}
	for _, sub := range s.Subsections {
		writeSection(b, sub, heading+"#")
	}
}

func titleOf(doc *Document, key string) string {
	return NewCatalog(MatchLanguage(doc.Language)).Text("section." + key)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML renders the document to an HTML fragment. Arabic output is wrapped right to left.
func HTML(doc *Document) (string, error) {
	var buf bytes.Buffer
	dir := "ltr"
	if doc.RTL {
		dir = "rtl"
	}
	fmt.Fprintf(&buf, "<div dir=%q lang=%q class=\"risk-%s\">\n", dir, doc.Language, doc.Theme)
	if err := markdown.Convert([]byte(Markdown(doc)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	buf.WriteString("</div>\n")
	return buf.String(), nil
}
