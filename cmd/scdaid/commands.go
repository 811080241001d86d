package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scdaid-mcp-server/internal/app"
	"github.com/scdaid-mcp-server/internal/config"
	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/service"
)

type globalFlags struct {
	language     string
	doseUnit     string
	phenotypeURL string
	logLevel     string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "scdaid",
		Short:         "VOC analgesia decision support calculator (educational use only)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.language, "lang", "", "display language, en or ar (default $SCDAID_LANGUAGE or en)")
	root.PersistentFlags().StringVar(&g.doseUnit, "unit", "", "dose unit, mg or mcg (default $SCDAID_DOSE_UNIT or mg)")
	root.PersistentFlags().StringVar(&g.phenotypeURL, "predictor-url", "", "CYP2D6 phenotype prediction service (default $SCDAID_PHENOTYPE_URL)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "log level written to stderr")

	root.AddCommand(newPlanCommand(g), newDoseCommand(g), newRenalCommand(g), newPredictCommand(g))
	return root
}

// setup resolves display options against the lite env defaults and wires the engine
func (g *globalFlags) setup(cmd *cobra.Command) (*app.Components, render.Options, error) {
	env := config.LoadLiteConfig()

	logger, _, err := config.NewLogger(domain.LoggingConfig{Level: g.logLevel, Format: "text"})
	if err != nil {
		return nil, render.Options{}, err
	}
	logger.SetOutput(cmd.ErrOrStderr())

	display, err := render.OptionsFromConfig(env.Display())
	if err != nil {
		return nil, render.Options{}, err
	}
	display, err = display.With(g.language, g.doseUnit)
	if err != nil {
		return nil, render.Options{}, err
	}

	url := g.phenotypeURL
	if url == "" {
		url = env.PhenotypeURL
	}
	components, err := app.BuildCalculator(url, logger)
	if err != nil {
		return nil, render.Options{}, err
	}
	return components, display, nil
}

func newPlanCommand(g *globalFlags) *cobra.Command {
	var raw service.RawPatientInput
	var features service.PhenotypeFeatures
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a full analgesia plan",
		Example: `  scdaid plan --age 30 --weight 70 --egfr 25 --severity severe
  scdaid plan --age 45 --weight 180 --weight-unit lb --egfr 90 --sex F --lang ar --format html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, display, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			params := &service.RecommendParams{Patient: raw, Source: "cli"}
			if features.Sex != "" || features.CYP2D6Inhibitor || features.PriorCodeineResponse != "" || features.PriorTramadolResponse != "" {
				params.Phenotype = &features
			}

			result, err := components.Advisor.Recommend(cmd.Context(), params)
			if err != nil {
				return describeError(err)
			}
			if result.PredictionNote != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", result.PredictionNote)
			}

			doc, err := render.NewRenderer(display).Build(result.Plan, result.Input)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), result, doc, format)
		},
	}

	f := cmd.Flags()
	f.StringVar(&raw.Age, "age", "", "age in years")
	f.StringVar(&raw.Weight, "weight", "", "body weight")
	f.StringVar(&raw.WeightUnit, "weight-unit", "kg", "kg or lb")
	f.StringVar(&raw.EGFR, "egfr", "", "eGFR in mL/min/1.73m2")
	f.StringVar(&raw.CrisesPerYear, "crises-per-year", "", "VOC episodes in the past year")
	f.StringVar(&raw.Severity, "severity", "moderate", "mild, moderate or severe")
	f.StringVar(&raw.Genotype, "genotype", "unknown", "CYP2D6 genotype status, known or unknown")
	f.StringVar(&raw.Phenotype, "phenotype", "", "CYP2D6 phenotype PM, IM, EM or UM")
	f.BoolVar(&raw.OpioidTolerant, "opioid-tolerant", false, "patient is opioid tolerant")
	f.BoolVar(&raw.Sedatives, "sedatives", false, "concurrent sedatives")
	f.BoolVar(&raw.MorphineAllergy, "morphine-allergy", false, "morphine allergy or intolerance")
	f.BoolVar(&raw.RespiratoryRisk, "respiratory-risk", false, "sleep apnea or chronic lung disease")
	f.BoolVar(&raw.SuspectedACS, "acs", false, "suspected acute chest syndrome")
	f.StringVar(&features.Sex, "sex", "", "M or F, requests a phenotype prediction")
	f.BoolVar(&features.CYP2D6Inhibitor, "cyp2d6-inhibitor", false, "taking a CYP2D6 inhibitor")
	f.Var(priorFlag{&features.PriorCodeineResponse}, "prior-codeine", "prior codeine response: effective, ineffective, toxicity or unknown")
	f.Var(priorFlag{&features.PriorTramadolResponse}, "prior-tramadol", "prior tramadol response: effective, ineffective, toxicity or unknown")
	f.StringVar(&format, "format", render.FormatMarkdown, "markdown, html or json")
	return cmd
}

func newDoseCommand(g *globalFlags) *cobra.Command {
	var params service.DoseParams

	cmd := &cobra.Command{
		Use:     "dose",
		Short:   "Show the starting dose of one drug",
		Example: "  scdaid dose --drug fentanyl --severity severe --weight 70 --unit mcg",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, display, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			line, err := components.Advisor.CalculateDose(&params)
			if err != nil {
				return describeError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), render.NewRenderer(display).DoseText(*line))
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Drug, "drug", "", "drug code, e.g. morphine")
	cmd.Flags().StringVar(&params.Severity, "severity", "moderate", "mild, moderate or severe")
	cmd.Flags().StringVar(&params.Weight, "weight", "", "body weight, required for weight-based drugs")
	cmd.Flags().StringVar(&params.WeightUnit, "weight-unit", "kg", "kg or lb")
	_ = cmd.MarkFlagRequired("drug")
	return cmd
}

func newRenalCommand(g *globalFlags) *cobra.Command {
	var egfr string
	var acs bool

	cmd := &cobra.Command{
		Use:   "renal",
		Short: "Categorize eGFR and report the NSAID and opioid gates",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			var value *float64
			if egfr != "" {
				v, err := strconv.ParseFloat(egfr, 64)
				if err != nil {
					return fmt.Errorf("egfr must be a number: %q", egfr)
				}
				value = &v
			}
			return writeJSON(cmd.OutOrStdout(), components.Advisor.AssessRenal(value, acs))
		},
	}
	cmd.Flags().StringVar(&egfr, "egfr", "", "eGFR in mL/min/1.73m2; omit when unknown")
	cmd.Flags().BoolVar(&acs, "acs", false, "suspected acute chest syndrome")
	return cmd
}

func newPredictCommand(g *globalFlags) *cobra.Command {
	var req domain.PhenotypeRequest

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict CYP2D6 phenotype from clinical features",
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			if req.Weight <= 0 {
				return domain.ErrNonPositiveWeight
			}
			prediction, err := components.Advisor.PredictPhenotype(cmd.Context(), &req)
			if err != nil {
				if errors.Is(err, domain.ErrPhenotypeUnavailable) && components.Resolver == nil {
					return errors.New("no phenotype predictor configured; pass --predictor-url or set SCDAID_PHENOTYPE_URL")
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), prediction)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&req.Age, "age", 0, "age in years")
	f.Float64Var(&req.Weight, "weight", 0, "body weight in kg")
	f.Float64Var(&req.EGFR, "egfr", 0, "eGFR in mL/min/1.73m2")
	f.StringVar(&req.Sex, "sex", "", "M or F")
	f.BoolVar(&req.CYP2D6Inhibitor, "cyp2d6-inhibitor", false, "taking a CYP2D6 inhibitor")
	f.Var(priorFlag{&req.PriorCodeineResponse}, "prior-codeine", "prior codeine response")
	f.Var(priorFlag{&req.PriorTramadolResponse}, "prior-tramadol", "prior tramadol response")
	return cmd
}

// priorFlag parses a prior-response value into a domain.PriorResponse
type priorFlag struct {
	target *domain.PriorResponse
}

func (p priorFlag) String() string {
	if p.target == nil {
		return ""
	}
	return string(*p.target)
}

func (p priorFlag) Set(v string) error {
	r := domain.PriorResponse(strings.ToLower(strings.TrimSpace(v)))
	if !r.IsValid() {
		return fmt.Errorf("must be effective, ineffective, toxicity or unknown")
	}
	*p.target = r
	return nil
}

func (p priorFlag) Type() string {
	return "response"
}

func writeDocument(w io.Writer, result *service.RecommendResult, doc *render.Document, format string) error {
	if strings.EqualFold(format, render.FormatJSON) {
		return writeJSON(w, map[string]any{"result": result, "document": doc})
	}
	body, _, err := render.Encode(doc, format)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, body)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError flattens validation errors into one line per field
func describeError(err error) error {
	var verrs domain.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	lines := make([]string, 0, len(verrs))
	for _, v := range verrs {
		lines = append(lines, fmt.Sprintf("  --%s: %s", strings.ReplaceAll(v.Field, "_", "-"), v.Message))
	}
	return fmt.Errorf("invalid input:\n%s", strings.Join(lines, "\n"))
}
