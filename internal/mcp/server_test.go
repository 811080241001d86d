package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/feedback"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/repository"
	"github.com/scdaid-mcp-server/internal/service"
)

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Predict(ctx context.Context, req *domain.PhenotypeRequest) (*domain.PhenotypePrediction, error) {
	args := m.Called(ctx, req)
	if p := args.Get(0); p != nil {
		return p.(*domain.PhenotypePrediction), args.Error(1)
	}
	return nil, args.Error(1)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newTestServer(t *testing.T, predictor *mockPredictor, store feedback.Store) *Server {
	t.Helper()
	logger := quietLogger()

	runs, err := repository.NewMemoryPlanRunRepository(10)
	require.NoError(t, err)

	var resolver *service.CachedPhenotypeResolver
	if predictor != nil {
		resolver = service.NewCachedPhenotypeResolver(service.PhenotypeResolverConfig{}, predictor, nil, logger)
	}
	advisor := service.NewAdvisorService(logger, service.NewPlanAssembler(logger), resolver, runs)

	s, err := NewServer(Options{ExportDir: filepath.Join(t.TempDir(), "exports")}, Dependencies{
		Advisor:  advisor,
		Feedback: store,
		Logger:   logger,
	})
	require.NoError(t, err)
	return s
}

func newSQLiteStore(t *testing.T) *feedback.SQLiteStore {
	t.Helper()
	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func texts(result *mcp.CallToolResult) []string {
	var out []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			out = append(out, tc.Text)
		}
	}
	return out
}

func severeRenalInput() RecommendInput {
	return RecommendInput{Age: domain.Float(30), Weight: domain.Float(70), EGFR: domain.Float(25), Severity: "severe", Genotype: "known", Phenotype: "EM"}
}

func withFormat(in RecommendInput, format string) RecommendInput {
	in.Format = format
	return in
}

func TestNewServer(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		assert.NotNil(t, s.MCPServer())
		assert.Equal(t, "scdaid-mcp-server", s.opts.Name)
		assert.Equal(t, TransportStdio, s.opts.Transport)
		assert.Equal(t, domain.DoseUnitMg, s.opts.Display.DoseUnit)
		assert.NotNil(t, s.HTTPHandler())
	})

	t.Run("advisor required", func(t *testing.T) {
		_, err := NewServer(Options{}, Dependencies{})
		assert.Error(t, err)
	})
}

func TestStart_UnsupportedTransport(t *testing.T) {
	s := newTestServer(t, nil, nil)
	s.opts.Transport = "carrier-pigeon"

	assert.Error(t, s.Start(context.Background()))
}

func TestHandleRecommend(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name      string
		input     RecommendInput
		wantError bool
		contains  string
	}{
		{"markdown by default", severeRenalInput(), false, "### Fentanyl\n"},
		{"html", withFormat(severeRenalInput(), render.FormatHTML), false, "<h2>"},
		{"invalid severity", RecommendInput{Age: domain.Float(30), Weight: domain.Float(70), EGFR: domain.Float(90), Severity: "agonizing"}, true, "severity"},
		{"invalid dose unit", RecommendInput{Age: domain.Float(30), Weight: domain.Float(70), EGFR: domain.Float(90), DoseUnit: "grain"}, true, "dose unit"},
		{"unknown format", RecommendInput{Age: domain.Float(30), Weight: domain.Float(70), EGFR: domain.Float(90), Format: "pdf"}, true, "Unsupported format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := s.handleRecommend(context.Background(), nil, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, result.IsError)
			require.NotEmpty(t, texts(result))
			assert.Contains(t, texts(result)[0], tt.contains)
		})
	}
}

func TestHandleRecommend_MissingRequiredFields(t *testing.T) {
	s := newTestServer(t, nil, nil)

	result, _, err := s.handleRecommend(context.Background(), nil, RecommendInput{Weight: domain.Float(70), Severity: "moderate", Format: render.FormatJSON})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	require.NotEmpty(t, texts(result))
	msg := texts(result)[0]
	assert.Contains(t, msg, "'age'")
	assert.Contains(t, msg, "'egfr'")
	assert.NotContains(t, msg, "'weight'")
	assert.NotContains(t, msg, "Fentanyl")
}

func TestHandleRecommend_Summary(t *testing.T) {
	s := newTestServer(t, nil, nil)

	result, _, err := s.handleRecommend(context.Background(), nil, severeRenalInput())
	require.NoError(t, err)
	require.Len(t, texts(result), 2)

	var out RecommendOutput
	require.NoError(t, json.Unmarshal([]byte(texts(result)[1]), &out))
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, domain.DrugFentanyl, out.Plan.Primary.Drug)

	fingerprint, err := domain.Fingerprint(out.Plan)
	require.NoError(t, err)
	assert.Equal(t, fingerprint, out.Fingerprint)
}

func TestHandleRecommend_JSONFormat(t *testing.T) {
	s := newTestServer(t, nil, nil)
	in := severeRenalInput()
	in.Format = render.FormatJSON

	result, _, err := s.handleRecommend(context.Background(), nil, in)
	require.NoError(t, err)
	require.False(t, result.IsError)

	var body struct {
		Result   RecommendOutput  `json:"result"`
		Document *render.Document `json:"document"`
	}
	require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &body))
	assert.Equal(t, domain.RenalSevere, body.Result.Plan.RenalCategory)
	assert.Equal(t, "en", body.Document.Language)
}

func TestHandleRecommend_Prediction(t *testing.T) {
	predictor := new(mockPredictor)
	predictor.On("Predict", mock.Anything, mock.MatchedBy(func(req *domain.PhenotypeRequest) bool {
		return req.Sex == "F" && req.Weight == 70
	})).Return(&domain.PhenotypePrediction{
		Predicted:  domain.PhenotypePoor,
		RawCode:    "PM",
		Confidence: domain.ConfidenceHigh,
	}, nil)
	s := newTestServer(t, predictor, nil)

	in := RecommendInput{Age: domain.Float(30), Weight: domain.Float(70), EGFR: domain.Float(90), Sex: "F", Format: render.FormatJSON}
	result, _, err := s.handleRecommend(context.Background(), nil, in)
	require.NoError(t, err)
	require.False(t, result.IsError, texts(result))

	var body struct {
		Result RecommendOutput `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &body))
	require.NotNil(t, body.Result.Prediction)
	assert.True(t, body.Result.Plan.HasAlert(domain.AlertCYP2D6HighRisk))
	predictor.AssertExpectations(t)
}

func TestRecommendInput_Features(t *testing.T) {
	assert.Nil(t, RecommendInput{Age: domain.Float(30)}.features())

	f := RecommendInput{PriorCodeineResponse: "Toxicity"}.features()
	require.NotNil(t, f)
	assert.Equal(t, domain.ResponseToxicity, f.PriorCodeineResponse)
}

func TestRecommendInput_Patient(t *testing.T) {
	crises := 4.0
	raw := RecommendInput{Age: domain.Float(30), Weight: domain.Float(154.5), WeightUnit: "lb", EGFR: domain.Float(0), CrisesPerYear: &crises}.patient()

	assert.Equal(t, "30", raw.Age)
	assert.Equal(t, "154.5", raw.Weight)
	assert.Equal(t, "0", raw.EGFR)
	assert.Equal(t, "4", raw.CrisesPerYear)
	assert.Equal(t, "lb", raw.WeightUnit)

	empty := RecommendInput{}.patient()
	assert.Empty(t, empty.Age)
	assert.Empty(t, empty.Weight)
	assert.Empty(t, empty.EGFR)
}

func TestHandleCalculateDose(t *testing.T) {
	s := newTestServer(t, nil, nil)
	weight := 70.0

	tests := []struct {
		name      string
		input     DoseInput
		wantError bool
		contains  string
	}{
		{"fentanyl in mcg", DoseInput{Drug: "fentanyl", Severity: "severe", Weight: &weight, DoseUnit: "mcg"}, false, "100 mcg"},
		{"unknown drug", DoseInput{Drug: "aspirin"}, true, "unknown drug"},
		{"weight missing", DoseInput{Drug: "morphine"}, true, "Cannot calculate dose"},
		{"bad unit", DoseInput{Drug: "tramadol", DoseUnit: "grain"}, true, "Invalid dose unit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, _, err := s.handleCalculateDose(context.Background(), nil, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, result.IsError)
			assert.Contains(t, texts(result)[0], tt.contains)
		})
	}
}

func TestHandleAssessRenal(t *testing.T) {
	s := newTestServer(t, nil, nil)
	egfr := 45.0

	result, _, err := s.handleAssessRenal(context.Background(), nil, RenalInput{EGFR: &egfr})
	require.NoError(t, err)

	var assessment service.RenalAssessment
	require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &assessment))
	assert.Equal(t, domain.RenalModerate, assessment.Category)
	assert.Equal(t, domain.DrugHydromorphone, assessment.PreferredIV)
}

func TestHandlePredictPhenotype(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		result, _, err := s.handlePredictPhenotype(context.Background(), nil, PredictInput{Age: 30, Weight: 70, EGFR: 90})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("non-positive weight", func(t *testing.T) {
		s := newTestServer(t, new(mockPredictor), nil)
		result, _, err := s.handlePredictPhenotype(context.Background(), nil, PredictInput{Age: 30, EGFR: 90})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("service failure", func(t *testing.T) {
		predictor := new(mockPredictor)
		predictor.On("Predict", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
		s := newTestServer(t, predictor, nil)

		result, _, err := s.handlePredictPhenotype(context.Background(), nil, PredictInput{Age: 30, Weight: 70, EGFR: 90})
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, texts(result)[0], domain.ErrPhenotypeUnavailable.Error())
	})

	t.Run("prediction", func(t *testing.T) {
		predictor := new(mockPredictor)
		predictor.On("Predict", mock.Anything, mock.Anything).Return(&domain.PhenotypePrediction{
			Predicted:  domain.PhenotypeUltrarapid,
			RawCode:    "UM",
			Confidence: domain.ConfidenceHigh,
		}, nil)
		s := newTestServer(t, predictor, nil)

		result, _, err := s.handlePredictPhenotype(context.Background(), nil, PredictInput{Age: 30, Weight: 70, EGFR: 90, Sex: "M"})
		require.NoError(t, err)
		require.False(t, result.IsError)

		var prediction domain.PhenotypePrediction
		require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &prediction))
		assert.Equal(t, domain.PhenotypeUltrarapid, prediction.Predicted)
	})
}

func TestFeedbackTools(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	s := newTestServer(t, nil, store)

	result, _, err := s.handleRecordFeedback(ctx, nil, RecordFeedbackInput{
		Fingerprint:      "abc123",
		SuggestedPrimary: "fentanyl",
		ChosenPrimary:    "hydromorphone",
		Severity:         "severe",
		OverallRisk:      "high",
	})
	require.NoError(t, err)
	require.False(t, result.IsError, texts(result))

	var saved feedback.Feedback
	require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &saved))
	assert.False(t, saved.Agreed)

	result, _, err = s.handleRecordFeedback(ctx, nil, RecordFeedbackInput{Fingerprint: "abc123"})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = s.handleListFeedback(ctx, nil, ListFeedbackInput{})
	require.NoError(t, err)
	var listing struct {
		Entries []*feedback.Feedback       `json:"entries"`
		Summary *feedback.AgreementSummary `json:"summary"`
		Limit   int                        `json:"limit"`
	}
	require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &listing))
	assert.Len(t, listing.Entries, 1)
	assert.Equal(t, 20, listing.Limit)
	assert.Equal(t, int64(1), listing.Summary.Overrides["hydromorphone"])

	result, _, err = s.handleExportFeedback(ctx, nil, ExportFeedbackInput{})
	require.NoError(t, err)
	require.False(t, result.IsError, texts(result))
	var export struct {
		FilePath string `json:"file_path"`
		Count    int64  `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &export))
	assert.Equal(t, int64(1), export.Count)
	assert.FileExists(t, export.FilePath)

	other := newSQLiteStore(t)
	importer := newTestServer(t, nil, other)
	for _, want := range []struct{ imported, skipped int }{{1, 0}, {0, 1}} {
		result, _, err = importer.handleImportFeedback(ctx, nil, ImportFeedbackInput{FilePath: export.FilePath})
		require.NoError(t, err)
		require.False(t, result.IsError, texts(result))

		var counts struct {
			Imported int `json:"imported"`
			Skipped  int `json:"skipped"`
		}
		require.NoError(t, json.Unmarshal([]byte(texts(result)[0]), &counts))
		assert.Equal(t, want.imported, counts.Imported)
		assert.Equal(t, want.skipped, counts.Skipped)
	}
}

func TestFeedbackTools_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no store", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		calls := []func() (*mcp.CallToolResult, any, error){
			func() (*mcp.CallToolResult, any, error) {
				return s.handleRecordFeedback(ctx, nil, RecordFeedbackInput{Fingerprint: "x", SuggestedPrimary: "morphine"})
			},
			func() (*mcp.CallToolResult, any, error) { return s.handleListFeedback(ctx, nil, ListFeedbackInput{}) },
			func() (*mcp.CallToolResult, any, error) { return s.handleExportFeedback(ctx, nil, ExportFeedbackInput{}) },
			func() (*mcp.CallToolResult, any, error) {
				return s.handleImportFeedback(ctx, nil, ImportFeedbackInput{FilePath: "x.json"})
			},
		}
		for _, call := range calls {
			result, _, err := call()
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, texts(result)[0], errNoFeedbackStore.Error())
		}
	})

	t.Run("import missing file", func(t *testing.T) {
		s := newTestServer(t, nil, newSQLiteStore(t))
		result, _, err := s.handleImportFeedback(ctx, nil, ImportFeedbackInput{FilePath: filepath.Join(t.TempDir(), "missing.json")})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("import malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

		s := newTestServer(t, nil, newSQLiteStore(t))
		result, _, err := s.handleImportFeedback(ctx, nil, ImportFeedbackInput{FilePath: path})
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})
}

func TestReadResources(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	s := newTestServer(t, nil, store)

	result, err := s.readReferences(ctx, nil)
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, ReferencesURI, result.Contents[0].URI)

	var refs referencesResource
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &refs))
	assert.Len(t, refs.References, 4)
	assert.NotEmpty(t, refs.Disclaimer)

	require.NoError(t, store.Save(ctx, &feedback.Feedback{
		PlanFingerprint:  "fp-1",
		SuggestedPrimary: "morphine",
		ChosenPrimary:    "morphine",
		Agreed:           true,
	}))
	result, err = s.readFeedbackSummary(ctx, nil)
	require.NoError(t, err)

	var summary feedback.AgreementSummary
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &summary))
	assert.Equal(t, int64(1), summary.Total)
	assert.InDelta(t, 1.0, summary.Rate, 1e-9)
}

func TestGetVOCWorkflow(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name     string
		args     map[string]string
		wantErr  bool
		contains []string
	}{
		{"severity required", map[string]string{}, true, nil},
		{"unknown genotype", map[string]string{"severity": "Severe"}, false, []string{"severe vaso-occlusive crisis", "phenotype can be predicted", "renal function as unknown"}},
		{"known genotype with egfr", map[string]string{"severity": "mild", "egfr": "40", "genotype": "known", "language": "ar"}, false, []string{"eGFR reported as 40", "pass the phenotype code", "language=ar"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.getVOCWorkflow(context.Background(), &mcp.GetPromptRequest{
				Params: &mcp.GetPromptParams{Name: VOCWorkflowPrompt, Arguments: tt.args},
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Messages, 1)
			text := result.Messages[0].Content.(*mcp.TextContent).Text
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}
