package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/feedback"
	"github.com/scdaid-mcp-server/internal/middleware"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/service"
)

// PlanRequest is the body of POST /api/v1/plans
type PlanRequest struct {
	Patient   service.RawPatientInput    `json:"patient"`
	Phenotype *service.PhenotypeFeatures `json:"phenotype,omitempty"`
}

// PlanResponse pairs the language-neutral plan with its rendered document
type PlanResponse struct {
	*service.RecommendResult
	Document *render.Document `json:"document"`
}

// DoseRequest is the body of POST /api/v1/doses
type DoseRequest struct {
	service.DoseParams
	Unit string `json:"unit,omitempty"`
}

// DoseResponse is a single dosing line and its display text
type DoseResponse struct {
	Line *domain.DosingLine `json:"line"`
	Text string             `json:"text"`
}

func (s *Server) correlationID(c *gin.Context) string {
	return c.GetString(middleware.CorrelationIDKey)
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.AbortWithStatusJSON(status, domain.NewAppError(code, message, details, s.correlationID(c)))
}

// respondServiceError maps domain errors onto HTTP statuses
func (s *Server) respondServiceError(c *gin.Context, err error) {
	var verrs domain.ValidationErrors
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verrs):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":       domain.ErrValidation,
			"message":    "invalid patient input",
			"fields":     verrs,
			"request_id": s.correlationID(c),
			"timestamp":  time.Now().UTC(),
		})
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"code":       domain.ErrValidation,
			"message":    verr.Message,
			"fields":     domain.ValidationErrors{verr},
			"request_id": s.correlationID(c),
			"timestamp":  time.Now().UTC(),
		})
	case errors.Is(err, domain.ErrNotFound):
		s.respondError(c, http.StatusNotFound, domain.ErrNotFoundCode, "not found", err.Error())
	case errors.Is(err, domain.ErrPhenotypeUnavailable):
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrExternalAPI, "phenotype prediction unavailable", err.Error())
	case errors.Is(err, domain.ErrNonPositiveWeight), errors.Is(err, domain.ErrNoWeightBasedDosing),
		errors.Is(err, domain.ErrInvalidDoseUnit), errors.Is(err, domain.ErrUnknownDrug):
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid request", err.Error())
	default:
		s.logger.WithError(err).WithField("correlation_id", s.correlationID(c)).Error("Request failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "internal error", "")
	}
}

// renderOptions applies ?lang= (or Accept-Language) and ?unit= to the configured defaults
func (s *Server) renderOptions(c *gin.Context) (render.Options, error) {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	return s.display.With(lang, c.Query("unit"))
}

// handleCreatePlan runs the engine and renders the result. ?format=markdown|html returns
// the rendered document alone.
func (s *Server) handleCreatePlan(c *gin.Context) {
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body", err.Error())
		return
	}
	opts, err := s.renderOptions(c)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	result, err := s.deps.Advisor.Recommend(c.Request.Context(), &service.RecommendParams{
		Patient:   req.Patient,
		Phenotype: req.Phenotype,
		RequestID: s.correlationID(c),
		Source:    "api",
	})
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	doc, err := render.NewRenderer(opts).Build(result.Plan, result.Input)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	if format := c.Query("format"); format != "" && format != render.FormatJSON {
		body, contentType, err := render.Encode(doc, format)
		if err != nil {
			s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "unsupported format", err.Error())
			return
		}
		c.Header("Content-Language", doc.Language)
		c.Data(http.StatusOK, contentType, []byte(body))
		return
	}

	c.JSON(http.StatusOK, PlanResponse{RecommendResult: result, Document: doc})
}

// handleCalculateDose returns one drug's starting dose
func (s *Server) handleCalculateDose(c *gin.Context) {
	var req DoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body", err.Error())
		return
	}
	opts, err := s.display.With("", req.Unit)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	line, err := s.deps.Advisor.CalculateDose(&req.DoseParams)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, DoseResponse{Line: line, Text: render.NewRenderer(opts).DoseText(*line)})
}

// handleAssessRenal categorizes ?egfr= and reports the renal gates
func (s *Server) handleAssessRenal(c *gin.Context) {
	var egfr *float64
	if raw := c.Query("egfr"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.respondServiceError(c, domain.NewValidationError("egfr", "egfr must be a number", raw))
			return
		}
		egfr = &v
	}
	acs, _ := strconv.ParseBool(c.Query("acs"))

	c.JSON(http.StatusOK, s.deps.Advisor.AssessRenal(egfr, acs))
}

// handlePredictPhenotype forwards features to the phenotype predictor
func (s *Server) handlePredictPhenotype(c *gin.Context) {
	var req domain.PhenotypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body", err.Error())
		return
	}
	if req.Weight <= 0 {
		s.respondServiceError(c, domain.NewValidationError("weight", domain.ErrNonPositiveWeight.Error(), req.Weight))
		return
	}

	prediction, err := s.deps.Advisor.PredictPhenotype(c.Request.Context(), &req)
	if err != nil {
		if !errors.Is(err, domain.ErrPhenotypeUnavailable) {
			err = errors.Join(domain.ErrPhenotypeUnavailable, err)
		}
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, prediction)
}

func (s *Server) feedbackStore(c *gin.Context) feedback.Store {
	if s.deps.Feedback == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrDatabaseError, "feedback store is not configured", "")
		return nil
	}
	return s.deps.Feedback
}

// handleSaveFeedback records whether the clinician kept the suggested primary therapy
func (s *Server) handleSaveFeedback(c *gin.Context) {
	store := s.feedbackStore(c)
	if store == nil {
		return
	}
	var fb feedback.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "malformed request body", err.Error())
		return
	}
	if err := fb.Validate(); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, "plan_fingerprint and suggested_primary are required", err.Error())
		return
	}
	if err := store.Save(c.Request.Context(), &fb); err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	store := s.feedbackStore(c)
	if store == nil {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	total, err := store.Count(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total, "limit": limit, "offset": offset})
}

func (s *Server) handleFeedbackSummary(c *gin.Context) {
	store := s.feedbackStore(c)
	if store == nil {
		return
	}
	summary, err := store.Summary(c.Request.Context())
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleExportFeedback(c *gin.Context) {
	store := s.feedbackStore(c)
	if store == nil {
		return
	}
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="scdaid-feedback.json"`)
	if err := store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithError(err).Error("Feedback export failed")
	}
}

func (s *Server) handleGetFeedback(c *gin.Context) {
	store := s.feedbackStore(c)
	if store == nil {
		return
	}
	fb, err := store.Get(c.Request.Context(), c.Param("fingerprint"))
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	if fb == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrNotFoundCode, "no feedback for this plan", "")
		return
	}
	c.JSON(http.StatusOK, fb)
}

func (s *Server) handleDeleteFeedback(c *gin.Context) {
	store := s.feedbackStore(c)
	if store == nil {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "id must be a positive integer", c.Param("id"))
		return
	}
	if err := store.Delete(c.Request.Context(), id); err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s.deps.Runs == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrDatabaseError, "run audit is not configured", "")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.deps.Runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s.deps.Runs == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrDatabaseError, "run audit is not configured", "")
		return
	}
	run, err := s.deps.Runs.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
