package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/feedback"
	"github.com/scdaid-mcp-server/internal/middleware"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/service"
)

// Dependencies are the collaborators the HTTP API serves. Feedback, Runs and
// HealthChecks are optional.
type Dependencies struct {
	Advisor      *service.AdvisorService
	Feedback     feedback.Store
	Runs         domain.PlanAuditRepository
	HealthChecks map[string]func(ctx context.Context) error
	Logger       *logrus.Logger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	display       render.Options
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies) (*Server, error) {
	if deps.Advisor == nil {
		return nil, errors.New("advisor is required")
	}
	cfg := configManager.GetConfig()

	display, err := render.OptionsFromConfig(cfg.Display)
	if err != nil {
		return nil, fmt.Errorf("display config: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	// Set Gin mode based on environment
	if configManager.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		display:       display,
		router:        router,
		logger:        logger,
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	server.setupRoutes(limiter)

	return server, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(limiter *middleware.RateLimiter) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	v1.Use(limiter.Middleware())
	{
		v1.POST("/plans", s.handleCreatePlan)
		v1.POST("/doses", s.handleCalculateDose)
		v1.GET("/renal", s.handleAssessRenal)
		v1.POST("/phenotype/predict", s.handlePredictPhenotype)

		v1.POST("/feedback", s.handleSaveFeedback)
		v1.GET("/feedback", s.handleListFeedback)
		v1.GET("/feedback/summary", s.handleFeedbackSummary)
		v1.GET("/feedback/export", s.handleExportFeedback)
		v1.GET("/feedback/:fingerprint", s.handleGetFeedback)
		v1.DELETE("/feedback/:id", s.handleDeleteFeedback)

		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
	}
}

// handleHealth reports the state of every configured component
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(s.deps.HealthChecks))
	for name, check := range s.deps.HealthChecks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":     state,
		"timestamp":  time.Now().UTC(),
		"version":    s.configManager.GetConfig().MCP.ServerVersion,
		"components": components,
	})
}
