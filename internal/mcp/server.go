// Package mcp exposes the analgesia engine as Model Context Protocol tools over stdio
// or streamable HTTP.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/scdaid-mcp-server/internal/domain"
	"github.com/scdaid-mcp-server/internal/feedback"
	"github.com/scdaid-mcp-server/internal/render"
	"github.com/scdaid-mcp-server/internal/service"
)

// Transport names accepted by Options.Transport
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Options configures the MCP server
type Options struct {
	Name      string
	Version   string
	Transport string // "stdio" (default) or "http"
	HTTPHost  string
	HTTPPort  int
	Display   render.Options
	ExportDir string // destination of export_plan_feedback
}

// Dependencies are the collaborators the tools call. Feedback is optional; without it
// the feedback tools report an error result.
type Dependencies struct {
	Advisor  *service.AdvisorService
	Feedback feedback.Store
	Logger   *logrus.Logger
}

// Server wraps the go-sdk server and the engine behind it
type Server struct {
	mcpServer *mcp.Server
	advisor   *service.AdvisorService
	feedback  feedback.Store
	opts      Options
	logger    *logrus.Logger
}

// NewServer creates an MCP server with every tool registered
func NewServer(opts Options, deps Dependencies) (*Server, error) {
	if deps.Advisor == nil {
		return nil, errors.New("advisor is required")
	}
	if opts.Name == "" {
		opts.Name = "scdaid-mcp-server"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Transport == "" {
		opts.Transport = TransportStdio
	}
	if opts.Display.DoseUnit == "" {
		display, err := render.OptionsFromConfig(domain.DisplayConfig{})
		if err != nil {
			return nil, err
		}
		opts.Display = display
	}

	logger := deps.Logger
	if logger == nil {
		logger = logrus.New()
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
		advisor:  deps.Advisor,
		feedback: deps.Feedback,
		opts:     opts,
		logger:   logger,
	}
	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	logger.WithFields(logrus.Fields{
		"name":      opts.Name,
		"version":   opts.Version,
		"transport": opts.Transport,
		"feedback":  deps.Feedback != nil,
	}).Info("MCP server initialized")

	return s, nil
}

// MCPServer returns the underlying go-sdk server
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

// Start serves the configured transport until ctx is cancelled or the client disconnects
func (s *Server) Start(ctx context.Context) error {
	switch s.opts.Transport {
	case TransportStdio:
		s.logger.Info("Serving MCP over stdio")
		if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil
	case TransportHTTP:
		return s.serveHTTP(ctx)
	default:
		return fmt.Errorf("unsupported transport %q", s.opts.Transport)
	}
}

// HTTPHandler returns the streamable HTTP handler for this server
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

func (s *Server) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/mcp", s.HTTPHandler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","name":%q,"version":%q}`, s.opts.Name, s.opts.Version)
	})

	addr := fmt.Sprintf("%s:%d", s.opts.HTTPHost, s.opts.HTTPPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.WithField("addr", addr).Info("Serving MCP over streamable HTTP at /mcp")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http transport: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
