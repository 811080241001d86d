package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scdaid-mcp-server/internal/render"
)

// Resource URIs served by the server
const (
	ReferencesURI      = "scdaid://references"
	FeedbackSummaryURI = "scdaid://feedback/summary"
)

type referencesResource struct {
	Language   string             `json:"language"`
	References []render.Reference `json:"references"`
	Disclaimer string             `json:"disclaimer"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         ReferencesURI,
		Name:        "references",
		Description: "Guidelines the analgesia plan is built from",
		MIMEType:    "application/json",
	}, s.readReferences)

	if s.feedback != nil {
		s.mcpServer.AddResource(&mcp.Resource{
			URI:         FeedbackSummaryURI,
			Name:        "feedback-summary",
			Description: "How often clinicians kept the suggested primary therapy",
			MIMEType:    "application/json",
		}, s.readFeedbackSummary)
	}
}

func (s *Server) readReferences(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	r := render.NewRenderer(s.opts.Display)
	return jsonResource(ReferencesURI, referencesResource{
		Language:   s.opts.Display.Language.String(),
		References: r.References(),
		Disclaimer: r.Disclaimer(),
	})
}

func (s *Server) readFeedbackSummary(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	summary, err := s.feedback.Summary(ctx)
	if err != nil {
		return nil, fmt.Errorf("summarize feedback: %w", err)
	}
	return jsonResource(FeedbackSummaryURI, summary)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		}},
	}, nil
}
