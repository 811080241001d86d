package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/scdaid-mcp-server/internal/render"
)

// VOCWorkflowPrompt is the name of the guided crisis-analgesia prompt
const VOCWorkflowPrompt = "voc_analgesia_workflow"

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(&mcp.Prompt{
		Name:        VOCWorkflowPrompt,
		Description: "Step-by-step workflow for planning analgesia in a vaso-occlusive crisis",
		Arguments: []*mcp.PromptArgument{
			{Name: "severity", Description: "mild, moderate or severe", Required: true},
			{Name: "egfr", Description: "estimated glomerular filtration rate, if known"},
			{Name: "genotype", Description: "known or unknown CYP2D6 genotype status"},
			{Name: "language", Description: "en or ar"},
		},
	}, s.getVOCWorkflow)
}

func (s *Server) getVOCWorkflow(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := map[string]string{}
	if req != nil && req.Params != nil && req.Params.Arguments != nil {
		args = req.Params.Arguments
	}

	severity := strings.ToLower(strings.TrimSpace(args["severity"]))
	if severity == "" {
		return nil, fmt.Errorf("argument severity is required")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A patient with sickle cell disease presents with a %s vaso-occlusive crisis.\n\n", severity)
	b.WriteString("1. Collect age, weight and eGFR. Ask about opioid tolerance, sedatives, morphine allergy, respiratory risk and suspected acute chest syndrome.\n")
	if egfr := strings.TrimSpace(args["egfr"]); egfr != "" {
		fmt.Fprintf(&b, "   eGFR reported as %s; call assess_renal_risk first to confirm the NSAID gate.\n", egfr)
	} else {
		b.WriteString("   eGFR is not yet known; treat renal function as unknown and avoid NSAIDs until it is.\n")
	}
	if strings.EqualFold(strings.TrimSpace(args["genotype"]), "known") {
		b.WriteString("2. CYP2D6 genotype is known; pass the phenotype code to recommend_analgesia.\n")
	} else {
		b.WriteString("2. CYP2D6 genotype is unknown; pass sex and prior codeine or tramadol response so a phenotype can be predicted.\n")
	}
	fmt.Fprintf(&b, "3. Call recommend_analgesia with severity=%s", severity)
	if lang := strings.TrimSpace(args["language"]); lang != "" {
		fmt.Fprintf(&b, " and language=%s", lang)
	}
	b.WriteString(".\n")
	b.WriteString("4. Review safety alerts and drugs to avoid before any dose. Reassess pain and sedation at the stated intervals.\n")
	b.WriteString("5. After treatment, call record_plan_feedback with the plan fingerprint and the primary therapy actually given.\n\n")
	b.WriteString(render.NewRenderer(s.opts.Display).Disclaimer())

	return &mcp.GetPromptResult{
		Description: "VOC analgesia workflow",
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: b.String()},
		}},
	}, nil
}
