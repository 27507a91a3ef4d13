package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/isolink-io/isolink/pkg/client"
)

// Server adapts isolinkd to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"isolink",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// isolink://journal
	s.mcpServer.AddResource(mcp.NewResource(
		"isolink://journal",
		"Isolink Link Journal",
		mcp.WithResourceDescription("Recent link events showing indirect resolutions and canonical merges"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadJournal)

	// isolink://registry
	s.mcpServer.AddResource(mcp.NewResource(
		"isolink://registry",
		"Isolink Component Registry",
		mcp.WithResourceDescription("All registered components with their phase, class, and anchors"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRegistry)
}

// --- Tools ---

func (s *Server) registerTools() {
	// isolink_create_component
	s.mcpServer.AddTool(mcp.NewTool(
		"isolink_create_component",
		mcp.WithDescription("Register a component in the link registry. Returns the registered ID."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("Registry-unique component identifier")),
		mcp.WithString("anchor", mcp.Description("Optional anchor to seed as an inert residue")),
		mcp.WithString("phase", mcp.Description("Lifecycle phase: dormant, witness, transform, or residue (default dormant)")),
	), s.handleCreateComponent)

	// isolink_resolve
	s.mcpServer.AddTool(mcp.NewTool(
		"isolink_resolve",
		mcp.WithDescription("Attempt an indirect link from a source component to whichever component exposes an anchor. Returns Linked/NotLinked."),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("The component requesting the link")),
		mcp.WithString("anchor", mcp.Required(), mcp.Description("The anchor to resolve (e.g. 'render', 'gpu')")),
	), s.handleResolve)

	// isolink_canonicalize
	s.mcpServer.AddTool(mcp.NewTool(
		"isolink_canonicalize",
		mcp.WithDescription("Resolve a component to its canonical form, merging it into an existing equivalence class when one matches."),
		mcp.WithString("component_id", mcp.Required(), mcp.Description("The component to canonicalize")),
	), s.handleCanonicalize)

	// isolink_outcomes
	s.mcpServer.AddTool(mcp.NewTool(
		"isolink_outcomes",
		mcp.WithDescription("Fetch resolution outcome counters (true/false positives and negatives)."),
		mcp.WithString("component_id", mcp.Description("Limit to one component (default: all)")),
	), s.handleOutcomes)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"isolink-aware",
		mcp.WithPromptDescription("Provides context about Isolink concepts (Components, Anchors, Residues, Canonical Classes)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadJournal(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	journal, err := s.apiClient.Journal(ctx, 0, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal: %w", err)
	}

	data, err := json.MarshalIndent(journal, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal journal: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadRegistry(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	components, err := s.apiClient.ListComponents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch components: %w", err)
	}

	data, err := json.MarshalIndent(components, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal components: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCreateComponent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spec := client.ComponentSpec{
		ComponentID: mcp.ParseString(request, "component_id", ""),
		Anchor:      mcp.ParseString(request, "anchor", ""),
		Phase:       mcp.ParseString(request, "phase", ""),
	}

	result, err := s.apiClient.CreateComponent(ctx, spec)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	resultMsg := fmt.Sprintf("Registered: %s\nStatus: %s", result.ComponentID, result.Status)
	return mcp.NewToolResultText(resultMsg), nil
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID := mcp.ParseString(request, "source_id", "")
	anchor := mcp.ParseString(request, "anchor", "")

	result, err := s.apiClient.Resolve(ctx, sourceID, anchor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	if result.Linked {
		return mcp.NewToolResultText(fmt.Sprintf("Linked: yes\nTarget: %s", result.TargetID)), nil
	}
	reason := result.Reason
	if reason == "" {
		reason = "no activated residue matched"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Linked: no\nReason: %s", reason)), nil
}

func (s *Server) handleCanonicalize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	componentID := mcp.ParseString(request, "component_id", "")

	result, err := s.apiClient.Canonicalize(ctx, componentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	resultMsg := fmt.Sprintf("Representative: %s\nMerged: %t", result.Representative, result.Merged)
	return mcp.NewToolResultText(resultMsg), nil
}

func (s *Server) handleOutcomes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	componentID := mcp.ParseString(request, "component_id", "")

	result, err := s.apiClient.Outcomes(ctx, componentID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal outcomes: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "isolink-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with Isolink, a component-linking daemon.

Concepts:
- Component: A registered unit with a lifecycle phase (dormant, witness, transform, residue).
- Anchor: A symbolic name a component exposes through its residues (e.g. 'render', 'gpu').
- Residue: An anchor plus optional context and an activation function. Without an activation the anchor is inert and can never link.
- Indirect link: A resolved connection from a source component to whichever component exposes an anchor with an activation above threshold.
- Canonical class: Components that are structurally equivalent fold into one class with a single representative.

When the user asks whether two components are connected, use the 'isolink_resolve' tool.
If resolution reports no link, do not assume a connection exists; the anchor may be inert or below threshold.
Use 'isolink_canonicalize' to deduplicate structurally equivalent components before reasoning about the graph.
`

	return mcp.NewGetPromptResult(
		"isolink-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
