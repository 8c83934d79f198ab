package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/mlint/internal/config"
	"github.com/standardbeagle/mlint/internal/version"
)

// Server exposes the analyzer as MCP tools over stdio
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	server *mcp.Server
}

// NewServer creates a server for the project described by cfg. Rules from
// cfg are used when a call names none. A nil logger means slog.Default.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mcp server requires a config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "mlint",
			Version: version.Info(),
		}, nil),
	}
	s.registerTools()
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "analyze",
		Description: "Run template rules over Wolfram Language sources (.m, .wl, .wls) and report issues with file and line.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "File or directory to analyze, relative to the project root. Defaults to the root.",
				},
				"rules": {
					Type:        "array",
					Description: "Rule instances to run instead of the configured rules",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"key":      {Type: "string", Description: "Rule key reported with each issue"},
							"template": {Type: "string", Description: "Template key, see the templates tool"},
							"params": {
								Type:                 "object",
								Description:          "Template parameters",
								AdditionalProperties: &jsonschema.Schema{Type: "string"},
							},
						},
						Required: []string{"key", "template"},
					},
				},
				"format": {
					Type:        "string",
					Description: "Output format",
					Enum:        []any{"json", "text", "compact"},
				},
			},
		},
	}, s.withRecovery("analyze", s.handleAnalyze))

	s.server.AddTool(&mcp.Tool{
		Name:        "templates",
		Description: "List the rule templates with their parameters.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"format": {
					Type:        "string",
					Description: "Output format",
					Enum:        []any{"json", "text"},
				},
			},
		},
	}, s.withRecovery("templates", s.handleTemplates))
}

// withRecovery turns a handler panic into an error result
func (s *Server) withRecovery(operation string, handler mcp.ToolHandler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in tool handler", "tool", operation, "panic", r, "stack", string(debug.Stack()))
				result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
			}
		}()
		return handler(ctx, req)
	}
}

// Start serves MCP over stdin/stdout until ctx is done or the client
// disconnects
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting MCP server", "root", s.cfg.Project.Root, "rules", len(s.cfg.Rules), "build", version.BuildID())
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying SDK server, for in-process transports
func (s *Server) MCPServer() *mcp.Server { return s.server }
