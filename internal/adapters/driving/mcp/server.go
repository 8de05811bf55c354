// Package mcp exposes the protected resource: an MCP tool server reachable
// over streamable HTTP behind the broker's bearer guard.
package mcp

import (
	"context"
	"log/slog"
	"net/http"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// EndpointPath is where the tool server is mounted.
const EndpointPath = "/mcp"

// Config holds the tool server configuration
type Config struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

// Server registers the broker's MCP tools and serves them over HTTP
type Server struct {
	mcpServer *mcpserver.MCPServer
	logger    *slog.Logger
}

// NewServer creates a tool server with every tool registered
func NewServer(cfg Config) *Server {
	if cfg.Name == "" {
		cfg.Name = "oauth-broker"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcpserver.NewMCPServer(
			cfg.Name,
			cfg.Version,
			mcpserver.WithToolCapabilities(false),
		),
		logger: logger.With("component", "mcp"),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	generateUUID := mcpmcp.NewTool("generate_uuid",
		mcpmcp.WithDescription("Generate random v4 UUID(s). Use count parameter to generate multiple UUIDs (default: 1, max: 100)."),
		mcpmcp.WithNumber("count",
			mcpmcp.Description("Number of UUIDs to generate (default: 1)"),
			mcpmcp.Min(minCount),
			mcpmcp.Max(maxCount),
		),
	)
	s.mcpServer.AddTool(generateUUID, s.handleGenerateUUID)

	whoami := mcpmcp.NewTool("whoami",
		mcpmcp.WithDescription("Return the identity the caller's access token was issued for"),
	)
	s.mcpServer.AddTool(whoami, s.handleWhoami)
}

// Handler returns the streamable HTTP handler. The bearer guard in front of
// it stores the caller's AuthContext on the request; it is carried into every
// tool call.
func (s *Server) Handler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(
		s.mcpServer,
		mcpserver.WithEndpointPath(EndpointPath),
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if auth := domain.AuthContextFrom(r.Context()); auth != nil {
				return domain.WithAuthContext(ctx, auth)
			}
			return ctx
		}),
	)
}
