package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	mcpmcp "github.com/mark3labs/mcp-go/mcp"

	"github.com/custodia-labs/oauth-broker/internal/core/domain"
)

// generate_uuid bounds
const (
	minCount     = 1
	maxCount     = 100
	defaultCount = 1
)

type toolResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// UUIDBatch is the generate_uuid payload
type UUIDBatch struct {
	UUIDs       []string `json:"uuids"`
	Count       int      `json:"count"`
	GeneratedAt string   `json:"generatedAt"`
}

func (s *Server) handleGenerateUUID(ctx context.Context, request mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
	count, err := countArgument(request.GetArguments())
	if err != nil {
		s.logger.Warn("tool rejected", "tool", "generate_uuid", "error", err)
		return errorResult(err), nil
	}

	s.logger.Info("tool invoked", "tool", "generate_uuid", "count", count)

	uuids := make([]string, count)
	for i := range uuids {
		uuids[i] = uuid.NewString()
	}

	return successResult(UUIDBatch{
		UUIDs:       uuids,
		Count:       len(uuids),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// countArgument reads the optional integer count argument
func countArgument(args map[string]any) (int, error) {
	raw, ok := args["count"]
	if !ok || raw == nil {
		return defaultCount, nil
	}

	n, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("count must be a number")
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("count must be an integer")
	}
	if n < minCount || n > maxCount {
		return 0, fmt.Errorf("count must be between %d and %d", minCount, maxCount)
	}
	return int(n), nil
}

func (s *Server) handleWhoami(ctx context.Context, request mcpmcp.CallToolRequest) (*mcpmcp.CallToolResult, error) {
	auth := domain.AuthContextFrom(ctx)
	if auth == nil {
		return errorResult(fmt.Errorf("no authenticated identity")), nil
	}
	return successResult(auth)
}

func successResult(data any) (*mcpmcp.CallToolResult, error) {
	payload, err := json.Marshal(toolResponse{Success: true, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcpmcp.NewToolResultText(string(payload)), nil
}

func errorResult(err error) *mcpmcp.CallToolResult {
	payload, _ := json.Marshal(toolResponse{Success: false, Error: err.Error()})
	return mcpmcp.NewToolResultError(string(payload))
}
