// Package mcptools exposes the milestone service as MCP tools.
//
// Every tool is a struct holding the service, with Definition returning
// the mcp.Tool schema and Handle processing one call. Failures are
// returned as tool errors, never as protocol errors.
package mcptools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"milestonez/internal/service"
)

// Register adds every milestone tool to s.
func Register(s *server.MCPServer, svc *service.MilestoneService) {
	gen := NewGenerateTool(svc)
	s.AddTool(gen.Definition(), gen.Handle)

	upd := NewUpdateTool(svc)
	s.AddTool(upd.Definition(), upd.Handle)

	get := NewGetHistoryTool(svc)
	s.AddTool(get.Definition(), get.Handle)

	list := NewListHistoriesTool(svc)
	s.AddTool(list.Definition(), list.Handle)
}

// intArg extracts an integer argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func stringsArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func errorResult(action string, err error) *mcp.CallToolResult {
	if stage := service.StageOf(err); stage != "" {
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s (stage %s): %v", action, stage, err))
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
}
