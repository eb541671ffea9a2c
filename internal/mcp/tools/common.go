package tools

import (
	"github.com/campusevents/server/internal/validation"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolResultJSON converts a payload to an MCP tool result with JSON content.
func toolResultJSON(payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("failed to build response", err), nil
	}
	return result, nil
}

// toolError reports a failure to the client as a tool result. Field errors
// pass through; anything else is replaced by internalMsg.
func toolError(err error, internalMsg string) (*mcp.CallToolResult, error) {
	if errs, ok := validation.AsErrors(err); ok {
		return mcp.NewToolResultError(errs.Error()), nil
	}
	return mcp.NewToolResultError(internalMsg), nil
}
