package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// createJSONResponse creates a standardized JSON response for MCP tools
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(content)},
		},
	}, nil
}

// createTextResponse wraps preformatted output. Extra blocks (warnings)
// follow the main text as separate content items.
func createTextResponse(text string, extra ...string) *mcp.CallToolResult {
	content := []mcp.Content{&mcp.TextContent{Text: text}}
	for _, e := range extra {
		content = append(content, &mcp.TextContent{Text: e})
	}
	return &mcp.CallToolResult{Content: content}
}

// createErrorResponse reports a tool failure inside the result with
// IsError set, so the client sees it instead of a protocol error.
func createErrorResponse(operation string, err error) (*mcp.CallToolResult, error) {
	errorData := map[string]interface{}{
		"success":   false,
		"error":     err.Error(),
		"operation": operation,
	}

	response, marshalErr := createJSONResponse(errorData)
	if marshalErr != nil {
		return nil, marshalErr
	}
	response.IsError = true
	return response, nil
}
