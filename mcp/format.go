package mcp

import (
	"encoding/json"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// FormatResult normalizes a tool-server result into text. Text parts pass
// through; any structured part is JSON-stringified. An empty result stays
// empty rather than inventing content.
func FormatResult(result *mcptypes.CallToolResult) ToolResult {
	if result == nil {
		return ToolResult{}
	}

	var parts []string
	for _, content := range result.Content {
		switch v := content.(type) {
		case mcptypes.TextContent:
			parts = append(parts, v.Text)
		case *mcptypes.TextContent:
			parts = append(parts, v.Text)
		default:
			if raw, err := json.Marshal(content); err == nil {
				parts = append(parts, string(raw))
			}
		}
	}

	return ToolResult{
		Text:    strings.Join(parts, "\n"),
		IsError: result.IsError,
	}
}
