package mcp

import (
	"strings"
	"testing"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func TestFormatResult(t *testing.T) {
	t.Run("joins text parts", func(t *testing.T) {
		result := FormatResult(&mcptypes.CallToolResult{
			Content: []mcptypes.Content{
				mcptypes.TextContent{Type: "text", Text: "first"},
				mcptypes.TextContent{Type: "text", Text: "second"},
			},
		})
		if result.Text != "first\nsecond" {
			t.Errorf("Text = %q", result.Text)
		}
		if result.IsError {
			t.Error("IsError = true, want false")
		}
	})

	t.Run("pointer text content", func(t *testing.T) {
		result := FormatResult(&mcptypes.CallToolResult{
			Content: []mcptypes.Content{&mcptypes.TextContent{Type: "text", Text: "ptr"}},
		})
		if result.Text != "ptr" {
			t.Errorf("Text = %q", result.Text)
		}
	})

	t.Run("structured content is stringified", func(t *testing.T) {
		result := FormatResult(&mcptypes.CallToolResult{
			Content: []mcptypes.Content{
				mcptypes.ImageContent{Type: "image", MIMEType: "image/png", Data: "deadbeef"},
			},
		})
		if !strings.Contains(result.Text, "image/png") {
			t.Errorf("Text = %q, want JSON with mime type", result.Text)
		}
	})

	t.Run("error flag carried through", func(t *testing.T) {
		result := FormatResult(&mcptypes.CallToolResult{
			Content: []mcptypes.Content{mcptypes.TextContent{Type: "text", Text: "boom"}},
			IsError: true,
		})
		if !result.IsError {
			t.Error("IsError = false, want true")
		}
	})

	t.Run("nil and empty results", func(t *testing.T) {
		if got := FormatResult(nil); got.Text != "" || got.IsError {
			t.Errorf("FormatResult(nil) = %+v", got)
		}
		if got := FormatResult(&mcptypes.CallToolResult{}); got.Text != "" {
			t.Errorf("empty result text = %q", got.Text)
		}
	})
}
