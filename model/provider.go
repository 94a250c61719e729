package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Provider abstracts LLM backends (OpenAI, Anthropic, Ollama, rule-based)
// using provider-agnostic types from the model layer.
//
// This interface is defined in the model package (not the provider package)
// to avoid import cycles: provider implementations can import model, and
// consumers can use the Provider interface without importing the provider
// package.
type Provider interface {
	// Name returns the stable provider identifier used by the registry
	// and the availability cache (e.g. "openai", "anthropic", "ollama").
	Name() string

	// GenerateResponse sends the message list (plus optional tool
	// definitions) and returns the complete response. Vendor failures are
	// mapped to a *ProviderError before they leave the adapter.
	GenerateResponse(ctx context.Context, messages []Message, tools []mcptypes.Tool) (*Response, error)

	// StreamResponse streams the response through callback. Adapters that
	// cannot stream fall back to a single callback invocation with the
	// full content.
	StreamResponse(ctx context.Context, messages []Message, tools []mcptypes.Tool, callback StreamCallback) error

	// GetModel returns the currently selected model name.
	GetModel() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the backend is reachable. Used by the availability
	// probe; a non-nil error means unavailable.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each chunk of a streamed response. Tool calls
// arrive once the backend has finished emitting them.
type StreamCallback func(chunk string, toolCalls []ToolCall) error
