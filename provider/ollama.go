package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"

	"storechat/config"
	"storechat/mcp"
	"storechat/model"
	"storechat/ollama"
)

// OllamaProvider wraps the ollama.Client to implement the Provider
// interface. Models without native tool calling get tool definitions
// serialized into the prompt and leaked JSON calls recovered from the
// reply; models without a system role get the persona encoded as a
// synthetic user/assistant exchange.
type OllamaProvider struct {
	client  *ollama.Client
	name    string
	persona string
	timeout time.Duration
}

// noSystemRoleModels lists model families whose chat template has no system
// role. Persona context is folded into a leading synthetic exchange instead.
var noSystemRoleModels = []string{"gemma"}

// NewOllamaProvider creates a new Ollama provider instance. BaseURL and
// model fall back to the client defaults.
func NewOllamaProvider(cfg config.ProviderConfig, persona string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	name := cfg.ID
	if name == "" {
		name = "ollama"
	}
	timeoutMS := cfg.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = config.DefaultProviderTimeoutMS
	}

	return &OllamaProvider{
		client:  client,
		name:    name,
		persona: persona,
		timeout: time.Duration(timeoutMS) * time.Millisecond,
	}, nil
}

// Name implements Provider.Name.
func (p *OllamaProvider) Name() string { return p.name }

// GenerateResponse implements Provider.GenerateResponse by draining the
// stream into a complete response.
func (p *OllamaProvider) GenerateResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error) {
	result := &model.Response{}
	var contentBuilder strings.Builder

	err := p.StreamResponse(ctx, messages, tools, func(chunk string, toolCalls []model.ToolCall) error {
		contentBuilder.WriteString(chunk)
		result.ToolCalls = append(result.ToolCalls, toolCalls...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Content = contentBuilder.String()
	if len(result.ToolCalls) > 0 {
		result.Content = strings.TrimSpace(result.Content)
	}
	return result, nil
}

// StreamResponse implements Provider.StreamResponse.
func (p *OllamaProvider) StreamResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	nativeTools := p.client.SupportsToolCalling()

	withPersona := prependSystem(messages, p.persona)
	if len(tools) > 0 {
		if nativeTools {
			withPersona = prependSystem(withPersona, buildToolInstructions(tools))
		} else {
			withPersona = prependSystem(withPersona, buildSerializedToolPrompt(tools))
		}
	}

	ollamaMessages := convertToOllamaMessages(withPersona, p.supportsSystemRole())

	var ollamaTools []api.Tool
	if len(tools) > 0 && nativeTools {
		ollamaTools = mcp.ConvertMCPToolsToOllama(tools)
	}

	var contentBuilder strings.Builder
	var nativeCallsSeen bool

	ollamaCallback := func(chunk string, ollamaCalls []api.ToolCall) error {
		contentBuilder.WriteString(chunk)
		if callback == nil {
			return nil
		}
		providerCalls := convertOllamaToolCalls(ollamaCalls)
		if len(providerCalls) > 0 {
			nativeCallsSeen = true
		}
		return callback(chunk, providerCalls)
	}

	if err := p.client.ChatWithTools(ctx, ollamaMessages, ollamaTools, ollamaCallback); err != nil {
		return p.wrapError(err)
	}

	// Degraded mode: recover tool calls the model emitted as prompt text.
	if !nativeCallsSeen && !nativeTools && len(tools) > 0 && callback != nil {
		if leaked := ParseLeakedJSONToolCalls(contentBuilder.String()); len(leaked) > 0 {
			return callback("", leaked)
		}
	}

	return nil
}

func (p *OllamaProvider) supportsSystemRole() bool {
	modelName := strings.ToLower(p.client.GetModel())
	for _, prefix := range noSystemRoleModels {
		if strings.HasPrefix(modelName, prefix) {
			return false
		}
	}
	return true
}

func (p *OllamaProvider) wrapError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return wrapStatusError(p.name, statusErr.StatusCode, err)
	}
	return wrapTransportError(p.name, err)
}

// ListModels returns the models available on the local Ollama instance.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	models, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, p.wrapError(err)
	}
	return models, nil
}

// GetModel implements Provider.GetModel.
func (p *OllamaProvider) GetModel() string { return p.client.GetModel() }

// SetModel implements Provider.SetModel.
func (p *OllamaProvider) SetModel(model string) { p.client.SetModel(model) }

// Ping implements Provider.Ping.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return p.wrapError(err)
	}
	return nil
}

// convertToOllamaMessages converts storechat messages to Ollama format.
// When the model has no system role, system content becomes a synthetic
// user/assistant exchange at the head of the conversation.
func convertToOllamaMessages(messages []model.Message, systemRole bool) []api.Message {
	result := make([]api.Message, 0, len(messages)+1)

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if systemRole {
				result = append(result, api.Message{Role: "system", Content: msg.Content})
			} else {
				result = append(result,
					api.Message{Role: "user", Content: msg.Content},
					api.Message{Role: "assistant", Content: "Understood."},
				)
			}
		case model.RoleTool:
			result = append(result, api.Message{Role: "user", Content: formatToolResultForPrompt(msg)})
		default:
			result = append(result, api.Message{Role: msg.Role, Content: msg.Content})
		}
	}

	return result
}

// convertOllamaToolCalls converts Ollama tool calls to the provider-agnostic
// form. Ollama does not assign call ids, so one is synthesized.
func convertOllamaToolCalls(ollamaCalls []api.ToolCall) []model.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]model.ToolCall, 0, len(ollamaCalls))
	for i, call := range ollamaCalls {
		name, args, err := mcp.ConvertOllamaToolCallToMCP(call)
		if err != nil {
			continue
		}
		raw := mcp.MarshalArguments(args)
		result = append(result, model.ToolCall{
			ID:        fmt.Sprintf("call_ollama_%d", i),
			Name:      name,
			Arguments: raw,
		})
	}
	return result
}
