package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"storechat/config"
	"storechat/mcp"
	"storechat/model"
)

// OpenAIProvider implements the Provider interface using OpenAI's official
// API. Also serves OpenAI-compatible endpoints (OpenRouter) via BaseURL.
type OpenAIProvider struct {
	client      openai.Client
	name        string
	model       string
	persona     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAIProvider creates a new OpenAI provider instance. The API key is
// required; baseURL and model fall back to OpenAI defaults.
func NewOpenAIProvider(cfg config.ProviderConfig, persona string) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	name := cfg.ID
	if name == "" {
		name = "openai"
	}
	timeoutMS := cfg.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = config.DefaultProviderTimeoutMS
	}

	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)

	return &OpenAIProvider{
		client:      client,
		name:        name,
		model:       modelName,
		persona:     persona,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(timeoutMS) * time.Millisecond,
	}, nil
}

// Name implements Provider.Name.
func (p *OpenAIProvider) Name() string { return p.name }

// GenerateResponse implements Provider.GenerateResponse.
func (p *OpenAIProvider) GenerateResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := p.buildParams(messages, tools)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, model.NewProviderError(p.name, model.ErrServiceUnavailable, fmt.Errorf("empty choices in completion"))
	}

	choice := resp.Choices[0]
	result := &model.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: &model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, model.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	// Safety check: some models leak tool invocations into free text even
	// when native calling is available.
	if len(result.ToolCalls) == 0 && len(tools) > 0 {
		if leaked := ParseLeakedJSONToolCalls(result.Content); len(leaked) > 0 {
			result.ToolCalls = leaked
			result.Content = ""
		}
	}

	return result, nil
}

// StreamResponse implements Provider.StreamResponse using the SDK's chunk
// accumulator.
func (p *OpenAIProvider) StreamResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := p.buildParams(messages, tools)

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	acc := openai.ChatCompletionAccumulator{}

	var contentBuilder strings.Builder
	var toolCallsDetected bool

	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		if tool, ok := acc.JustFinishedToolCall(); ok {
			toolCallsDetected = true
			if callback != nil {
				call := model.ToolCall{
					ID:        "call_" + fmt.Sprint(tool.Index),
					Name:      tool.Name,
					Arguments: tool.Arguments,
				}
				if err := callback("", []model.ToolCall{call}); err != nil {
					return err
				}
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			content := chunk.Choices[0].Delta.Content
			contentBuilder.WriteString(content)
			if callback != nil {
				if err := callback(content, nil); err != nil {
					return err
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return p.wrapError(err)
	}

	if !toolCallsDetected && len(tools) > 0 && callback != nil {
		if leaked := ParseLeakedJSONToolCalls(contentBuilder.String()); len(leaked) > 0 {
			return callback("", leaked)
		}
	}

	return nil
}

func (p *OpenAIProvider) buildParams(messages []model.Message, tools []mcptypes.Tool) openai.ChatCompletionNewParams {
	withPersona := prependSystem(messages, p.persona)
	if len(tools) > 0 {
		withPersona = prependSystem(withPersona, buildToolInstructions(tools))
	}

	params := openai.ChatCompletionNewParams{
		Messages: convertToOpenAIMessages(withPersona),
		Model:    openai.ChatModel(p.model),
	}
	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToOpenAIFormat(tools)
	}
	return params
}

func (p *OpenAIProvider) wrapError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return wrapStatusError(p.name, apierr.StatusCode, err)
	}
	return wrapTransportError(p.name, err)
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string { return p.model }

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(model string) { p.model = model }

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := p.client.Models.List(ctx); err != nil {
		return p.wrapError(err)
	}
	return nil
}

// convertToOpenAIMessages converts storechat messages to OpenAI format.
// Tool results travel as user messages: assistant tool-call messages are
// flattened to text, so orphan tool-role messages would be rejected upstream.
func convertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, len(messages))

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result[i] = openai.SystemMessage(msg.Content)
		case model.RoleUser:
			result[i] = openai.UserMessage(msg.Content)
		case model.RoleAssistant:
			result[i] = openai.AssistantMessage(msg.Content)
		case model.RoleTool:
			result[i] = openai.UserMessage(formatToolResultForPrompt(msg))
		default:
			result[i] = openai.UserMessage(msg.Content)
		}
	}

	return result
}

// prependSystem puts a system message in front of the list without mutating
// the caller's slice.
func prependSystem(messages []model.Message, content string) []model.Message {
	if content == "" {
		return messages
	}
	out := make([]model.Message, 0, len(messages)+1)
	out = append(out, model.Message{Role: model.RoleSystem, Content: content})
	return append(out, messages...)
}

// formatToolResultForPrompt renders a tool-result message as text for
// backends where we do not use the native tool-result wire format.
func formatToolResultForPrompt(msg model.Message) string {
	if msg.ToolCallID == "" {
		return "Tool result: " + msg.Content
	}
	return fmt.Sprintf("Tool result (%s): %s", msg.ToolCallID, msg.Content)
}
