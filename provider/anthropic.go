package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"storechat/config"
	"storechat/mcp"
	"storechat/model"
)

// AnthropicProvider implements the Provider interface using Anthropic's
// official API. The persona and tool instructions ride in the system
// parameter since Anthropic has no system role in the messages array.
type AnthropicProvider struct {
	client      *anthropic.Client
	name        string
	model       anthropic.Model
	persona     string
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

// NewAnthropicProvider creates a new Anthropic provider instance. The API
// key is required.
func NewAnthropicProvider(cfg config.ProviderConfig, persona string) (*AnthropicProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	var anthropicModel anthropic.Model
	if cfg.Model == "" {
		anthropicModel = anthropic.ModelClaudeSonnet4_5_20250929
	} else {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	name := cfg.ID
	if name == "" {
		name = "anthropic"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096 // required by the Anthropic API
	}
	timeoutMS := cfg.TimeoutMS
	if timeoutMS <= 0 {
		timeoutMS = config.DefaultProviderTimeoutMS
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
	)

	return &AnthropicProvider{
		client:      &client,
		name:        name,
		model:       anthropicModel,
		persona:     persona,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		timeout:     time.Duration(timeoutMS) * time.Millisecond,
	}, nil
}

// Name implements Provider.Name.
func (p *AnthropicProvider) Name() string { return p.name }

// GenerateResponse implements Provider.GenerateResponse.
func (p *AnthropicProvider) GenerateResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool) (*model.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := p.buildParams(messages, tools)

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.wrapError(err)
	}

	result := &model.Response{
		FinishReason: string(msg.StopReason),
		Usage: &model.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += variant.Text
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, model.ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: string(variant.Input),
			})
		}
	}

	return result, nil
}

// StreamResponse implements Provider.StreamResponse. Text deltas stream
// through the callback; tool calls are delivered once the stream completes.
func (p *AnthropicProvider) StreamResponse(ctx context.Context, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := p.buildParams(messages, tools)
	stream := p.client.Messages.NewStreaming(ctx, params)

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			return model.NewProviderError(p.name, model.ErrServiceUnavailable, fmt.Errorf("error accumulating message: %w", err))
		}

		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if callback != nil {
					if err := callback(deltaVariant.Text, nil); err != nil {
						return err
					}
				}
			}
		}
	}

	if err := stream.Err(); err != nil {
		return p.wrapError(err)
	}

	if callback != nil {
		if toolCalls := extractToolCalls(msg.Content); len(toolCalls) > 0 {
			return callback("", toolCalls)
		}
	}

	return nil
}

func (p *AnthropicProvider) buildParams(messages []model.Message, tools []mcptypes.Tool) anthropic.MessageNewParams {
	anthropicMessages, systemBlocks := convertToAnthropicMessages(messages)

	// Persona first, then tool instructions, then any conversation-level
	// system prompts. The API rejects empty text blocks, so absent pieces
	// are omitted rather than sent blank.
	var finalSystem []anthropic.TextBlockParam
	if p.persona != "" {
		finalSystem = append(finalSystem, anthropic.TextBlockParam{Text: p.persona})
	}
	if len(tools) > 0 {
		finalSystem = append(finalSystem, anthropic.TextBlockParam{Text: buildToolInstructions(tools)})
	}
	finalSystem = append(finalSystem, systemBlocks...)

	params := anthropic.MessageNewParams{
		Model:     p.model,
		Messages:  anthropicMessages,
		MaxTokens: int64(p.maxTokens),
		System:    finalSystem,
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(p.temperature)
	}
	if len(tools) > 0 {
		params.Tools = mcp.ConvertMCPToolsToAnthropicFormat(tools)
	}
	return params
}

func (p *AnthropicProvider) wrapError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return wrapStatusError(p.name, apierr.StatusCode, err)
	}
	return wrapTransportError(p.name, err)
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string { return string(p.model) }

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(model string) { p.model = anthropic.Model(model) }

// Ping implements Provider.Ping with a minimal one-token request; Anthropic
// has no health endpoint.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return p.wrapError(err)
	}
	return nil
}

// convertToAnthropicMessages converts storechat messages to Anthropic
// format. System messages move into the system parameter; tool results
// travel as user text blocks.
func convertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleUser:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)

		case model.RoleAssistant:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)),
			)

		case model.RoleTool:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(formatToolResultForPrompt(msg))),
			)

		default:
			anthropicMsgs = append(anthropicMsgs,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)),
			)
		}
	}

	return anthropicMsgs, systemBlocks
}

// extractToolCalls extracts tool calls from Anthropic message content.
func extractToolCalls(content []anthropic.ContentBlockUnion) []model.ToolCall {
	var toolCalls []model.ToolCall

	for _, block := range content {
		if toolUse, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			// Verify the input is valid JSON before handing it on
			var probe map[string]any
			if err := json.Unmarshal(toolUse.Input, &probe); err != nil {
				continue
			}
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        toolUse.ID,
				Name:      toolUse.Name,
				Arguments: string(toolUse.Input),
			})
		}
	}

	return toolCalls
}
