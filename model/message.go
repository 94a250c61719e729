package model

import "time"

// Message roles. Tool messages must carry the ToolCallID of the assistant
// tool call they answer.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message in a conversation.
type Message struct {
	Role       string
	Content    string
	Timestamp  time.Time
	ToolCalls  []ToolCall // set on assistant messages that request tool execution
	ToolCallID string     // set on tool messages, references the originating call
}

// ToolCall is a tool invocation requested by an assistant message.
// Arguments is the raw JSON-encoded argument object as produced by the
// provider; it is decoded only at the tool boundary.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Usage tracks token consumption reported by a provider.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a provider-agnostic completion result.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	Usage        *Usage
	FinishReason string
}

// NewUserMessage builds a user message stamped with the current time.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewSystemMessage builds a system message stamped with the current time.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage builds an assistant message stamped with the current time.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// NewToolMessage builds a tool-result message bound to the originating call.
func NewToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID, Timestamp: time.Now()}
}
