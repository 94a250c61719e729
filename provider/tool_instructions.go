package provider

import (
	"encoding/json"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// buildToolInstructions creates execution guidance for models with native
// tool calling. Even capable models need explicit direction to act instead
// of narrating.
func buildToolInstructions(tools []mcptypes.Tool) string {
	toolNames := []string{}
	for _, tool := range tools {
		toolNames = append(toolNames, tool.Name)
	}

	return strings.Join([]string{
		"TOOLS: " + strings.Join(toolNames, ", "),
		"",
		"When the user asks you to do something that requires a tool:",
		"1. Determine which tool is needed",
		"2. Check if you have all required parameters",
		"3. If yes: Execute the tool IMMEDIATELY without explanation",
		"4. If no: Ask for the missing parameter ONLY",
		"",
		"DO NOT:",
		"- List available tools",
		"- Explain what you're about to do",
		"- Ask 'what would you like me to do?'",
	}, "\n")
}

// buildSerializedToolPrompt degrades tool definitions into prompt text for
// backends without native function calling. The model is asked to emit a
// bare JSON object which the adapter recovers via ParseLeakedJSONToolCalls.
func buildSerializedToolPrompt(tools []mcptypes.Tool) string {
	var sb strings.Builder
	sb.WriteString("You can call the following tools. To call one, reply with ONLY a JSON object\n")
	sb.WriteString(`of the form {"name": "<tool>", "arguments": {...}} and nothing else.`)
	sb.WriteString("\n\nAvailable tools:\n")

	for _, tool := range tools {
		sb.WriteString("- ")
		sb.WriteString(tool.Name)
		if tool.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(tool.Description)
		}
		if schema, err := json.Marshal(tool.InputSchema); err == nil {
			sb.WriteString("\n  parameters: ")
			sb.Write(schema)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
