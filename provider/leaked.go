package provider

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"storechat/model"
)

// leakedCall is the shape models emit when instructed to call tools through
// prompt text instead of native function calling. Some models use "tool"
// instead of "name".
type leakedCall struct {
	Name      string         `json:"name"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ParseLeakedJSONToolCalls recovers tool invocations that a model emitted as
// JSON in its free-text reply. It scans fenced code blocks first, then the
// raw content. Returns nil when nothing parseable is found.
func ParseLeakedJSONToolCalls(content string) []model.ToolCall {
	var calls []model.ToolCall

	for _, candidate := range jsonCandidates(content) {
		var lc leakedCall
		if err := json.Unmarshal([]byte(candidate), &lc); err != nil {
			continue
		}
		name := lc.Name
		if name == "" {
			name = lc.Tool
		}
		if name == "" {
			continue
		}
		args := lc.Arguments
		if args == nil {
			args = map[string]any{}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			continue
		}
		calls = append(calls, model.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      name,
			Arguments: string(raw),
		})
	}

	return calls
}

// jsonCandidates extracts substrings that might be a leaked tool-call object:
// fenced ```json blocks, or the outermost braced region of the content.
func jsonCandidates(content string) []string {
	var candidates []string

	remaining := content
	for {
		start := strings.Index(remaining, "```")
		if start == -1 {
			break
		}
		block := remaining[start+3:]
		if nl := strings.Index(block, "\n"); nl != -1 {
			// Drop the language tag line ("json", "JSON", empty)
			block = block[nl+1:]
		}
		end := strings.Index(block, "```")
		if end == -1 {
			break
		}
		candidates = append(candidates, strings.TrimSpace(block[:end]))
		remaining = block[end+3:]
	}

	if len(candidates) == 0 {
		open := strings.Index(content, "{")
		close := strings.LastIndex(content, "}")
		if open != -1 && close > open {
			candidates = append(candidates, content[open:close+1])
		}
	}

	return candidates
}
