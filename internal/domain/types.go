package domain

import (
	"encoding/json"
	"slices"
)

// Chat roles understood by the inference backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatMessage is one entry of a conversation as exchanged with Ollama.
type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Images    []string   `json:"images,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolName names the capability that produced a tool message.
	ToolName string `json:"tool_name,omitempty"`
}

// ToolCall is a tool invocation embedded in an assistant message.
type ToolCall struct {
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the requested function and its arguments.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallDirective is the first tool call extracted from a model turn.
type ToolCallDirective struct {
	Name      string
	Arguments json.RawMessage
}

// ParameterSpec describes one named parameter of a capability.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// ToolDescriptor advertises a capability to the model.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ParameterSpec `json:"parameters"`
	// Schema is the JSON Schema object sent as the function's parameters.
	Schema map[string]any `json:"-"`
}

// Tool converts the descriptor to the function-tool wire format.
func (d ToolDescriptor) Tool() Tool {
	return Tool{
		Type: "function",
		Function: FunctionDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Schema,
		},
	}
}

// Tool is a function definition offered to the model in a chat request.
type Tool struct {
	Type     string      `json:"type"`
	Function FunctionDef `json:"function"`
}

// FunctionDef describes the function signature.
type FunctionDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters"` // JSON Schema
}

// WithSystemPrompt returns a copy of messages that starts with a system message.
// If any message already has the system role the conversation is returned unchanged.
func WithSystemPrompt(messages []ChatMessage, prompt string) []ChatMessage {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return slices.Clone(messages)
		}
	}
	out := make([]ChatMessage, 0, len(messages)+1)
	out = append(out, ChatMessage{Role: RoleSystem, Content: prompt})
	return append(out, messages...)
}
