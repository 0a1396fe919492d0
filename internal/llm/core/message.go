package core

import "encoding/json"

// Role identifies the message author in the canonical turn format.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// StopReason represents the canonical reason a model response stopped.
type StopReason string

const (
	StopReasonStop    StopReason = "stop"
	StopReasonLength  StopReason = "length"
	StopReasonToolUse StopReason = "tool_use"
	StopReasonError   StopReason = "error"
	StopReasonAborted StopReason = "aborted"
)

// ContentType identifies content block variants. Only text is supported.
type ContentType string

const ContentTypeText ContentType = "text"

// ContentBlock is a canonical content unit.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// ToolCall represents a model-emitted tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult represents the local execution result for a tool call. Content
// is the serialized payload submitted back to the model; IsError marks
// structured error payloads so the model can react to tool failures.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Message is one provider-agnostic conversation turn.
type Message struct {
	Role       Role           `json:"role"`
	Content    []ContentBlock `json:"content,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	ToolResult *ToolResult    `json:"tool_result,omitempty"`
}

// UserMessage builds a plain-text user turn.
func UserMessage(text string) Message {
	return Message{
		Role:    RoleUser,
		Content: []ContentBlock{{Type: ContentTypeText, Text: text}},
	}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var out string
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			out += block.Text
		}
	}
	return out
}

// Clone returns a deep copy safe to append to a shared history.
func (m Message) Clone() Message {
	cloned := Message{
		Role:    m.Role,
		Content: append([]ContentBlock(nil), m.Content...),
	}
	if len(m.ToolCalls) > 0 {
		cloned.ToolCalls = make([]ToolCall, 0, len(m.ToolCalls))
		for _, call := range m.ToolCalls {
			cloned.ToolCalls = append(cloned.ToolCalls, call.Clone())
		}
	}
	if m.ToolResult != nil {
		result := *m.ToolResult
		cloned.ToolResult = &result
	}
	return cloned
}

// Clone returns a copy with detached argument bytes.
func (c ToolCall) Clone() ToolCall {
	cloned := c
	cloned.Arguments = append(json.RawMessage(nil), c.Arguments...)
	return cloned
}

// Usage tracks provider token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Clone returns a copy safe to share as pointer payload.
func (u Usage) Clone() *Usage {
	copied := u
	return &copied
}
