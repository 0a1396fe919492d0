// Package llm exposes the provider-agnostic streaming model contract and the
// bundled provider implementations under one import path.
package llm

import (
	anthropicprovider "ripple/internal/llm/providers/anthropic"
	mockprovider "ripple/internal/llm/providers/mock"

	"ripple/internal/llm/core"
)

type (
	// Provider is the public streaming provider contract.
	Provider = core.Provider

	// EventType enumerates stream chunk variants.
	EventType = core.EventType

	// Request and Event payload aliases define the public stream protocol.
	Request     = core.Request
	Event       = core.Event
	DonePayload = core.DonePayload

	// Conversation-model aliases.
	Role         = core.Role
	StopReason   = core.StopReason
	ContentType  = core.ContentType
	ContentBlock = core.ContentBlock
	ToolCall     = core.ToolCall
	ToolResult   = core.ToolResult
	ToolSpec     = core.ToolSpec
	Message      = core.Message
	Usage        = core.Usage

	// RetryPolicy configures provider retry/backoff behavior.
	RetryPolicy = core.RetryPolicy

	// Anthropic* aliases expose provider-specific configuration and implementation.
	AnthropicConfig   = anthropicprovider.Config
	AnthropicProvider = anthropicprovider.Provider

	// MockProvider emits scripted events for tests.
	MockProvider = mockprovider.Provider
)

const (
	EventStart         = core.EventStart
	EventTextDelta     = core.EventTextDelta
	EventToolCallStart = core.EventToolCallStart
	EventToolCallDelta = core.EventToolCallDelta
	EventToolCallEnd   = core.EventToolCallEnd
	EventUsage         = core.EventUsage
	EventDone          = core.EventDone
	EventError         = core.EventError

	RoleUser      = core.RoleUser
	RoleAssistant = core.RoleAssistant
	RoleTool      = core.RoleTool

	StopReasonStop    = core.StopReasonStop
	StopReasonLength  = core.StopReasonLength
	StopReasonToolUse = core.StopReasonToolUse
	StopReasonError   = core.StopReasonError
	StopReasonAborted = core.StopReasonAborted

	ContentTypeText = core.ContentTypeText
)

var (
	// ErrInvalidRequest indicates malformed canonical request payloads.
	ErrInvalidRequest = core.ErrInvalidRequest
	// ErrMissingAPIKey indicates missing model API credentials.
	ErrMissingAPIKey = core.ErrMissingAPIKey
)

// UserMessage builds a plain-text user turn.
func UserMessage(text string) Message {
	return core.UserMessage(text)
}

// NewToolSpecFromStruct reflects a Go struct into a normalized tool schema.
func NewToolSpecFromStruct(name, description string, schemaStruct any) (ToolSpec, error) {
	return core.NewToolSpecFromStruct(name, description, schemaStruct)
}

// NewAnthropicProvider constructs an Anthropic provider with normalized defaults.
func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	return anthropicprovider.New(cfg)
}
