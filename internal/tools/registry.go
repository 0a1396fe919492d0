package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrToolRequired          = errors.New("tool is required")
	ErrToolNameRequired      = errors.New("tool name is required")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
	ErrToolNotFound          = errors.New("tool not found")
)

// Result carries a tool's JSON-serializable output for the model.
type Result struct {
	Content json.RawMessage
}

// Tool is the canonical runtime contract for all tools surfaced to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, params json.RawMessage) (Result, error)
}

// Registry stores tools by name and executes them by lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs an empty tool registry and optionally registers tools.
func NewRegistry(initial ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool, len(initial)),
	}
	for _, tool := range initial {
		_ = r.Register(tool)
	}
	return r
}

// Register inserts a tool by its canonical name.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return ErrToolRequired
	}
	name := strings.TrimSpace(tool.Name())
	if name == "" {
		return ErrToolNameRequired
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, name)
	}
	r.tools[name] = tool
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	lookup := strings.TrimSpace(name)
	if lookup == "" {
		return nil, ErrToolNameRequired
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[lookup]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, lookup)
	}
	return tool, nil
}

// Specs returns declaration payloads for every registered tool.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]Spec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, Spec{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      append(json.RawMessage(nil), tool.Schema()...),
		})
	}
	return specs
}

// Spec is a tool declaration: name, description and a JSON Schema payload.
type Spec struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// Invoke resolves a named tool and runs it, capturing every failure into a
// structured error payload. The returned bytes are always valid JSON: either
// the tool's own result object or {"error": ..., "details": ...}. Callers can
// rely on this never raising past the tool boundary, except for context
// cancellation which must unwind the caller.
func (r *Registry) Invoke(ctx context.Context, name string, params json.RawMessage) (json.RawMessage, bool, error) {
	tool, err := r.Get(name)
	if err != nil {
		return errorPayload("unknown tool", err), true, nil
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, false, err
		}
		return errorPayload("tool execution failed", err), true, nil
	}

	content := result.Content
	if len(content) == 0 || !json.Valid(content) {
		content = json.RawMessage(`{}`)
	}
	return content, false, nil
}

// errorPayload serializes a structured tool error the model can react to.
func errorPayload(message string, err error) json.RawMessage {
	payload := struct {
		Error   string `json:"error"`
		Details string `json:"details,omitempty"`
	}{Error: message}
	if err != nil {
		payload.Details = err.Error()
	}

	raw, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return json.RawMessage(`{"error":"tool execution failed"}`)
	}
	return raw
}
