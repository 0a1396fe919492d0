package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type stubTool struct {
	name    string
	execute func(ctx context.Context, params json.RawMessage) (Result, error)
}

func (s stubTool) Name() string { return s.name }

func (s stubTool) Description() string { return "stub" }

func (s stubTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }

func (s stubTool) Execute(ctx context.Context, params json.RawMessage) (Result, error) {
	if s.execute == nil {
		return Result{Content: json.RawMessage(`{"ok":true}`)}, nil
	}
	return s.execute(ctx, params)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	if err := registry.Register(stubTool{name: "echo"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := registry.Register(stubTool{name: "echo"}); !errors.Is(err, ErrToolAlreadyRegistered) {
		t.Fatalf("duplicate Register() error = %v", err)
	}
	if err := registry.Register(stubTool{name: "  "}); !errors.Is(err, ErrToolNameRequired) {
		t.Fatalf("blank-name Register() error = %v", err)
	}
	if err := registry.Register(nil); !errors.Is(err, ErrToolRequired) {
		t.Fatalf("nil Register() error = %v", err)
	}

	tool, err := registry.Get("echo")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tool.Name() != "echo" {
		t.Fatalf("Get() returned %q", tool.Name())
	}
	if _, err := registry.Get("missing"); !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
}

func TestRegistrySpecs(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(stubTool{name: "one"}, stubTool{name: "two"})
	specs := registry.Specs()
	if len(specs) != 2 {
		t.Fatalf("Specs() returned %d entries", len(specs))
	}
	for _, spec := range specs {
		if spec.Description != "stub" || !json.Valid(spec.Schema) {
			t.Fatalf("malformed spec %+v", spec)
		}
	}
}

func TestInvokeWrapsFailuresAsPayloads(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(stubTool{
		name: "flaky",
		execute: func(ctx context.Context, params json.RawMessage) (Result, error) {
			return Result{}, errors.New("upstream timeout")
		},
	})

	payload, isErr, err := registry.Invoke(context.Background(), "flaky", nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if !isErr {
		t.Fatalf("expected error payload flag")
	}
	var decoded struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded.Error == "" || !strings.Contains(decoded.Details, "upstream timeout") {
		t.Fatalf("payload = %s", payload)
	}
}

func TestInvokeUnknownToolBecomesPayload(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	payload, isErr, err := registry.Invoke(context.Background(), "nope", nil)
	if err != nil || !isErr {
		t.Fatalf("Invoke() = %v, isErr=%v", err, isErr)
	}
	if !strings.Contains(string(payload), "unknown tool") {
		t.Fatalf("payload = %s", payload)
	}
}

func TestInvokePropagatesCancellation(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(stubTool{
		name: "slow",
		execute: func(ctx context.Context, params json.RawMessage) (Result, error) {
			return Result{}, ctx.Err()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := registry.Invoke(ctx, "slow", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Invoke() error = %v, want context.Canceled", err)
	}
}

func TestInvokeNormalizesInvalidContent(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(stubTool{
		name: "garbled",
		execute: func(ctx context.Context, params json.RawMessage) (Result, error) {
			return Result{Content: json.RawMessage("not-json")}, nil
		},
	})

	payload, isErr, err := registry.Invoke(context.Background(), "garbled", nil)
	if err != nil || isErr {
		t.Fatalf("Invoke() = %v, isErr=%v", err, isErr)
	}
	if string(payload) != "{}" {
		t.Fatalf("payload = %s, want empty object", payload)
	}
}
