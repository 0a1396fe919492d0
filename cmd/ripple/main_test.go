package main

import (
	"errors"
	"testing"

	"ripple/internal/config"
	"ripple/internal/llm"
	"ripple/internal/tools"
)

func TestBuildProviderFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Provider.Anthropic.APIKey = "test-key"
	cfg.Provider.Anthropic.Model = "claude-sonnet-4-20250514"
	cfg.Provider.Anthropic.BaseURL = "https://api.example"
	cfg.Provider.Anthropic.Retry.MaxRetries = 7
	cfg.Provider.Anthropic.Retry.BaseDelay = "700ms"
	cfg.Provider.Anthropic.Retry.MaxDelay = "9s"

	provider, settings, err := buildProviderFromConfig(cfg)
	if err != nil {
		t.Fatalf("buildProviderFromConfig() error = %v", err)
	}
	if provider == nil {
		t.Fatalf("expected provider, got nil")
	}
	if settings.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("model = %q", settings.Model)
	}
	if settings.Retry.MaxRetries != 7 {
		t.Fatalf("retry = %+v", settings.Retry)
	}
}

func TestBuildProviderFromConfigMissingAPIKeyFailsFast(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Provider.Anthropic.APIKey = ""

	_, _, err := buildProviderFromConfig(cfg)
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("expected llm.ErrMissingAPIKey, got %v", err)
	}
}

func TestBuildToolRegistryRegistersWebSearch(t *testing.T) {
	t.Parallel()

	registry, err := buildToolRegistry(config.Default())
	if err != nil {
		t.Fatalf("buildToolRegistry() error = %v", err)
	}
	if _, err := registry.Get(tools.WebSearchToolName); err != nil {
		t.Fatalf("registry.Get(%q) error = %v", tools.WebSearchToolName, err)
	}
}
