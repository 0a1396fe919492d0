package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ripple/internal/llm/core"
)

const (
	// WebSearchToolName is the tool name declared to the model.
	WebSearchToolName = "web_search"

	defaultSearchBaseURL    = "https://api.search.brave.com/res/v1/web/search"
	defaultSearchMaxResults = 5
	defaultSearchTimeout    = 15 * time.Second

	webSearchDescription = "Search the web for current information. " +
		"Use this for questions about recent events, live data, or anything " +
		"outside your training data."
)

// ErrQueryRequired indicates a web search invocation without a query string.
var ErrQueryRequired = errors.New("query is required")

// WebSearchParams is the tool argument payload declared to the model.
type WebSearchParams struct {
	Query string `json:"query" jsonschema:"required,description=The search query"`
}

// WebSearchConfig configures the web search tool.
type WebSearchConfig struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	HTTPClient *http.Client
}

// WebSearch queries the Brave Search API. A missing credential is not fatal:
// Execute reports it as a structured error result so the model can explain
// the limitation instead of the response failing.
type WebSearch struct {
	apiKey     string
	baseURL    string
	maxResults int
	client     *http.Client
	schema     json.RawMessage
}

// NewWebSearch constructs the web search tool.
func NewWebSearch(cfg WebSearchConfig) (*WebSearch, error) {
	spec, err := core.NewToolSpecFromStruct(WebSearchToolName, webSearchDescription, WebSearchParams{})
	if err != nil {
		return nil, fmt.Errorf("build web_search schema: %w", err)
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultSearchBaseURL
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchMaxResults
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultSearchTimeout}
	}

	return &WebSearch{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		maxResults: maxResults,
		client:     client,
		schema:     spec.Schema,
	}, nil
}

func (w *WebSearch) Name() string { return WebSearchToolName }

func (w *WebSearch) Description() string { return webSearchDescription }

func (w *WebSearch) Schema() json.RawMessage { return w.schema }

// searchHit is one result entry returned to the model.
type searchHit struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// braveResponse mirrors the subset of the Brave Search payload we consume.
type braveResponse struct {
	Web struct {
		Results []searchHit `json:"results"`
	} `json:"web"`
}

// Execute runs one search. Configuration and upstream failures are folded
// into structured error payloads; only malformed arguments and context
// cancellation surface as Go errors.
func (w *WebSearch) Execute(ctx context.Context, params json.RawMessage) (Result, error) {
	var args WebSearchParams
	if err := json.Unmarshal(params, &args); err != nil {
		return Result{}, fmt.Errorf("decode web_search params: %w", err)
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return Result{}, ErrQueryRequired
	}

	if w.apiKey == "" {
		return structuredError("web search is not configured", "missing search API credential"), nil
	}

	hits, err := w.search(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, err
		}
		return structuredError("web search failed", err.Error()), nil
	}

	payload, err := json.Marshal(struct {
		Query   string      `json:"query"`
		Results []searchHit `json:"results"`
	}{Query: query, Results: hits})
	if err != nil {
		return Result{}, fmt.Errorf("encode web_search result: %w", err)
	}
	return Result{Content: payload}, nil
}

func (w *WebSearch) search(ctx context.Context, query string) ([]searchHit, error) {
	endpoint := fmt.Sprintf("%s?q=%s&count=%d", w.baseURL, url.QueryEscape(query), w.maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", w.apiKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search api status %d", resp.StatusCode)
	}

	var decoded braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := decoded.Web.Results
	if len(hits) > w.maxResults {
		hits = hits[:w.maxResults]
	}
	return hits, nil
}

// structuredError builds a {"error": ..., "details": ...} tool result.
func structuredError(message, details string) Result {
	payload, err := json.Marshal(struct {
		Error   string `json:"error"`
		Details string `json:"details,omitempty"`
	}{Error: message, Details: details})
	if err != nil {
		payload = json.RawMessage(`{"error":"web search failed"}`)
	}
	return Result{Content: payload}
}
