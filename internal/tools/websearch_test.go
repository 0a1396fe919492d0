package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebSearchReturnsResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Subscription-Token"); got != "key-123" {
			t.Errorf("subscription token = %q", got)
		}
		if got := r.URL.Query().Get("q"); got != "weather in Paris" {
			t.Errorf("query = %q", got)
		}
		_, _ = w.Write([]byte(`{
			"web": {"results": [
				{"title": "Paris forecast", "url": "https://example.com/paris", "description": "18C, cloudy"},
				{"title": "Another", "url": "https://example.com/2"}
			]}
		}`))
	}))
	defer srv.Close()

	search, err := NewWebSearch(WebSearchConfig{APIKey: "key-123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWebSearch() error = %v", err)
	}

	result, err := search.Execute(context.Background(), json.RawMessage(`{"query":"weather in Paris"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var decoded struct {
		Query   string `json:"query"`
		Results []struct {
			Title string `json:"title"`
			URL   string `json:"url"`
		} `json:"results"`
	}
	if err := json.Unmarshal(result.Content, &decoded); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if decoded.Query != "weather in Paris" || len(decoded.Results) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.Results[0].Title != "Paris forecast" {
		t.Fatalf("first hit = %+v", decoded.Results[0])
	}
}

func TestWebSearchCapsResultCount(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"web":{"results":[
			{"title":"1"},{"title":"2"},{"title":"3"},{"title":"4"}
		]}}`))
	}))
	defer srv.Close()

	search, err := NewWebSearch(WebSearchConfig{APIKey: "k", BaseURL: srv.URL, MaxResults: 2})
	if err != nil {
		t.Fatalf("NewWebSearch() error = %v", err)
	}
	result, err := search.Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	var decoded struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(result.Content, &decoded); err != nil {
		t.Fatalf("result not JSON: %v", err)
	}
	if len(decoded.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(decoded.Results))
	}
}

func TestWebSearchMissingCredentialIsStructuredError(t *testing.T) {
	t.Parallel()

	search, err := NewWebSearch(WebSearchConfig{})
	if err != nil {
		t.Fatalf("NewWebSearch() error = %v", err)
	}

	result, err := search.Execute(context.Background(), json.RawMessage(`{"query":"anything"}`))
	if err != nil {
		t.Fatalf("missing credential must not be a Go error, got %v", err)
	}
	if !strings.Contains(string(result.Content), "web search is not configured") {
		t.Fatalf("result = %s", result.Content)
	}
}

func TestWebSearchUpstreamFailureIsStructuredError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	search, err := NewWebSearch(WebSearchConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWebSearch() error = %v", err)
	}
	result, err := search.Execute(context.Background(), json.RawMessage(`{"query":"q"}`))
	if err != nil {
		t.Fatalf("upstream failure must not be a Go error, got %v", err)
	}
	if !strings.Contains(string(result.Content), "web search failed") {
		t.Fatalf("result = %s", result.Content)
	}
}

func TestWebSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	search, err := NewWebSearch(WebSearchConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewWebSearch() error = %v", err)
	}
	if _, err := search.Execute(context.Background(), json.RawMessage(`{"query":"  "}`)); !errors.Is(err, ErrQueryRequired) {
		t.Fatalf("Execute() error = %v, want ErrQueryRequired", err)
	}
	if _, err := search.Execute(context.Background(), json.RawMessage(`{bad`)); err == nil {
		t.Fatalf("expected decode error for malformed params")
	}
}

func TestWebSearchSchemaDeclaresQuery(t *testing.T) {
	t.Parallel()

	search, err := NewWebSearch(WebSearchConfig{})
	if err != nil {
		t.Fatalf("NewWebSearch() error = %v", err)
	}
	schema := string(search.Schema())
	if !strings.Contains(schema, `"query"`) || !strings.Contains(schema, `"required"`) {
		t.Fatalf("schema = %s", schema)
	}
}
