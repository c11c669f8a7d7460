// Unit tests for OllamaProvider.
// Uses httptest.NewServer to mock the Ollama HTTP API, no real Ollama needed.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// ============================================================================
// Chat tests
// ============================================================================

func TestOllamaProvider_Chat_Success(t *testing.T) {
	t.Parallel()

	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ollamaChatResponse{ //nolint:errcheck
			Message:         ollamaChatMessage{Role: "assistant", Content: "Hello there"},
			DoneReason:      "stop",
			Done:            true,
			PromptEvalCount: 120,
			EvalCount:       30,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	resp, err := p.Chat(context.Background(), ChatRequest{
		Model: "gemma3:4b",
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "what is this?", Images: []string{"aGVsbG8="}},
		},
		Options: map[string]any{"num_ctx": 16000, "temperature": 1.0},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello there" {
		t.Errorf("expected 'Hello there', got %q", resp.Content)
	}
	if !resp.Done || resp.TotalTokens() != 150 {
		t.Errorf("expected done with 150 tokens, got done=%v tokens=%d", resp.Done, resp.TotalTokens())
	}
	if got.Stream {
		t.Error("expected stream=false")
	}
	if got.Model != "gemma3:4b" {
		t.Errorf("expected model gemma3:4b, got %q", got.Model)
	}
	if len(got.Messages) != 2 || len(got.Messages[1].Images) != 1 || got.Messages[1].Images[0] != "aGVsbG8=" {
		t.Errorf("images not forwarded: %+v", got.Messages)
	}
	if got.Options["num_ctx"] != float64(16000) {
		t.Errorf("expected num_ctx option, got %v", got.Options)
	}
}

func TestOllamaProvider_Chat_ServerError_IsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	_, err := p.Chat(context.Background(), ChatRequest{
		Model:    "missing",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaProvider_Chat_Down_IsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	p := NewOllamaProvider(srv.URL)
	_, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestOllamaProvider_Chat_OmitsEmptyImages(t *testing.T) {
	t.Parallel()

	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw) //nolint:errcheck
		json.NewEncoder(w).Encode(ollamaChatResponse{Done: true}) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	if _, err := p.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	msg := raw["messages"].([]any)[0].(map[string]any)
	if _, ok := msg["images"]; ok {
		t.Error("expected images key to be omitted")
	}
}

// ============================================================================
// ListModels / ShowModel tests
// ============================================================================

func TestOllamaProvider_ListModels_Sorted(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[{"name":"llama3.2:3b"},{"name":"gemma3:4b"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	names, err := NewOllamaProvider(srv.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(names) != 2 || names[0] != "gemma3:4b" || names[1] != "llama3.2:3b" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestOllamaProvider_ListModels_CheckTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewOllamaProvider(srv.URL, WithCheckTimeout(50*time.Millisecond))
	start := time.Now()
	_, err := p.ListModels(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("check timeout not honoured")
	}
}

func TestOllamaProvider_ShowModel(t *testing.T) {
	t.Parallel()

	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/show" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		var req ollamaShowRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck
		gotModel = req.Model
		if req.Model != "gemma3:4b" {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"details":{"family":"gemma3","parameter_size":"4.3B","quantization_level":"Q4_K_M"},"capabilities":["completion","vision"]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	details, err := p.ShowModel(context.Background(), "gemma3:4b")
	if err != nil {
		t.Fatalf("ShowModel failed: %v", err)
	}
	if gotModel != "gemma3:4b" || details.Family != "gemma3" || details.ParameterSize != "4.3B" {
		t.Errorf("unexpected details %+v", details)
	}
	if len(details.Capabilities) != 2 {
		t.Errorf("expected 2 capabilities, got %v", details.Capabilities)
	}

	if !details.HasCapability("vision") || details.HasCapability("tools") {
		t.Errorf("unexpected capability lookup for %v", details.Capabilities)
	}

	if _, err := p.ShowModel(context.Background(), "absent"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for missing model, got %v", err)
	}
}

func TestOllamaProvider_ChatTimeout(t *testing.T) {
	t.Parallel()

	if got := NewOllamaProvider("http://127.0.0.1:11434").httpClient.Timeout; got != defaultChatTimeout {
		t.Errorf("expected default chat timeout %v, got %v", defaultChatTimeout, got)
	}
	if got := NewOllamaProvider("http://127.0.0.1:11434", WithChatTimeout(0)).httpClient.Timeout; got != 0 {
		t.Errorf("expected zero to disable the chat timeout, got %v", got)
	}
	if got := NewOllamaProvider("http://127.0.0.1:11434", WithChatTimeout(-time.Second)).httpClient.Timeout; got != defaultChatTimeout {
		t.Errorf("expected negative timeout to be ignored, got %v", got)
	}
}

// ============================================================================
// HealthCheck tests
// ============================================================================

func TestOllamaProvider_HealthCheck_Healthy(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"models": []any{}}) //nolint:errcheck
	}))
	defer srv.Close()

	if err := NewOllamaProvider(srv.URL).HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got error: %v", err)
	}
}

func TestOllamaProvider_HealthCheck_Down_ReturnsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Closed before the health check call.

	if err := NewOllamaProvider(srv.URL).HealthCheck(context.Background()); err == nil {
		t.Error("expected error when server is down, got nil")
	}
}

func TestOllamaProvider_RefusesRemoteHost(t *testing.T) {
	t.Parallel()

	p := NewOllamaProvider("http://203.0.113.9:11434", WithCheckTimeout(200*time.Millisecond))
	if err := p.HealthCheck(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}
