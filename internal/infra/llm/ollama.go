// Ollama HTTP adapter.
// Endpoints used:
//   - POST /api/chat: non-streaming chat completion
//   - GET  /api/tags: installed models, also the health check
//   - POST /api/show: model metadata
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/matiasleandrokruk/vocalis/internal/infra/netguard"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	defaultChatTimeout  = 5 * time.Minute
	defaultCheckTimeout = 3 * time.Second
)

// OllamaProvider implements Provider against a running Ollama instance.
type OllamaProvider struct {
	baseURL      string
	httpClient   *http.Client
	checkTimeout time.Duration
}

// OllamaOption tweaks an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithHTTPClient replaces the loopback-only client. Tests use it.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.httpClient = c }
}

// WithCheckTimeout bounds ListModels and HealthCheck.
func WithCheckTimeout(d time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		if d > 0 {
			p.checkTimeout = d
		}
	}
}

// WithChatTimeout bounds a whole Chat call. Zero removes the bound, so slow
// CPU inference is only cut short by the caller's context.
func WithChatTimeout(d time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		if d >= 0 {
			p.httpClient.Timeout = d
		}
	}
}

// NewOllamaProvider creates an OllamaProvider for baseURL. The default client
// refuses to dial anything but loopback.
func NewOllamaProvider(baseURL string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:      baseURL,
		httpClient:   netguard.LoopbackClient(defaultChatTimeout),
		checkTimeout: defaultCheckTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BaseURL reports the daemon address in use.
func (p *OllamaProvider) BaseURL() string { return p.baseURL }

// ─── internal Ollama JSON types ──────────────────────────────────────────────

type ollamaChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	DoneReason      string            `json:"done_reason"`
	Done            bool              `json:"done"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type ollamaShowRequest struct {
	Model string `json:"model"`
}

type ollamaShowResponse struct {
	Details struct {
		Family            string `json:"family"`
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
	Capabilities []string `json:"capabilities"`
}

// ─── Provider implementation ─────────────────────────────────────────────────

// Chat performs a non-streaming chat via POST /api/chat.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msgs := make([]ollamaChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = ollamaChatMessage(m)
	}

	body, err := json.Marshal(ollamaChatRequest{
		Model:    req.Model,
		Messages: msgs,
		Stream:   false,
		Options:  req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat: encode: %w", err)
	}

	respBody, err := p.doPost(ctx, p.httpClient, "/api/chat", body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close() //nolint:errcheck

	var out ollamaChatResponse
	if err := json.NewDecoder(respBody).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode chat response: %v", ErrUnavailable, err)
	}
	return &ChatResponse{
		Content:          out.Message.Content,
		Done:             out.Done,
		DoneReason:       out.DoneReason,
		PromptTokens:     out.PromptEvalCount,
		CompletionTokens: out.EvalCount,
	}, nil
}

// ListModels calls GET /api/tags with the check timeout and returns the
// model names sorted.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.checkTimeout)
	defer cancel()

	body, err := p.doGet(ctx, "/api/tags")
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var tags ollamaTagsResponse
	if err := json.NewDecoder(body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("%w: decode tags: %v", ErrUnavailable, err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ShowModel calls POST /api/show for model.
func (p *OllamaProvider) ShowModel(ctx context.Context, model string) (*ModelDetails, error) {
	body, err := json.Marshal(ollamaShowRequest{Model: model})
	if err != nil {
		return nil, fmt.Errorf("ollama show: encode: %w", err)
	}
	respBody, err := p.doPost(ctx, p.httpClient, "/api/show", body)
	if err != nil {
		return nil, err
	}
	defer respBody.Close() //nolint:errcheck

	var out ollamaShowResponse
	if err := json.NewDecoder(respBody).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode show response: %v", ErrUnavailable, err)
	}
	return &ModelDetails{
		Name:          model,
		Family:        out.Details.Family,
		ParameterSize: out.Details.ParameterSize,
		Quantization:  out.Details.QuantizationLevel,
		Capabilities:  out.Capabilities,
	}, nil
}

// HealthCheck calls GET /api/tags; nil if Ollama is reachable.
func (p *OllamaProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.checkTimeout)
	defer cancel()

	body, err := p.doGet(ctx, "/api/tags")
	if err != nil {
		return err
	}
	return body.Close()
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// doPost sends a POST request to baseURL+path and returns the response body.
// Caller is responsible for closing the returned ReadCloser.
func (p *OllamaProvider) doPost(ctx context.Context, client *http.Client, path string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama post %s: build request: %w", path, err)
	}
	req.Header.Set(headerContentType, mimeJSON)
	return p.do(client, req, path)
}

func (p *OllamaProvider) doGet(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama get %s: build request: %w", path, err)
	}
	return p.do(p.httpClient, req, path)
}

func (p *OllamaProvider) do(client *http.Client, req *http.Request, path string) (io.ReadCloser, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnavailable, req.Method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("%w: %s %s: status %d: %s", ErrUnavailable, req.Method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return resp.Body, nil
}
